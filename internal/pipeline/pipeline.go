// Package pipeline coordinates the watch-render-notify flow.
//
// The coordinator consumes debounced change events, re-renders affected
// sources, updates the artifact store, and only then publishes a reload
// signal, so a reloading browser can never fetch stale or half-written
// output. Events for one source are applied in arrival order; distinct
// sources render concurrently.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/livemd/internal/errors"
	"github.com/conneroisu/livemd/internal/logging"
	"github.com/conneroisu/livemd/internal/pathmap"
	"github.com/conneroisu/livemd/internal/render"
	"github.com/conneroisu/livemd/internal/store"
	"github.com/conneroisu/livemd/internal/watcher"
)

// Reload is the signal pushed to connected browsers. An empty Path means
// the whole artifact set changed and every page should refresh.
type Reload struct {
	Path string
}

// Publisher fans a reload signal out to connected clients.
type Publisher interface {
	Publish(Reload)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(Reload)

// Publish implements Publisher.
func (f PublisherFunc) Publish(r Reload) { f(r) }

// indexKey is the synthetic source the index artifact is serialized under.
const indexKey = "\x00index"

// Coordinator owns render scheduling between the watcher and the store.
type Coordinator struct {
	mapper    *pathmap.Mapper
	renderer  *render.Renderer
	store     *store.Store
	publisher Publisher
	logger    logging.Logger

	mu     sync.Mutex
	queues map[string]*pathQueue
	wg     sync.WaitGroup
}

// pathQueue serializes tasks for a single source path.
type pathQueue struct {
	pending []watcher.EventKind
	active  bool
}

// New creates a coordinator.
func New(mapper *pathmap.Mapper, renderer *render.Renderer, st *store.Store, publisher Publisher, logger logging.Logger) *Coordinator {
	return &Coordinator{
		mapper:    mapper,
		renderer:  renderer,
		store:     st,
		publisher: publisher,
		logger:    logger.WithComponent("pipeline"),
		queues:    make(map[string]*pathQueue),
	}
}

// RenderAll renders every markdown document and copies every asset under
// the content root, then generates the index. Used at startup and by
// one-shot builds; publishes nothing.
func (c *Coordinator) RenderAll() error {
	root := c.mapper.Root()

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if hidden(root, path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := c.mapper.Rel(path)
		if err != nil {
			return nil
		}
		if err := c.renderSource(rel); err != nil {
			c.logger.Warn(context.Background(), err, "initial render failed", "source", rel)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Synchronous at startup so the index is servable before the first
	// request; later rebuilds flow through the queue.
	c.writeIndex()

	return nil
}

// Run consumes the watcher's streams until the context is canceled, the
// stream ends, or the subscription fails. A fatal watch error is returned
// to the caller; in-flight renders are drained before Run returns.
func (c *Coordinator) Run(ctx context.Context, w *watcher.Watcher) error {
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-w.Errors():
			return err

		case e, ok := <-w.Events():
			if !ok {
				// Stream ended; surface a pending fatal error if any.
				select {
				case err := <-w.Errors():
					return err
				default:
					return nil
				}
			}
			c.handle(e)
		}
	}
}

// handle maps a raw event into the per-path queue.
func (c *Coordinator) handle(e watcher.Event) {
	rel, err := c.mapper.Rel(e.Path)
	if err != nil {
		c.logger.Debug(context.Background(), "dropping event outside content root", "path", e.Path)
		return
	}

	c.logger.Info(context.Background(), "change detected", "source", rel, "kind", e.Kind.String())
	c.dispatch(rel, e.Kind)
}

// dispatch appends a task to the path's queue, starting a worker if none
// is active. Workers apply one path's events strictly in arrival order.
func (c *Coordinator) dispatch(key string, kind watcher.EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[key]
	if !ok {
		q = &pathQueue{}
		c.queues[key] = q
	}
	q.pending = append(q.pending, kind)

	if !q.active {
		q.active = true
		c.wg.Add(1)
		go c.work(key, q)
	}
}

// work drains one path's queue and exits when it runs dry.
func (c *Coordinator) work(key string, q *pathQueue) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			delete(c.queues, key)
			c.mu.Unlock()
			return
		}
		kind := q.pending[0]
		q.pending = q.pending[1:]
		c.mu.Unlock()

		c.process(key, kind)
	}
}

// process applies one event: render or remove, update the store, and only
// then publish the reload signal.
func (c *Coordinator) process(sourceRel string, kind watcher.EventKind) {
	ctx := context.Background()

	if sourceRel == indexKey {
		c.writeIndex()
		return
	}

	outputPath, err := c.mapper.ToOutput(sourceRel)
	if err != nil {
		c.logger.Debug(ctx, "dropping invalid source", "source", sourceRel)
		return
	}

	if kind == watcher.KindRemoved {
		removed := c.store.Remove(outputPath)
		c.logger.Info(ctx, "artifact removed", "output", outputPath)
		// Downstream links to the removed page are stale too, so every
		// open tab reloads.
		c.publisher.Publish(Reload{})
		if removed && pathmap.IsMarkdown(sourceRel) {
			c.regenerateIndex()
		}
		return
	}

	_, existed := c.store.Get(outputPath)

	if err := c.renderSource(sourceRel); err != nil {
		// The last good artifact keeps serving; the path is retried on
		// its next event.
		c.logger.Error(ctx, err, "render failed", "source", sourceRel)
		return
	}

	c.publisher.Publish(Reload{Path: outputPath})

	if !existed && pathmap.IsMarkdown(sourceRel) {
		c.regenerateIndex()
	}
}

// renderSource reads one source and puts its artifact. Markdown renders to
// HTML; everything else is copied byte-identical.
func (c *Coordinator) renderSource(sourceRel string) error {
	abs, err := c.mapper.Abs(sourceRel)
	if err != nil {
		return err
	}
	outputPath, err := c.mapper.ToOutput(sourceRel)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return errors.NewRenderIO(sourceRel, err)
	}

	if !pathmap.IsMarkdown(sourceRel) {
		version := c.store.Put(outputPath, data, store.KindAsset)
		c.logger.Debug(context.Background(), "asset copied", "output", outputPath, "version", version)
		return nil
	}

	page, err := c.renderer.Render(data, sourceRel)
	if err != nil {
		return err
	}

	version := c.store.Put(outputPath, page, store.KindHTML)
	c.logger.Debug(context.Background(), "document rendered", "output", outputPath, "version", version)

	return nil
}

// regenerateIndex queues an index rebuild through the same per-path
// serialization as any other source.
func (c *Coordinator) regenerateIndex() {
	c.dispatch(indexKey, watcher.KindModified)
}

// hidden reports whether path has a dot-prefixed segment below root,
// mirroring the watcher's ignore rules.
func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}

	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}

	return false
}
