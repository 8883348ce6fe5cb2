package pipeline

import (
	"context"
	"html"
	"path"
	"strings"

	"github.com/conneroisu/livemd/internal/render"
	"github.com/conneroisu/livemd/internal/store"
)

// writeIndex regenerates the landing page from the store's current
// listing: one link per rendered document, sorted, with the containing
// directory annotated for nested files.
func (c *Coordinator) writeIndex() {
	var b strings.Builder
	b.WriteString("<h1>Documents</h1>\n<ul>\n")

	for _, outputPath := range c.store.List() {
		if outputPath == "index.html" {
			continue
		}
		artifact, ok := c.store.Get(outputPath)
		if !ok || artifact.Kind != store.KindHTML {
			continue
		}

		b.WriteString(`        <li><a href="`)
		b.WriteString(html.EscapeString(outputPath))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(c.displayName(outputPath)))
		if dir := path.Dir(outputPath); dir != "." {
			b.WriteString(`<span class="path">in `)
			b.WriteString(html.EscapeString(dir))
			b.WriteString(`</span>`)
		}
		b.WriteString("</a></li>\n")
	}
	b.WriteString("</ul>\n")

	page, err := render.WrapPage("Documents", []byte(b.String()))
	if err != nil {
		c.logger.Error(context.Background(), err, "index generation failed")
		return
	}

	version := c.store.Put("index.html", page, store.KindHTML)
	c.logger.Debug(context.Background(), "index regenerated", "version", version)
}

// displayName derives a human-readable link label from an output path.
// Directory indexes are labeled after their directory.
func (c *Coordinator) displayName(outputPath string) string {
	name := outputPath
	if path.Base(outputPath) == "index.html" {
		name = path.Dir(outputPath)
	}

	return c.renderer.Title(name)
}
