package render

import (
	"path"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/conneroisu/livemd/internal/pathmap"
)

var sourcePathKey = parser.NewContextKey()

// linkRewriter rewrites relative markdown links to the mapped output path
// so rendered pages link at each other instead of at raw .md sources.
// External links, anchors, absolute paths, and images are left untouched.
type linkRewriter struct {
	mapper *pathmap.Mapper
}

// Transform implements parser.ASTTransformer.
func (t *linkRewriter) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	sourcePath, _ := pc.Get(sourcePathKey).(string)
	sourceDir := path.Dir(sourcePath)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}

		if rewritten, ok := t.rewrite(sourceDir, string(link.Destination)); ok {
			link.Destination = []byte(rewritten)
		}

		return ast.WalkContinue, nil
	})
}

// rewrite maps one link destination. The returned bool reports whether the
// destination changed.
func (t *linkRewriter) rewrite(sourceDir, dest string) (string, bool) {
	if !rewritable(dest) {
		return "", false
	}

	target, suffix := splitTarget(dest)
	if !pathmap.IsMarkdown(target) {
		return "", false
	}

	// Resolve against the source's directory; targets that climb out of
	// the content tree are not ours to rewrite.
	resolved := path.Join(sourceDir, target)
	output, err := t.mapper.ToOutput(resolved)
	if err != nil {
		return "", false
	}

	// The consumer page lives in the same directory as its source, so the
	// rewritten link is the output path made relative to that directory.
	rel := relativeTo(sourceDir, output)

	return rel + suffix, true
}

// rewritable filters out destinations that are not in-tree relative paths:
// anchors, scheme or protocol-relative URLs, mailto, and absolute paths.
func rewritable(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
		return false
	}
	if strings.HasPrefix(dest, "//") || strings.Contains(dest, "://") {
		return false
	}
	if strings.Contains(dest, ":") {
		// mailto:, tel:, and friends
		return false
	}

	return true
}

// splitTarget separates the path part of a destination from its query and
// fragment suffix.
func splitTarget(dest string) (target, suffix string) {
	cut := len(dest)
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		cut = i
	}

	return dest[:cut], dest[cut:]
}

// relativeTo expresses a root-relative output path relative to a consumer
// directory, both slash-separated.
func relativeTo(dir, output string) string {
	if dir == "." {
		return output
	}

	dirParts := strings.Split(dir, "/")
	outParts := strings.Split(output, "/")

	common := 0
	for common < len(dirParts) && common < len(outParts)-1 && dirParts[common] == outParts[common] {
		common++
	}

	var b strings.Builder
	for i := common; i < len(dirParts); i++ {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(outParts[common:], "/"))

	return b.String()
}
