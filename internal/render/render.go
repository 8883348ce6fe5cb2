// Package render converts markdown documents to complete HTML pages.
//
// Rendering is stateless per call: bytes in, bytes out. Relative links that
// point at other markdown documents in the tree are rewritten to the
// documents' mapped output paths; external links and anchors pass through
// untouched. Malformed markdown never fails a render, it degrades to
// best-effort HTML.
package render

import (
	"bytes"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/livemd/internal/pathmap"
)

// Renderer renders markdown bytes into full HTML pages.
type Renderer struct {
	md     goldmark.Markdown
	mapper *pathmap.Mapper
	titler cases.Caser
}

// NewRenderer creates a renderer bound to the mapper's content root. The
// extension set mirrors what authors expect from GitHub-flavored markdown:
// tables, strikethrough, task lists, autolinks, footnotes, and smart
// punctuation.
func NewRenderer(mapper *pathmap.Mapper) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(
				util.Prioritized(&linkRewriter{mapper: mapper}, 100),
			),
		),
		goldmark.WithRendererOptions(
			// Markdown documents commonly embed raw HTML; pass it through
			// like the original content would read in any other viewer.
			goldmarkhtml.WithUnsafe(),
		),
	)

	return &Renderer{
		md:     md,
		mapper: mapper,
		titler: cases.Title(language.English),
	}
}

// Render converts one markdown document into a complete HTML page with the
// live-reload client embedded. sourcePath is the document's path relative
// to the content root and is used for link resolution and the page title.
func (r *Renderer) Render(source []byte, sourcePath string) ([]byte, error) {
	var body bytes.Buffer

	pctx := parser.NewContext()
	pctx.Set(sourcePathKey, sourcePath)

	if err := r.md.Convert(source, &body, parser.WithContext(pctx)); err != nil {
		// Conversion failures degrade to a preformatted dump of the source
		// rather than failing the pipeline.
		body.Reset()
		body.WriteString("<pre>")
		body.WriteString(escapeText(string(source)))
		body.WriteString("</pre>")
	}

	return wrapPage(r.Title(sourcePath), body.Bytes())
}

// Title derives the page title from the source path: the file stem with
// underscores as spaces, title-cased.
func (r *Renderer) Title(sourcePath string) string {
	base := path.Base(sourcePath)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." {
		return "Markdown Preview"
	}

	return r.titler.String(strings.ReplaceAll(stem, "_", " "))
}

func escapeText(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
