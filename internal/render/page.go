package render

import (
	"bytes"
	"html/template"
)

// pageTemplate is the single page shell every rendered document is served
// in: a readable default stylesheet plus the live-reload client. The
// browser reconnects with backoff when the server restarts.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    line-height: 1.6;
    max-width: 800px;
    margin: 0 auto;
    padding: 1rem;
    color: #333;
}
pre, code {
    background-color: #f6f8fa;
    border-radius: 3px;
    padding: 0.2em 0.4em;
    font-family: SFMono-Regular, Consolas, "Liberation Mono", Menlo, monospace;
}
pre code { padding: 0; }
pre { padding: 16px; overflow: auto; }
blockquote {
    margin: 0;
    padding-left: 1em;
    border-left: 4px solid #ddd;
    color: #666;
}
img { max-width: 100%; height: auto; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f6f8fa; }
h1, h2, h3, h4, h5, h6 {
    margin-top: 24px;
    margin-bottom: 16px;
    font-weight: 600;
    line-height: 1.25;
}
a { color: #0366d6; text-decoration: none; }
a:hover { text-decoration: underline; }
li .path { color: #888; font-size: 0.85em; margin-left: 0.5em; }
</style>
<script>
(function () {
    var retry = 500;
    function connect() {
        var ws = new WebSocket('ws://' + window.location.host + '/ws');
        ws.onmessage = function (e) {
            var msg;
            try { msg = JSON.parse(e.data); } catch (err) { msg = { type: e.data }; }
            if (msg.type === 'reload' || msg.type === 'full_reload') {
                window.location.reload();
            }
        };
        ws.onopen = function () { retry = 500; };
        ws.onclose = function () {
            setTimeout(connect, retry);
            retry = Math.min(retry * 2, 5000);
        };
    }
    connect();
})();
</script>
</head>
<body>
{{.Body}}
</body>
</html>
`))

type pageData struct {
	Title string
	Body  template.HTML
}

// WrapPage wraps body HTML in the standard page shell with the stylesheet
// and live-reload client. Used directly by the index generator.
func WrapPage(title string, body []byte) ([]byte, error) {
	return wrapPage(title, body)
}

// wrapPage wraps rendered body HTML in the page shell.
func wrapPage(title string, body []byte) ([]byte, error) {
	var out bytes.Buffer

	err := pageTemplate.Execute(&out, pageData{
		Title: title,
		Body:  template.HTML(body),
	})
	if err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
