package server

import (
	"bytes"
	_ "embed"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed landing.md
var landingMarkdown []byte

var (
	landingOnce sync.Once
	landingHTML []byte
)

// handleIndex serves the landing page, rendered from the embedded
// markdown on first request.
func (s *Server) handleIndex(c echo.Context) error {
	landingOnce.Do(func() {
		md := goldmark.New(goldmark.WithExtensions(extension.GFM))
		var buf bytes.Buffer
		if err := md.Convert(landingMarkdown, &buf); err != nil {
			buf.Reset()
			buf.WriteString("<h1>Trading RAG Assistant</h1>")
		}
		page := `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Trading RAG Assistant</title>
<style>body{font-family:sans-serif;max-width:720px;margin:40px auto;padding:0 16px;color:#222}code{background:#f4f4f4;padding:2px 4px;border-radius:3px}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>
</head>
<body>
` + buf.String() + `
</body>
</html>`
		landingHTML = []byte(page)
	})
	return c.HTMLBlob(http.StatusOK, landingHTML)
}
