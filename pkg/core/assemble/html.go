package assemble

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/core/utils"
)

// RenderHTML writes a standalone HTML page. The body is the Markdown
// rendering converted by goldmark with GFM tables.
func RenderHTML(w io.Writer, title string, statements []synthesis.ConsolidatedStatement) error {
	var md bytes.Buffer
	if err := RenderMarkdown(&md, statements); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := utils.NewMarkdown().Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("failed to convert markdown: %w", err)
	}
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #ccc; padding: 2px 8px; }
</style>
</head>
<body>
<h1>%s</h1>
%s</body>
</html>
`, html.EscapeString(title), html.EscapeString(title), body.String())
	return err
}
