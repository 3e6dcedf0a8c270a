package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"statement_stitch/pkg/core/assemble"
	"statement_stitch/pkg/core/synthesis"

	"github.com/rotisserie/eris"
)

// writeStatements renders statements in format to path, or stdout when path
// is empty.
func writeStatements(path, format, title string, statements []synthesis.ConsolidatedStatement) error {
	return writeFile(path, format, title, statements)
}

func writeFile(path, format, title string, v any) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "failed to create %s", path)
		}
		defer f.Close()
		w = f
	}
	if err := render(w, format, title, v); err != nil {
		return eris.Wrapf(err, "failed to write %s output", format)
	}
	return nil
}

func render(w io.Writer, format, title string, v any) error {
	format = strings.ToLower(format)
	if format == "json" {
		return assemble.WriteJSON(w, v)
	}
	statements, ok := v.([]synthesis.ConsolidatedStatement)
	if !ok {
		return fmt.Errorf("format %q needs consolidated statements", format)
	}
	switch format {
	case "", "markdown", "md":
		return assemble.RenderMarkdown(w, statements)
	case "html":
		return assemble.RenderHTML(w, title, statements)
	case "xlsx":
		return assemble.WriteXLSX(w, statements)
	}
	return fmt.Errorf("unknown output format %q", format)
}
