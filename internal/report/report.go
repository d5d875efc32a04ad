package report

import (
	"fmt"
	"io"

	"github.com/phobologic/testscan/internal/model"
	"github.com/phobologic/testscan/internal/toon"
)

// Write renders r in the named format: toon, text, json or yaml.
func Write(w io.Writer, format string, r *model.Report) error {
	switch format {
	case "toon":
		_, err := fmt.Fprintln(w, toon.Encode(r))
		return err
	case "text":
		return WriteText(w, r)
	case "json":
		return WriteJSON(w, r)
	case "yaml":
		return WriteYAML(w, r)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
