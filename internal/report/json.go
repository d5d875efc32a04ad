package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/testscan/internal/model"
)

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(r))
}

// ReadJSON decodes a report written by WriteJSON. Documents of another
// layout version are rejected.
func ReadJSON(rd io.Reader) (*model.Report, error) {
	var doc Document
	if err := json.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("report version %q, want %q", doc.Version, Version)
	}
	return doc.Report(), nil
}

// WriteYAML writes r as YAML using the same layout as WriteJSON.
func WriteYAML(w io.Writer, r *model.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(r)); err != nil {
		return err
	}
	return enc.Close()
}
