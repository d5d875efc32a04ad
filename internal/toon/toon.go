// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// scan reports.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/testscan/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a scan Report into TOON format.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(r.Root)))
	parts = append(parts, fmt.Sprintf("target: %s", encodeValue(r.Target)))

	var fileRows [][]string
	for i := range r.Files {
		f := &r.Files[i]
		classes, tests, disabled := 0, 0, 0
		if d := f.Discovery; d != nil {
			classes = len(d.Classes)
			for _, c := range d.Classes {
				tests += len(c.Methods)
			}
			disabled = len(d.Disabled)
		}
		fileRows = append(fileRows, []string{
			f.Path,
			fmt.Sprintf("%d", classes),
			fmt.Sprintf("%d", tests),
			fmt.Sprintf("%d", disabled),
			f.Err,
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "classes", "tests", "disabled", "error"}, fileRows))

	var testRows [][]string
	var disabledRows [][]string
	for i := range r.Files {
		f := &r.Files[i]
		if f.Discovery == nil {
			continue
		}
		for _, c := range f.Discovery.Classes {
			for _, m := range c.Methods {
				testRows = append(testRows, []string{
					f.Path,
					c.Name,
					m.Name,
					strings.Join(m.Tags.Strings(), " "),
					model.JoinRequirements(m.Requirements),
				})
			}
		}
		for _, name := range f.Discovery.Disabled {
			disabledRows = append(disabledRows, []string{f.Path, name})
		}
	}
	parts = append(parts, formatTabular("tests", []string{"file", "class", "method", "tags", "requirements"}, testRows))
	parts = append(parts, formatTabular("disabled", []string{"file", "class"}, disabledRows))

	var depRows [][]string
	for i := range r.Dependencies {
		d := &r.Dependencies[i]
		depRows = append(depRows, []string{
			d.Source,
			d.Target,
			strings.Join(d.Classes, " "),
		})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "classes"}, depRows))

	if len(r.Bases) > 0 {
		var baseRows [][]string
		for _, b := range r.Bases {
			baseRows = append(baseRows, []string{
				b.Path,
				fmt.Sprintf("%d", b.Dependents),
				fmt.Sprintf("%.4f", b.Rank),
			})
		}
		parts = append(parts, formatTabular("bases", []string{"path", "dependents", "rank"}, baseRows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
