package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/phobologic/testscan/internal/model"
)

// WriteText writes r as a human-readable table of discovered tests followed
// by disabled classes, scan errors and ranked base files.
func WriteText(w io.Writer, r *model.Report) error {
	return writeText(w, r, DefaultStyles())
}

func writeText(w io.Writer, r *model.Report, s Styles) error {
	sum := Summarize(r)
	var out strings.Builder

	fmt.Fprintf(&out, "%s %s\n", s.Header.Render("testscan: "+r.Root), s.Muted.Render("(target "+r.Target+")"))
	out.WriteString("\n")

	if sum.Tests > 0 {
		out.WriteString(renderTests(r, sum))
	} else {
		out.WriteString(s.Muted.Render("No tests discovered.") + "\n")
	}

	var disabled, failed []string
	for _, f := range r.Files {
		if f.Err != "" {
			failed = append(failed, fmt.Sprintf("  %s: %s", f.Path, s.Error.Render(f.Err)))
		}
		if f.Discovery == nil {
			continue
		}
		for _, name := range f.Discovery.Disabled {
			disabled = append(disabled, fmt.Sprintf("  %s: %s", f.Path, s.Disabled.Render(name)))
		}
	}
	if len(disabled) > 0 {
		fmt.Fprintf(&out, "\n%s\n%s\n", s.SubHeader.Render("Disabled classes"), strings.Join(disabled, "\n"))
	}
	if len(failed) > 0 {
		fmt.Fprintf(&out, "\n%s\n%s\n", s.SubHeader.Render("Errors"), strings.Join(failed, "\n"))
	}
	if len(r.Bases) > 0 {
		fmt.Fprintf(&out, "\n%s\n", s.SubHeader.Render("Base files"))
		for _, b := range r.Bases {
			fmt.Fprintf(&out, "  %s %s\n", s.Base.Render(b.Path),
				s.Muted.Render(fmt.Sprintf("(%d dependents, rank %.4f)", b.Dependents, b.Rank)))
		}
	}

	fmt.Fprintf(&out, "\n%d files, %d classes, %d tests, %d disabled, %d errors\n",
		sum.Files, sum.Classes, sum.Tests, sum.Disabled, sum.Errors)

	_, err := io.WriteString(w, out.String())
	return err
}

func renderTests(r *model.Report, sum Summary) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"File", "Class", "Test", "Tags", "Requirements"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})

	for _, f := range r.Files {
		if f.Discovery == nil {
			continue
		}
		for _, c := range f.Discovery.Classes {
			for _, m := range c.Methods {
				table.Append([]string{
					f.Path,
					c.Name,
					m.Name,
					m.Tags.String(),
					model.JoinRequirements(m.Requirements),
				})
			}
		}
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", sum.Files),
		fmt.Sprintf("%d", sum.Classes),
		fmt.Sprintf("%d", sum.Tests),
		"",
		"",
	})

	table.Render()

	return tableBuffer.String()
}
