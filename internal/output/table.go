package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatRecords renders rate limit records as a table.
func (f *TableFormatter) FormatRecords(records []RecordView) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Count", "Window Reset", "Resets In"})

	expired := 0
	for _, r := range records {
		if r.Expired {
			expired++
		}
		t.AppendRow(table.Row{
			r.Key,
			r.Count,
			r.ResetAt.Format(time.RFC3339),
			r.ResetsIn,
		})
	}

	summary := fmt.Sprintf("%d tracked", len(records))
	if expired > 0 {
		summary += fmt.Sprintf(", %d expired", expired)
	}
	t.AppendFooter(table.Row{"", "", "", summary})

	return t.Render(), nil
}

// FormatValidation renders a validation report as a table.
func (f *TableFormatter) FormatValidation(report ValidationReport) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s payload: %s", report.Kind, report.Source))
	t.AppendHeader(table.Row{"#", "Violation"})

	for i, violation := range report.Violations {
		t.AppendRow(table.Row{i + 1, violation})
	}
	if len(report.Violations) == 0 {
		t.AppendRow(table.Row{"-", "none"})
	}

	t.AppendFooter(table.Row{"", verdict(report.Valid)})
	return t.Render(), nil
}
