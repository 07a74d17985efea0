package output

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatRecords renders rate limit records as Markdown.
func (f *MarkdownFormatter) FormatRecords(records []RecordView) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Rate limit records\n\n")
	sb.WriteString("| Key | Count | Window Reset | Resets In |\n")
	sb.WriteString("|-----|-------|--------------|-----------|\n")

	for _, r := range records {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
			escapeMarkdownCell(r.Key),
			r.Count,
			r.ResetAt.Format(time.RFC3339),
			escapeMarkdownCell(r.ResetsIn),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Tracked**: %d\n", len(records)))
	return sb.String(), nil
}

// FormatValidation renders a validation report as Markdown.
func (f *MarkdownFormatter) FormatValidation(report ValidationReport) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s payload: %s\n\n", escapeMarkdownCell(report.Kind), escapeMarkdownCell(report.Source)))
	sb.WriteString(fmt.Sprintf("**Result**: %s\n", verdict(report.Valid)))

	if len(report.Violations) > 0 {
		sb.WriteString("\n")
		for _, violation := range report.Violations {
			sb.WriteString(fmt.Sprintf("- %s\n", violation))
		}
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
