package types

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// FormatFieldTable renders fields and their current values as a markdown table
// headed by title. Blank values show as "-".
func FormatFieldTable(title string, fields []FieldInfo, form FormState) string {
	if len(fields) == 0 {
		return ""
	}
	var buf strings.Builder
	if title != "" {
		buf.WriteString("## ")
		buf.WriteString(title)
		buf.WriteString("\n")
	}
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value")
	for _, field := range fields {
		value := strings.TrimSpace(form.Get(field.Name))
		if value == "" {
			value = "-"
		}
		_ = table.Append(field.DisplayName, value)
	}
	_ = table.Render()
	return buf.String()
}

func FormatList(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
