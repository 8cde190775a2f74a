package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/resource"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatTable writes one row per resource. Column names are upper-cased
// field paths; empty cells show as "-".
func (f *TableFormatter) FormatTable(t *resource.Table) (string, error) {
	if len(t.Rows) == 0 {
		return fmt.Sprintf("No %s found\n", t.Kind), nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		headers := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			headers[i] = strings.ToUpper(c)
		}
		_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = orDash(c)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatBindings formats bindings as a table.
func (f *TableFormatter) FormatBindings(bindings []*v1alpha1.HostBinding) (string, error) {
	if len(bindings) == 0 {
		return "No bindings found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tHOST\tPHASE\tHOST-ID\tLUNS\tAGE")
	}
	for _, b := range bindings {
		luns := fmt.Sprintf("%d/%d", len(b.Status.Attached), len(b.Spec.LUNs))

		age := "-"
		if !b.CreationTimestamp.IsZero() {
			age = formatAge(time.Since(b.CreationTimestamp.Time))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Name, b.Spec.Host, orDash(string(b.Status.Phase)), orDash(b.Status.HostID), luns, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}
	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}
	if years := days / 365; years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
