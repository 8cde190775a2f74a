// Package output renders array resources and host bindings as tables,
// YAML or JSON.
package output

import (
	"fmt"
	"strings"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/resource"
)

// Format names an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
)

// Formats lists the supported formats in the order shown in help text.
var Formats = []Format{FormatTable, FormatYAML, FormatJSON}

// Formatter renders command results.
type Formatter interface {
	// FormatTable renders a field export of array resources.
	FormatTable(t *resource.Table) (string, error)

	// FormatBindings renders HostBinding documents, status included.
	FormatBindings(bindings []*v1alpha1.HostBinding) (string, error)
}

// Options selects and tunes a Formatter.
type Options struct {
	Format Format
	// NoHeaders drops the header row; only the table format has one.
	NoHeaders bool
}

// NewFormatter returns the Formatter for opts.Format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q (supported: %s)", opts.Format, formatList())
}

// ValidateFormat reports whether format names a supported Format.
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if Format(format) == f {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %q (valid formats: %s)", format, formatList())
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
