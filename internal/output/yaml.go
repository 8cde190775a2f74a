package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/resource"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatTable formats a table as a YAML sequence of mappings.
func (f *YAMLFormatter) FormatTable(t *resource.Table) (string, error) {
	if len(t.Rows) == 0 {
		return "[]\n", nil
	}
	data, err := yaml.Marshal(t.Records())
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s list to YAML: %w", t.Kind, err)
	}
	return string(data), nil
}

// FormatBindings formats bindings as a YAML stream, one document each, so
// the result can be fed back to apply.
func (f *YAMLFormatter) FormatBindings(bindings []*v1alpha1.HostBinding) (string, error) {
	var buf bytes.Buffer
	for i, b := range bindings {
		v1alpha1.SetDefaultAPIVersion(b)

		data, err := yaml.Marshal(b)
		if err != nil {
			return "", fmt.Errorf("failed to marshal binding %s to YAML: %w", b.Name, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.String(), nil
}
