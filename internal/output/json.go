package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/resource"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatTable formats a table as a JSON array of objects keyed by column.
func (f *JSONFormatter) FormatTable(t *resource.Table) (string, error) {
	if len(t.Rows) == 0 {
		return "[]\n", nil
	}
	data, err := json.MarshalIndent(t.Records(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s list to JSON: %w", t.Kind, err)
	}
	return string(data) + "\n", nil
}

// FormatBindings formats bindings as a list object:
//
//	{
//	  "apiVersion": "arrayops.jbweber.io/v1alpha1",
//	  "kind": "HostBindingList",
//	  "items": [...]
//	}
func (f *JSONFormatter) FormatBindings(bindings []*v1alpha1.HostBinding) (string, error) {
	for _, b := range bindings {
		v1alpha1.SetDefaultAPIVersion(b)
	}
	items := bindings
	if items == nil {
		items = []*v1alpha1.HostBinding{}
	}

	wrapper := map[string]any{
		"apiVersion": v1alpha1.APIVersionString(),
		"kind":       v1alpha1.HostBindingKind + "List",
		"items":      items,
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(wrapper); err != nil {
		return "", fmt.Errorf("failed to marshal bindings to JSON: %w", err)
	}
	return buf.String(), nil
}
