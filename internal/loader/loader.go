// Package loader reads HostBinding documents from YAML. A file may hold
// several documents separated by "---".
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/naming"
)

// maxHLU is the largest host LUN number a binding may pin.
const maxHLU = 16383

// LoadFromFile loads every HostBinding in path.
func LoadFromFile(path string) ([]*v1alpha1.HostBinding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	bindings, err := LoadFromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bindings, nil
}

// LoadFromYAML decodes, defaults and validates every document in data.
func LoadFromYAML(data []byte) ([]*v1alpha1.HostBinding, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []*v1alpha1.HostBinding
	seen := map[string]bool{}
	for i := 0; ; i++ {
		var b v1alpha1.HostBinding
		err := dec.Decode(&b)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %d: %w", i, err)
		}
		if err := checkType(&b); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		b.Normalize()
		if err := validateSpec(&b); err != nil {
			return nil, fmt.Errorf("document %d: validation failed: %w", i, err)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("document %d: binding %q is defined twice", i, b.Name)
		}
		seen[b.Name] = true
		out = append(out, &b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no HostBinding documents found")
	}
	return out, nil
}

// SaveToFile writes bindings, status included, as a multi-document file.
func SaveToFile(bindings []*v1alpha1.HostBinding, path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, b := range bindings {
		v1alpha1.SetDefaultAPIVersion(b)
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("failed to marshal binding %s: %w", b.Name, err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal bindings: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

func checkType(b *v1alpha1.HostBinding) error {
	if b.APIVersion == "" {
		return fmt.Errorf("missing required field: apiVersion")
	}
	if b.Kind == "" {
		return fmt.Errorf("missing required field: kind")
	}
	if b.APIVersion != v1alpha1.APIVersionString() {
		return fmt.Errorf("unsupported apiVersion: %s (expected: %s)", b.APIVersion, v1alpha1.APIVersionString())
	}
	if b.Kind != v1alpha1.HostBindingKind {
		return fmt.Errorf("unsupported kind: %s (expected: %s)", b.Kind, v1alpha1.HostBindingKind)
	}
	return nil
}

func validateSpec(b *v1alpha1.HostBinding) error {
	if b.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if b.Spec.Host == "" {
		return fmt.Errorf("spec.host is required")
	}

	for i, uid := range b.Spec.Initiators {
		if !naming.IsFCUID(uid) && !naming.IsISCSIUID(uid) {
			return fmt.Errorf("spec.initiators[%d] %q is neither an IQN nor a WWN", i, uid)
		}
	}

	names := make(map[string]bool)
	hlus := make(map[int]string)
	for i, l := range b.Spec.LUNs {
		if l.Name == "" {
			return fmt.Errorf("spec.luns[%d].name is required", i)
		}
		if names[l.Name] {
			return fmt.Errorf("spec.luns[%d].name %q is duplicated", i, l.Name)
		}
		names[l.Name] = true

		if l.HLU == nil {
			continue
		}
		hlu := *l.HLU
		if hlu < 0 || hlu > maxHLU {
			return fmt.Errorf("spec.luns[%d].hlu %d is out of range 0-%d", i, hlu, maxHLU)
		}
		if hlu == 0 && b.Spec.SkipHLU0 {
			return fmt.Errorf("spec.luns[%d].hlu 0 conflicts with spec.skipHLU0", i)
		}
		if other, ok := hlus[hlu]; ok {
			return fmt.Errorf("spec.luns[%d].hlu %d is already used by %q", i, hlu, other)
		}
		hlus[hlu] = l.Name
	}
	return nil
}
