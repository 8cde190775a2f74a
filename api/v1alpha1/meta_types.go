// Package v1alpha1 contains the declarative document types read by
// arrayops, in the arrayops.jbweber.io/v1alpha1 group.
//
// The metadata types follow Kubernetes API conventions (field names and
// JSON tags match k8s.io/apimachinery) without depending on it.
package v1alpha1

import (
	"encoding/json"
	"maps"
	"time"

	"gopkg.in/yaml.v3"
)

// TypeMeta carries the kind and apiVersion of a document.
type TypeMeta struct {
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta is the metadata block of a document.
type ObjectMeta struct {
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`

	// Populated by arrayops. Read-only.
	CreationTimestamp Time   `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
	UID               string `json:"uid,omitempty" yaml:"uid,omitempty"`
	Generation        int64  `json:"generation,omitempty" yaml:"generation,omitempty"`
}

// Time serializes as RFC3339, or null when zero.
type Time struct {
	time.Time `json:"-" yaml:"-"`
}

// Now returns the current time truncated to the second, which is all
// RFC3339 keeps.
func Now() Time {
	return Time{Time: time.Now().UTC().Truncate(time.Second)}
}

// MarshalJSON encodes the time as RFC 3339, or null when zero.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// UnmarshalJSON decodes an RFC 3339 string or null.
func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" || string(b) == `""` {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalYAML encodes the time as RFC 3339, or null when zero.
func (t Time) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// UnmarshalYAML decodes an RFC 3339 string or null.
func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" || node.Value == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, node.Value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Condition is one observation about a document's state, keyed by Type.
type Condition struct {
	Type               string          `json:"type" yaml:"type"`
	Status             ConditionStatus `json:"status" yaml:"status"`
	ObservedGeneration int64           `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`
	// LastTransitionTime changes only when Status does.
	LastTransitionTime Time   `json:"lastTransitionTime,omitempty" yaml:"lastTransitionTime,omitempty"`
	Reason             string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message            string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ConditionStatus is True, False or Unknown.
type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// DeepCopy returns a copy that shares no maps with in.
func (in *ObjectMeta) DeepCopy() *ObjectMeta {
	if in == nil {
		return nil
	}
	out := new(ObjectMeta)
	*out = *in
	if in.Labels != nil {
		out.Labels = maps.Clone(in.Labels)
	}
	if in.Annotations != nil {
		out.Annotations = maps.Clone(in.Annotations)
	}
	return out
}
