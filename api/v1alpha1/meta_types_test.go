package v1alpha1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTime_JSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantZero  bool
		wantError bool
	}{
		{name: "null", input: "null", wantZero: true},
		{name: "empty string", input: `""`, wantZero: true},
		{name: "rfc3339", input: `"2026-03-01T10:30:00Z"`},
		{name: "bad format", input: `"yesterday"`, wantError: true},
		{name: "not a string", input: `12`, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Time
			err := got.UnmarshalJSON([]byte(tt.input))
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantZero, got.IsZero())
		})
	}

	out, err := json.Marshal(struct {
		At Time `json:"at"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":null}`, string(out))
}

func TestTime_YAML(t *testing.T) {
	type doc struct {
		At Time `yaml:"at,omitempty"`
	}
	in := doc{At: Time{Time: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)}}

	data, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2026-03-01T10:30:00Z")

	var back doc
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.True(t, in.At.Equal(back.At.Time))

	var empty doc
	require.NoError(t, yaml.Unmarshal([]byte("at: null\n"), &empty))
	assert.True(t, empty.At.IsZero())

	assert.Error(t, yaml.Unmarshal([]byte("at: tomorrow\n"), &empty))
}

func TestObjectMeta_DeepCopy(t *testing.T) {
	in := &ObjectMeta{
		Name:        "esx",
		Labels:      map[string]string{"site": "a"},
		Annotations: map[string]string{"owner": "storage"},
	}
	out := in.DeepCopy()
	out.Labels["site"] = "b"
	out.Annotations["owner"] = "compute"

	assert.Equal(t, "a", in.Labels["site"])
	assert.Equal(t, "storage", in.Annotations["owner"])
	assert.Nil(t, (*ObjectMeta)(nil).DeepCopy())
}
