package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/arrayops/internal/apierrors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "three segments", input: "4.4.0"},
		{name: "long build string", input: "4.5.1.0.5.001"},
		{name: "surrounding whitespace", input: " 5.0.2 "},
		{name: "garbage", input: "osprey", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, v.String())
		})
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		version string
		min     string
		want    bool
	}{
		{"4.3.1", AttachWithHLU, false},
		{"4.4.0", AttachWithHLU, true},
		{"4.5.1.0.5.001", AttachWithHLU, true},
		{"4.0.0", SnapAttach, false},
		{"4.1.0", SnapAttach, true},
		{"4.2.0", ThinClone, true},
	}

	for _, tt := range tests {
		t.Run(tt.version+">="+tt.min, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParse(tt.version).AtLeast(tt.min))
			assert.Equal(t, !tt.want, MustParse(tt.version).Before(tt.min))
		})
	}
}

func TestUnknownVersion(t *testing.T) {
	var v *Version
	assert.False(t, v.AtLeast("1.0"))
	assert.False(t, v.Before("1.0"))
	assert.Equal(t, "unknown", v.String())
}

func TestRequire(t *testing.T) {
	assert.NoError(t, Require(MustParse("4.1.0"), SnapAttach, "attach snapshot"))

	err := Require(MustParse("4.0.1"), SnapAttach, "attach snapshot")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrActionNotSupported))
	assert.Contains(t, err.Error(), "attach snapshot requires array version >= 4.1")
}
