// Package version probes array software versions and gates features that
// only exist on newer releases.
package version

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/jbweber/arrayops/internal/apierrors"
)

// Feature thresholds.
const (
	SnapAttach     = "4.1"
	ThinClone      = "4.2"
	DataReduction  = "4.3"
	AttachWithHLU  = "4.4.0"
	unknownVersion = "unknown"
)

// Version is a parsed array software version.
type Version struct {
	raw string
	v   *goversion.Version
}

// Parse parses an array software version such as "4.4.0" or
// "4.5.1.0.5.001".
func Parse(s string) (*Version, error) {
	raw := strings.TrimSpace(s)
	v, err := goversion.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse array version %q: %w", s, err)
	}
	return &Version{raw: raw, v: v}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as the array reported it, or a placeholder
// for a nil version.
func (v *Version) String() string {
	if v == nil {
		return unknownVersion
	}
	return v.raw
}

// AtLeast reports whether v >= min. An unknown version satisfies nothing.
func (v *Version) AtLeast(min string) bool {
	if v == nil {
		return false
	}
	m, err := goversion.NewVersion(min)
	if err != nil {
		return false
	}
	return v.v.GreaterThanOrEqual(m)
}

// Before reports whether v < max.
func (v *Version) Before(max string) bool {
	if v == nil {
		return false
	}
	m, err := goversion.NewVersion(max)
	if err != nil {
		return false
	}
	return v.v.LessThan(m)
}

// Require returns an ActionNotSupported error when v is older than min.
func Require(v *Version, min, action string) error {
	if v.AtLeast(min) {
		return nil
	}
	return apierrors.New(apierrors.KindActionNotSupported,
		"%s requires array version >= %s, connected array runs %s", action, min, v)
}
