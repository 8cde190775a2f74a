package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/arrayops/internal/logging"
	"github.com/jbweber/arrayops/internal/naviseccli"
	"github.com/jbweber/arrayops/internal/rest"
)

// PasswordEnv overrides the profile password when set.
const PasswordEnv = "ARRAYOPS_PASSWORD"

const (
	defaultTimeout = 30 * time.Second
	defaultBinary  = "naviseccli"
)

// Profile is a connection profile for one array.
type Profile struct {
	// Address is the Unity management address. Leave empty for VNX-only profiles.
	Address   string        `yaml:"address,omitempty"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password,omitempty"`
	VerifyTLS bool          `yaml:"verify_tls,omitempty"`
	CAFile    string        `yaml:"ca_file,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"` // e.g. "45s"

	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`
	LogFile   string `yaml:"log_file,omitempty"`

	VNX *VNXConfig `yaml:"vnx,omitempty"`
}

// VNXConfig holds the storage processor addresses used by naviseccli.
type VNXConfig struct {
	SPA    string `yaml:"spa,omitempty"`
	SPB    string `yaml:"spb,omitempty"`
	Scope  int    `yaml:"scope,omitempty"` // 0 global, 1 local, 2 LDAP
	Binary string `yaml:"binary,omitempty"`
}

// Validate checks the profile for errors.
// It does not contact the array.
func (p *Profile) Validate() error {
	if p.Address == "" && p.VNX == nil {
		return fmt.Errorf("address or vnx is required")
	}
	if p.Username == "" {
		return fmt.Errorf("username is required")
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", p.Timeout)
	}
	if p.CAFile != "" && !p.VerifyTLS {
		return fmt.Errorf("ca_file is only used with verify_tls: true")
	}

	if _, err := logging.New(p.Logging()); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if p.VNX != nil {
		if err := p.VNX.Validate(); err != nil {
			return fmt.Errorf("vnx: %w", err)
		}
	}
	return nil
}

// Validate checks VNX configuration.
func (v *VNXConfig) Validate() error {
	if v.SPA == "" && v.SPB == "" {
		return fmt.Errorf("spa or spb is required")
	}
	if v.Scope < 0 || v.Scope > 2 {
		return fmt.Errorf("scope must be 0, 1 or 2, got %d", v.Scope)
	}
	return nil
}

// Normalize sanitizes user input and fills defaults.
// This is called automatically by LoadFromFile before validation.
func (p *Profile) Normalize() {
	p.Address = strings.TrimSpace(p.Address)
	p.Username = strings.TrimSpace(p.Username)
	p.LogLevel = strings.ToLower(strings.TrimSpace(p.LogLevel))
	p.LogFormat = strings.ToLower(strings.TrimSpace(p.LogFormat))

	if pw := os.Getenv(PasswordEnv); pw != "" {
		p.Password = pw
	}
	p.ApplyDefaults()
}

// ApplyDefaults fills unset optional fields.
func (p *Profile) ApplyDefaults() {
	if p.Timeout == 0 {
		p.Timeout = defaultTimeout
	}
	if p.LogLevel == "" {
		p.LogLevel = "info"
	}
	if p.LogFormat == "" {
		p.LogFormat = logging.FormatText
	}
	if p.VNX != nil && p.VNX.Binary == "" {
		p.VNX.Binary = defaultBinary
	}
}

// HasUnity reports whether the profile names a Unity array.
func (p *Profile) HasUnity() bool {
	return p.Address != ""
}

// HasVNX reports whether the profile names VNX storage processors.
func (p *Profile) HasVNX() bool {
	return p.VNX != nil
}

// Logging returns the logger settings of the profile.
func (p *Profile) Logging() logging.Config {
	return logging.Config{
		Level:  p.LogLevel,
		Format: p.LogFormat,
		File:   p.LogFile,
	}
}

// RESTOptions returns the transport options for a Unity connection. The
// caller adds the logger and metrics.
func (p *Profile) RESTOptions() rest.Options {
	return rest.Options{
		Address:   p.Address,
		Username:  p.Username,
		Password:  p.Password,
		VerifyTLS: p.VerifyTLS,
		CAFile:    p.CAFile,
		Timeout:   p.Timeout,
	}
}

// NaviseccliConfig returns the CLI runner settings. VNX accounts share the
// profile credentials.
func (p *Profile) NaviseccliConfig() naviseccli.Config {
	if p.VNX == nil {
		return naviseccli.Config{}
	}
	return naviseccli.Config{
		Binary:   p.VNX.Binary,
		SPA:      p.VNX.SPA,
		SPB:      p.VNX.SPB,
		Username: p.Username,
		Password: p.Password,
		Scope:    p.VNX.Scope,
	}
}

// LoadFromFile loads a profile from a YAML file.
func LoadFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, normalizes and validates a profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Normalize user input before validation
	p.Normalize()

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &p, nil
}
