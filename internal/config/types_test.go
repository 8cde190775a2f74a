package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromFile_ValidProfile(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "unity.yaml")

	profileYAML := `address: " 10.244.223.61 "
username: admin
password: Password123!
verify_tls: true
ca_file: /etc/arrayops/ca.pem
timeout: 45s
log_level: DEBUG
log_format: json
vnx:
  spa: 10.244.211.30
  spb: 10.244.211.31
  scope: 1
`
	if err := os.WriteFile(path, []byte(profileYAML), 0644); err != nil {
		t.Fatalf("Failed to write test profile: %v", err)
	}

	p, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if p.Address != "10.244.223.61" {
		t.Errorf("Expected trimmed address, got %q", p.Address)
	}
	if p.Timeout != 45*time.Second {
		t.Errorf("Expected timeout 45s, got %s", p.Timeout)
	}
	if p.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got %q", p.LogLevel)
	}
	if !p.HasUnity() || !p.HasVNX() {
		t.Errorf("Expected both Unity and VNX to be configured")
	}
	if p.VNX.Binary != "naviseccli" {
		t.Errorf("Expected default binary, got %q", p.VNX.Binary)
	}

	opts := p.RESTOptions()
	if opts.Address != p.Address || opts.Password != "Password123!" || !opts.VerifyTLS || opts.Timeout != 45*time.Second {
		t.Errorf("RESTOptions did not carry the profile: %+v", opts)
	}

	cli := p.NaviseccliConfig()
	if cli.SPA != "10.244.211.30" || cli.SPB != "10.244.211.31" || cli.Scope != 1 {
		t.Errorf("NaviseccliConfig did not carry the vnx section: %+v", cli)
	}
	if cli.Username != "admin" || cli.Password != "Password123!" {
		t.Errorf("NaviseccliConfig should reuse the profile credentials")
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	p, err := Parse([]byte("address: unity.example.com\nusername: admin\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Timeout != defaultTimeout {
		t.Errorf("Expected default timeout, got %s", p.Timeout)
	}
	if p.LogLevel != "info" || p.LogFormat != "text" {
		t.Errorf("Expected info/text logging defaults, got %s/%s", p.LogLevel, p.LogFormat)
	}
	if p.HasVNX() {
		t.Errorf("Expected no vnx section")
	}
	if cli := p.NaviseccliConfig(); cli.SPA != "" || cli.SPB != "" {
		t.Errorf("Expected empty naviseccli config, got %+v", cli)
	}
}

func TestParse_PasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")
	p, err := Parse([]byte("address: unity.example.com\nusername: admin\npassword: from-file\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Password != "from-env" {
		t.Errorf("Expected password from %s, got %q", PasswordEnv, p.Password)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "", "failed to parse YAML"},
		{"unknown field", "address: a\nusername: u\nhostname: b\n", "field hostname not found"},
		{"no target", "username: admin\n", "address or vnx is required"},
		{"no username", "address: a\n", "username is required"},
		{"negative timeout", "address: a\nusername: u\ntimeout: -1s\n", "timeout must be >= 0"},
		{"ca without verify", "address: a\nusername: u\nca_file: /ca.pem\n", "ca_file is only used"},
		{"bad log level", "address: a\nusername: u\nlog_level: loud\n", "invalid log level"},
		{"bad log format", "address: a\nusername: u\nlog_format: xml\n", "unsupported log format"},
		{"vnx without sp", "username: u\nvnx:\n  scope: 0\n", "spa or spb is required"},
		{"vnx bad scope", "username: u\nvnx:\n  spa: 10.0.0.1\n  scope: 3\n", "scope must be 0, 1 or 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLogging(t *testing.T) {
	p := &Profile{LogLevel: "warn", LogFormat: "json", LogFile: "/var/log/arrayops.log"}
	cfg := p.Logging()
	if cfg.Level != "warn" || cfg.Format != "json" || cfg.File != "/var/log/arrayops.log" {
		t.Errorf("Unexpected logging config: %+v", cfg)
	}
}
