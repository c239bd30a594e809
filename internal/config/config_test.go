package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := Path(), "/custom/config/sdmigrate/config.yml"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := Path(), filepath.Join(home, ".config", "sdmigrate", "config.yml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestLoad_NotFound(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "data" || cfg.WeakMatchPolicy != "assign" || cfg.UserAgent != "sdmigrate" {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `input: https://biblioteca.sistedes.es
output: https://repo.example.org/server
user: admin@example.org
waiting_time_ms: 250
data_dir: ~/sdmigrate/data
weak_match_policy: reject
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "sdmigrate/data"); cfg.DataDir != want {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, want)
	}
	if cfg.Input != "https://biblioteca.sistedes.es" || cfg.User != "admin@example.org" {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.WaitingTime() != 250*time.Millisecond {
		t.Errorf("WaitingTime() = %v, want 250ms", cfg.WaitingTime())
	}
	if cfg.WeakMatchPolicy != "reject" {
		t.Errorf("WeakMatchPolicy = %q, want reject", cfg.WeakMatchPolicy)
	}
	// keys absent from the file keep their default
	if cfg.UserAgent != "sdmigrate" {
		t.Errorf("UserAgent = %q, want default", cfg.UserAgent)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("input: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should return error for invalid YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SDMIGRATE_OUTPUT":          "https://env.example.org/server",
		"SDMIGRATE_PASSWORD":        "secret",
		"SDMIGRATE_WAITING_TIME_MS": "1000",
		"SDMIGRATE_USER":            "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := &Config{Output: "https://file.example.org", User: "from-file"}
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	want := &Config{Output: "https://env.example.org/server", User: "from-file", Password: "secret", WaitingTimeMS: 1000}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("ApplyEnv() = %+v, want %+v", cfg, want)
	}

	env["SDMIGRATE_WAITING_TIME_MS"] = "soon"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Error("ApplyEnv() accepted a non-numeric waiting time")
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{"handle_prefix", "11705", false},
		{"waiting_time_ms", "20", false},
		{"waiting_time_ms", "-1", true},
		{"nexus_path", "/tmp", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	cfg := &Config{}
	if err := cfg.Set("bogus", "x"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set(bogus) error = %v, want ErrUnknownKey", err)
	}
}

func TestValidate(t *testing.T) {
	full := Config{Input: "https://in", Output: "https://out", User: "u", Password: "p"}
	if err := full.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no input", func(c *Config) { c.Input = "" }},
		{"blank password", func(c *Config) { c.Password = "  " }},
		{"key without server", func(c *Config) { c.HandleKeyFile = "/keys/admpriv.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := full
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrMissing) {
				t.Errorf("Validate() error = %v, want ErrMissing", err)
			}
		})
	}
}

func TestDataPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data", CacheDir: "/cache"}
	if got := cfg.GivenNamesPaths(); !reflect.DeepEqual(got, []string{"/data/male-names.csv", "/data/female-names.csv"}) {
		t.Errorf("GivenNamesPaths() = %v", got)
	}
	if got := cfg.SurnamesPath(); got != "/data/surnames.csv" {
		t.Errorf("SurnamesPath() = %q", got)
	}
	if got := cfg.ExceptionsPath(); got != "/data/exceptions.txt" {
		t.Errorf("ExceptionsPath() = %q", got)
	}
	if got := cfg.Journal(); got != "/cache/journal.db" {
		t.Errorf("Journal() = %q", got)
	}
	cfg.JournalPath = "/var/journal.db"
	if got := cfg.Journal(); got != "/var/journal.db" {
		t.Errorf("Journal() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/Documents", filepath.Join(home, "Documents")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
