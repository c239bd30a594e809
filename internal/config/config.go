// Package config handles the migrator configuration.
//
// Values come, in increasing precedence, from built-in defaults, the YAML
// file at $XDG_CONFIG_HOME/sdmigrate/config.yml, SDMIGRATE_* environment
// variables and finally command-line flags (applied by the CLI through Set).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the directory name under XDG_CONFIG_HOME and the user cache dir.
	Dir = "sdmigrate"
	// File is the config file name.
	File = "config.yml"
	// EnvPrefix prefixes the environment variable of every key.
	EnvPrefix = "SDMIGRATE_"
)

// Files expected in the data directory.
const (
	MaleNamesFile   = "male-names.csv"
	FemaleNamesFile = "female-names.csv"
	SurnamesFile    = "surnames.csv"
	ExceptionsFile  = "exceptions.txt"
	JournalFile     = "journal.db"
)

// Config holds every setting of a migration.
type Config struct {
	Input           string `yaml:"input,omitempty"`
	Output          string `yaml:"output,omitempty"`
	User            string `yaml:"user,omitempty"`
	Password        string `yaml:"password,omitempty"`
	HandlePrefix    string `yaml:"handle_prefix,omitempty"`
	HandleServer    string `yaml:"handle_server,omitempty"`
	HandleKeyFile   string `yaml:"handle_key_file,omitempty"`
	HandlePassword  string `yaml:"handle_password,omitempty"`
	WaitingTimeMS   int    `yaml:"waiting_time_ms,omitempty"`
	CacheDir        string `yaml:"cache_dir,omitempty"`
	DataDir         string `yaml:"data_dir,omitempty"`
	JournalPath     string `yaml:"journal_path,omitempty"`
	WeakMatchPolicy string `yaml:"weak_match_policy,omitempty"`
	UserAgent       string `yaml:"user_agent,omitempty"`
}

// ErrMissing is returned by Validate for unset required keys.
var ErrMissing = errors.New("missing required setting")

// ErrUnknownKey is returned by Set for keys that do not exist.
var ErrUnknownKey = errors.New("unknown config key")

// Path returns the path of the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/sdmigrate/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, Dir, File)
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	cache := filepath.Join(".", "."+Dir, "cache")
	if dir, err := os.UserCacheDir(); err == nil {
		cache = filepath.Join(dir, Dir)
	}
	return &Config{
		CacheDir:        cache,
		DataDir:         "data",
		WeakMatchPolicy: "assign",
		UserAgent:       "sdmigrate",
	}
}

// Load returns the defaults overlaid with the YAML file at path. A missing
// file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expand()
	return cfg, nil
}

// fields maps config keys to the string settings.
func (c *Config) fields() map[string]*string {
	return map[string]*string{
		"input":             &c.Input,
		"output":            &c.Output,
		"user":              &c.User,
		"password":          &c.Password,
		"handle_prefix":     &c.HandlePrefix,
		"handle_server":     &c.HandleServer,
		"handle_key_file":   &c.HandleKeyFile,
		"handle_password":   &c.HandlePassword,
		"cache_dir":         &c.CacheDir,
		"data_dir":          &c.DataDir,
		"journal_path":      &c.JournalPath,
		"weak_match_policy": &c.WeakMatchPolicy,
		"user_agent":        &c.UserAgent,
	}
}

// Keys lists every config key, sorted.
func Keys() []string {
	keys := []string{"waiting_time_ms"}
	for k := range (&Config{}).fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a value by key. Paths get ~ expanded.
func (c *Config) Set(key, value string) error {
	if key == "waiting_time_ms" {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s %q: want a non-negative integer", key, value)
		}
		c.WaitingTimeMS = n
		return nil
	}
	p, ok := c.fields()[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	*p = value
	c.expand()
	return nil
}

// ApplyEnv overlays the SDMIGRATE_* variables found by lookup, usually
// os.LookupEnv. Empty variables are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, key := range Keys() {
		v, ok := lookup(EnvVar(key))
		if !ok || v == "" {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return fmt.Errorf("%s: %w", EnvVar(key), err)
		}
	}
	return nil
}

// EnvVar returns the environment variable name of key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// Validate checks that the settings needed to migrate are present.
func (c *Config) Validate() error {
	var missing []string
	for _, k := range []string{"input", "output", "user", "password"} {
		if strings.TrimSpace(*c.fields()[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	if c.HandleKeyFile != "" && c.HandleServer == "" {
		return fmt.Errorf("%w: handle_server (required with handle_key_file)", ErrMissing)
	}
	return nil
}

// WaitingTime returns the pacing delay between source fetches.
func (c *Config) WaitingTime() time.Duration {
	return time.Duration(c.WaitingTimeMS) * time.Millisecond
}

// GivenNamesPaths returns the first-name frequency tables.
func (c *Config) GivenNamesPaths() []string {
	return []string{filepath.Join(c.DataDir, MaleNamesFile), filepath.Join(c.DataDir, FemaleNamesFile)}
}

// SurnamesPath returns the surname frequency table.
func (c *Config) SurnamesPath() string {
	return filepath.Join(c.DataDir, SurnamesFile)
}

// ExceptionsPath returns the name-split exceptions file.
func (c *Config) ExceptionsPath() string {
	return filepath.Join(c.DataDir, ExceptionsFile)
}

// Journal returns the journal database path, inside the cache directory
// unless set.
func (c *Config) Journal() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	return filepath.Join(c.CacheDir, JournalFile)
}

func (c *Config) expand() {
	for _, p := range []*string{&c.CacheDir, &c.DataDir, &c.JournalPath, &c.HandleKeyFile} {
		*p = ExpandPath(*p)
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
