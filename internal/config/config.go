package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/matheus3301/radio/internal/profile"
)

const (
	DefaultServerURL      = "http://localhost:3000"
	DefaultRequestTimeout = 10 * time.Second
)

// Environment variables that override config.toml.
const (
	EnvServerURL = "RADIO_SERVER_URL"
	EnvUsername  = "RADIO_USERNAME"
)

// Config represents the global ~/.radio/config.toml.
type Config struct {
	ServerURL       string `toml:"server_url"`
	DefaultUsername string `toml:"default_username"`
	RequestTimeout  string `toml:"request_timeout"`
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ErrUnknownKey is returned by Set for a key config.toml does not have.
var ErrUnknownKey = errors.New("unknown config key")

// Keys lists the config.toml keys accepted by Set.
var Keys = []string{"server_url", "default_username", "request_timeout"}

// Set validates value, stores it under key in the config file at path and
// writes the file back. A missing file starts from an empty config.
func Set(path, key, value string) error {
	cfg, err := Load(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		cfg = &Config{}
	default:
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch key {
	case "server_url":
		u, perr := url.Parse(value)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid server_url %q: want http(s)://host[:port]", value)
		}
		cfg.ServerURL = value
	case "default_username":
		if err := profile.ValidateName(value); err != nil {
			return err
		}
		cfg.DefaultUsername = value
	case "request_timeout":
		d, perr := time.ParseDuration(value)
		if perr != nil || d <= 0 {
			return fmt.Errorf("invalid request_timeout %q: want a positive duration like 10s", value)
		}
		cfg.RequestTimeout = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return Save(path, cfg)
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Flags holds command-line overrides. Empty fields are ignored.
type Flags struct {
	ServerURL string
	Username  string
}

// Resolved is the effective client configuration.
type Resolved struct {
	ServerURL      string
	Username       string
	RequestTimeout time.Duration
}

// Resolve merges settings using precedence:
// 1. flags
// 2. RADIO_SERVER_URL / RADIO_USERNAME
// 3. config.toml at path
// 4. built-in defaults
//
// A missing config file is not an error; a malformed one is.
func Resolve(path string, flags Flags) (Resolved, error) {
	r := Resolved{
		ServerURL:      DefaultServerURL,
		RequestTimeout: DefaultRequestTimeout,
	}

	cfg, err := Load(path)
	switch {
	case err == nil:
		if cfg.ServerURL != "" {
			r.ServerURL = cfg.ServerURL
		}
		r.Username = cfg.DefaultUsername
		if cfg.RequestTimeout != "" {
			d, perr := time.ParseDuration(cfg.RequestTimeout)
			if perr != nil || d <= 0 {
				return r, fmt.Errorf("invalid request_timeout %q in %s", cfg.RequestTimeout, path)
			}
			r.RequestTimeout = d
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return r, fmt.Errorf("read config %s: %w", path, err)
	}

	if v := os.Getenv(EnvServerURL); v != "" {
		r.ServerURL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		r.Username = v
	}

	if flags.ServerURL != "" {
		r.ServerURL = flags.ServerURL
	}
	if flags.Username != "" {
		r.Username = flags.Username
	}
	return r, nil
}
