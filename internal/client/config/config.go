// Package config loads the client tool's configuration from a TOML file,
// falling back to defaults when the file is missing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds runtime settings for the certsync client.
type Config struct {
	// ServerURL is the base URL of the certificate gateway.
	ServerURL string

	// DatabasePath is the local SQLite file.
	DatabasePath string

	// SyncInterval is the background sync cadence.
	SyncInterval time.Duration

	// RequestTimeout bounds each gateway call.
	RequestTimeout time.Duration

	// OnlineCheckInterval is how often the client probes server
	// reachability.
	OnlineCheckInterval time.Duration
}

const (
	defaultConfigPath     = "~/.config/certsync/config.toml"
	defaultDatabasePath   = "~/.local/share/certsync/certsync.db"
	defaultServerURL      = "http://127.0.0.1:8080"
	defaultSyncInterval   = 30 * time.Second
	defaultRequestTimeout = 12 * time.Second
	defaultOnlineCheck    = 15 * time.Second
)

// Load locates and parses the config file. An absent file yields defaults;
// an unreadable or malformed one is an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServerURL:           defaultServerURL,
		DatabasePath:        mustExpand(defaultDatabasePath),
		SyncInterval:        defaultSyncInterval,
		RequestTimeout:      defaultRequestTimeout,
		OnlineCheckInterval: defaultOnlineCheck,
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	var raw struct {
		ServerURL           string `toml:"server_url"`
		DatabasePath        string `toml:"database_path"`
		SyncInterval        string `toml:"sync_interval"`
		RequestTimeout      string `toml:"request_timeout"`
		OnlineCheckInterval string `toml:"online_check_interval"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ServerURL); v != "" {
		cfg.ServerURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.DatabasePath); v != "" {
		cfg.DatabasePath = mustExpand(v)
	}
	if err := overlayDuration(&cfg.SyncInterval, raw.SyncInterval); err != nil {
		return Config{}, fmt.Errorf("parse sync_interval: %w", err)
	}
	if err := overlayDuration(&cfg.RequestTimeout, raw.RequestTimeout); err != nil {
		return Config{}, fmt.Errorf("parse request_timeout: %w", err)
	}
	if err := overlayDuration(&cfg.OnlineCheckInterval, raw.OnlineCheckInterval); err != nil {
		return Config{}, fmt.Errorf("parse online_check_interval: %w", err)
	}

	return cfg, nil
}

func overlayDuration(dst *time.Duration, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
