// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Session SessionConfig `toml:"session"`
	Fusion  FusionConfig  `toml:"fusion"`
	Service ServiceConfig `toml:"service"`
	Server  ServerConfig  `toml:"server"`
	Cache   CacheConfig   `toml:"cache"`
	Log     LogConfig     `toml:"log"`
}

// SessionConfig maps reading-session settings.
type SessionConfig struct {
	WindowMs *int64 `toml:"window-ms"`
}

// FusionConfig maps confusion-fusion settings.
type FusionConfig struct {
	FaceStalenessMs *int64 `toml:"face-staleness-ms"`
}

// ServiceConfig maps inference service settings.
type ServiceConfig struct {
	URL            *string `toml:"url"`
	Timeout        *string `toml:"timeout"`
	Fallback       *string `toml:"fallback"`
	SendFaceFrames *bool   `toml:"send-face-frames"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Addr    *string  `toml:"addr"`
	Origins []string `toml:"origins"`
}

// CacheConfig maps analysis cache settings.
type CacheConfig struct {
	Enabled *bool   `toml:"enabled"`
	Path    *string `toml:"path"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
