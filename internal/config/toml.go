// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Game    GameConfig    `toml:"game"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// GameConfig maps game-related settings.
type GameConfig struct {
	Catalog        *string   `toml:"catalog"`
	Rounds         *int      `toml:"rounds"`
	Mode           *string   `toml:"mode"`
	Albums         *[]string `toml:"albums"`
	Adaptive       *string   `toml:"adaptive"`
	Snippet        *string   `toml:"snippet"`
	RetryDelay     *string   `toml:"retry-delay"`
	Player         *string   `toml:"player"`
	TrackIncorrect *bool     `toml:"track-incorrect"`
}

// StorageConfig maps performance storage settings.
type StorageConfig struct {
	Backend *string `toml:"backend"`
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
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
