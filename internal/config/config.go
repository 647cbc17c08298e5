/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration for the notes board tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables (optionally from a .env file) are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version" validate:"gte=1"`
	Board         BoardConfig   `yaml:"board"`
	Server        ServerConfig  `yaml:"server"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// BoardConfig describes the canvas the items live on.
type BoardConfig struct {
	Width        float64 `yaml:"width" validate:"gt=0"`
	Height       float64 `yaml:"height" validate:"gt=0"`
	Clamp        bool    `yaml:"clamp"`
	HistoryDepth int     `yaml:"history_depth" validate:"gte=1,lte=1000"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr" validate:"required"`
	ImportTimeoutMs int    `yaml:"import_timeout_ms" validate:"gte=100"`
	MaxImportBytes  int64  `yaml:"max_import_bytes" validate:"gte=1024"`

	// Workspace, when set, is saved after every mutating request.
	Workspace   string   `yaml:"workspace"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type BackendConfig struct {
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gte=0"`

	// The access token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Board:         BoardConfig{Width: 1280, Height: 800, Clamp: true, HistoryDepth: 50},
		Server:        ServerConfig{Addr: ":8080", ImportTimeoutMs: 5000, MaxImportBytes: 1 << 20},
		Backend:       BackendConfig{TimeoutMs: 10000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvBoardWidth   = "NB_BOARD_WIDTH"
	EnvBoardHeight  = "NB_BOARD_HEIGHT"
	EnvBoardClamp   = "NB_BOARD_CLAMP"
	EnvHistoryDepth = "NB_HISTORY_DEPTH"
	EnvServerAddr   = "NB_ADDR"
	EnvWorkspace    = "NB_WORKSPACE"
	EnvPGDSN        = "NB_PG_DSN"
	EnvLogLevel     = "NB_LOG_LEVEL"
	EnvLogFormat    = "NB_LOG_FORMAT"
	EnvLogSource    = "NB_LOG_SOURCE"
	EnvLogFile      = "NB_LOG_FILE"
	// EnvConfigPath points Load at an explicit YAML file.
	EnvConfigPath = "NB_CONFIG"
)

var validate = validator.New()

// Validate checks field constraints.
func (c AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "NotesBoard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "NotesBoard")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "notesboard")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "notesboard")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present) over the defaults, merges environment
// overrides (a .env file in the working directory is honoured) and validates the result.
// A malformed config file is an error; a missing one is not.
func Load() (AppConfig, error) {
	_ = godotenv.Load()
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config YAML to ConfigPath.
func Save(cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Board.Width > 0 {
		dst.Board.Width = src.Board.Width
	}
	if src.Board.Height > 0 {
		dst.Board.Height = src.Board.Height
	}
	dst.Board.Clamp = src.Board.Clamp
	if src.Board.HistoryDepth > 0 {
		dst.Board.HistoryDepth = src.Board.HistoryDepth
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if src.Server.ImportTimeoutMs > 0 {
		dst.Server.ImportTimeoutMs = src.Server.ImportTimeoutMs
	}
	if src.Server.MaxImportBytes > 0 {
		dst.Server.MaxImportBytes = src.Server.MaxImportBytes
	}
	if s := strings.TrimSpace(src.Server.Workspace); s != "" {
		dst.Server.Workspace = s
	}
	if len(src.Server.CORSOrigins) > 0 {
		dst.Server.CORSOrigins = append([]string(nil), src.Server.CORSOrigins...)
	}
	if s := strings.TrimSpace(src.Backend.DSN); s != "" {
		dst.Backend.DSN = s
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v, ok := envFloat(EnvBoardWidth); ok {
		cfg.Board.Width = v
	}
	if v, ok := envFloat(EnvBoardHeight); ok {
		cfg.Board.Height = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBoardClamp)); v != "" {
		cfg.Board.Clamp = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Board.HistoryDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.Server.Workspace = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"board.width":         EnvBoardWidth,
		"board.height":        EnvBoardHeight,
		"board.clamp":         EnvBoardClamp,
		"board.history_depth": EnvHistoryDepth,
		"server.addr":         EnvServerAddr,
		"server.workspace":    EnvWorkspace,
		"backend.dsn":         EnvPGDSN,
		"logging.level":       EnvLogLevel,
		"logging.format":      EnvLogFormat,
		"logging.source":      EnvLogSource,
		"logging.file":        EnvLogFile,
	}
	name, ok := names[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

func envFloat(name string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}
