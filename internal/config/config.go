/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user
// scope, an optional .env file and VSP_* environment overrides. The backend
// token is kept in the OS keyring, never in the YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written as config_version. Bump it when the structure
// changes in a backward-incompatible way.
const CurrentVersion = 1

// MaxRecent bounds General.RecentProjects.
const MaxRecent = 10

type GeneralConfig struct {
	RecentProjects  []string `yaml:"recent_projects"`
	AutosaveSeconds int      `yaml:"autosave_seconds"`
	MaxUndo         int      `yaml:"max_undo"`
	TelemetryOptIn  bool     `yaml:"telemetry_opt_in"`
}

type ExportConfig struct {
	Renderer  string `yaml:"renderer"` // "fpdf" | "canvas"
	Language  string `yaml:"language"` // label language: "en" | "es"
	OutputDir string `yaml:"output_dir"`
	Preset    string `yaml:"preset"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	// Secret signs API tokens. It only comes from the environment.
	Secret string `yaml:"-"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// DSN is the Postgres connection string used by "villo serve".
	DSN string `yaml:"dsn"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration persisted to a YAML file.
// Environment variables are treated as read-only overrides at runtime.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Export        ExportConfig  `yaml:"export"`
	Server        ServerConfig  `yaml:"server"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{AutosaveSeconds: 30, MaxUndo: 50},
		Export:        ExportConfig{Renderer: "fpdf", Language: "en", OutputDir: "exports", Preset: "print"},
		Server:        ServerConfig{Addr: ":8080", TokenTTLMinutes: 60},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "text"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir        = "VSP_CONFIG_DIR"
	EnvAutosaveSeconds  = "VSP_AUTOSAVE_SECONDS"
	EnvMaxUndo          = "VSP_MAX_UNDO"
	EnvTelemetryOptIn   = "VSP_TELEMETRY_OPT_IN"
	EnvExportRenderer   = "VSP_EXPORT_RENDERER"
	EnvExportLanguage   = "VSP_EXPORT_LANG"
	EnvExportDir        = "VSP_EXPORT_DIR"
	EnvServerAddr       = "VSP_SERVER_ADDR"
	EnvServerSecret     = "VSP_SERVER_SECRET"
	EnvBackendURL       = "VSP_BACKEND_URL"
	EnvBackendTimeoutMs = "VSP_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "VSP_TLS_INSECURE"
	EnvBackendToken     = "VSP_BACKEND_TOKEN"
	EnvDatabaseDSN      = "VSP_DATABASE_DSN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "VSP_LOG_LEVEL"
	EnvLogFormat = "VSP_LOG_FORMAT"
	EnvLogSource = "VSP_LOG_SOURCE"
	EnvLogFile   = "VSP_LOG_FILE"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if d := strings.TrimSpace(os.Getenv(EnvConfigDir)); d != "" {
		return filepath.Join(d, "config.yaml"), nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Villo")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Villo")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "villo")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "villo")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. With no arguments it reads ".env" in the working directory.
func LoadDotEnv(files ...string) error {
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
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads the .env file and the user config file (if present), applies
// defaults, and merges environment overrides. It also returns the backend
// token from VSP_BACKEND_TOKEN or the keyring (kept outside the struct).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	if err := LoadDotEnv(); err != nil {
		return cfg, "", err
	}
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok := strings.TrimSpace(os.Getenv(EnvBackendToken))
	if tok == "" {
		tok, _ = Token()
	}
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS
// keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cfg.ConfigVersion = CurrentVersion
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := SetToken(token); err != nil {
			return err
		}
	}
	return nil
}

// AddRecent moves path to the front of the recent projects list.
func (c *AppConfig) AddRecent(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	list := slices.DeleteFunc(slices.Clone(c.General.RecentProjects), func(p string) bool { return p == path })
	list = append([]string{path}, list...)
	if len(list) > MaxRecent {
		list = list[:MaxRecent]
	}
	c.General.RecentProjects = list
}

// AutosaveInterval returns General.AutosaveSeconds as a duration; zero or
// negative values disable autosave.
func (g GeneralConfig) AutosaveInterval() time.Duration {
	if g.AutosaveSeconds <= 0 {
		return 0
	}
	return time.Duration(g.AutosaveSeconds) * time.Second
}

// EffectiveTimeout returns the backend timeout, falling back to the default.
func (b BackendConfig) EffectiveTimeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// TokenTTL returns the lifetime of API tokens issued by the server.
func (s ServerConfig) TokenTTL() time.Duration {
	if s.TokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.TokenTTLMinutes) * time.Minute
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if len(src.General.RecentProjects) > 0 {
		dst.General.RecentProjects = src.General.RecentProjects
	}
	if src.General.AutosaveSeconds != 0 {
		dst.General.AutosaveSeconds = src.General.AutosaveSeconds
	}
	if src.General.MaxUndo > 0 {
		dst.General.MaxUndo = src.General.MaxUndo
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if s := strings.ToLower(strings.TrimSpace(src.Export.Renderer)); s != "" {
		dst.Export.Renderer = s
	}
	if s := strings.ToLower(strings.TrimSpace(src.Export.Language)); s != "" {
		dst.Export.Language = s
	}
	if s := strings.TrimSpace(src.Export.OutputDir); s != "" {
		dst.Export.OutputDir = s
	}
	if s := strings.ToLower(strings.TrimSpace(src.Export.Preset)); s != "" {
		dst.Export.Preset = s
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if src.Server.TokenTTLMinutes > 0 {
		dst.Server.TokenTTLMinutes = src.Server.TokenTTLMinutes
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	if src.Backend.DSN != "" {
		dst.Backend.DSN = src.Backend.DSN
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string, lower bool) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if lower {
			v = strings.ToLower(v)
		}
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	envInt(EnvAutosaveSeconds, &cfg.General.AutosaveSeconds)
	envInt(EnvMaxUndo, &cfg.General.MaxUndo)
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	envString(EnvExportRenderer, &cfg.Export.Renderer, true)
	envString(EnvExportLanguage, &cfg.Export.Language, true)
	envString(EnvExportDir, &cfg.Export.OutputDir, false)
	envString(EnvServerAddr, &cfg.Server.Addr, false)
	envString(EnvServerSecret, &cfg.Server.Secret, false)
	envString(EnvBackendURL, &cfg.Backend.BaseURL, false)
	envInt(EnvBackendTimeoutMs, &cfg.Backend.TimeoutMs)
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = envBool(v)
	}
	envString(EnvDatabaseDSN, &cfg.Backend.DSN, false)
	// logging overrides
	envString(EnvLogLevel, &cfg.Logging.Level, true)
	envString(EnvLogFormat, &cfg.Logging.Format, true)
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	envString(EnvLogFile, &cfg.Logging.File, false)
}

var envKeys = map[string]string{
	"general.autosave_seconds": EnvAutosaveSeconds,
	"general.max_undo":         EnvMaxUndo,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"export.renderer":          EnvExportRenderer,
	"export.language":          EnvExportLanguage,
	"export.output_dir":        EnvExportDir,
	"server.addr":              EnvServerAddr,
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"backend.dsn":              EnvDatabaseDSN,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
