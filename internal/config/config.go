// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete bankbot configuration.
type Config struct {
	// DataDir holds the history, FAQ and log files (default ~/.bankbot).
	DataDir string `toml:"data_dir" json:"data_dir"`
	// HistoryFile is the chat history file, relative to DataDir unless absolute.
	HistoryFile string `toml:"history_file" json:"history_file"`
	// FAQFile is the FAQ mapping (.json, .yaml or .yml), relative to DataDir unless absolute.
	FAQFile string `toml:"faq_file" json:"faq_file"`

	Generation GenerationConfig `toml:"generation" json:"generation"`
	Ollama     OllamaConfig     `toml:"ollama" json:"ollama"`
	OpenAI     OpenAIConfig     `toml:"openai" json:"openai"`
	Gemini     GeminiConfig     `toml:"gemini" json:"gemini"`
	Banking    BankingConfig    `toml:"banking" json:"banking"`
	Server     ServerConfig     `toml:"server" json:"server"`
	UI         UIConfig         `toml:"ui" json:"ui"`
	Log        LogConfig        `toml:"log" json:"log"`
}

// GenerationConfig selects the reply provider.
type GenerationConfig struct {
	// Provider is one of "ollama", "openai", "gemini".
	Provider string `toml:"provider" json:"provider"`
	// Model is the provider model name. Empty uses the provider default.
	Model string `toml:"model" json:"model"`
	// SystemPrompt replaces the built-in banking persona when set.
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	// TimeoutSecs bounds a single reply.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// OllamaConfig contains local Ollama configuration.
type OllamaConfig struct {
	URL string `toml:"url" json:"url"`
}

// OpenAIConfig configures any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	APIKey  string `toml:"api_key" json:"api_key"`
}

// GeminiConfig configures the Gemini API.
type GeminiConfig struct {
	APIKey  string `toml:"api_key" json:"api_key"`
	BaseURL string `toml:"base_url" json:"base_url"`
}

// BankingConfig tunes the domain filter.
type BankingConfig struct {
	// Keywords replaces the built-in keyword list when non-empty.
	Keywords []string `toml:"keywords" json:"keywords"`
	// Refusal is the reply to out-of-domain questions.
	Refusal string `toml:"refusal" json:"refusal"`
	// Greeting is the first message of every new conversation.
	Greeting string `toml:"greeting" json:"greeting"`
}

// ServerConfig configures `bankbot serve`.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
	// RateLimitPerMin is the per-client request budget (0 disables limiting).
	RateLimitPerMin int `toml:"rate_limit_per_min" json:"rate_limit_per_min"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes" json:"max_body_bytes"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme    string `toml:"theme" json:"theme"`
	ShowHelp bool   `toml:"show_help" json:"show_help"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	// Level is a logrus level name.
	Level string `toml:"level" json:"level"`
	// Format is "text" or "json".
	Format string `toml:"format" json:"format"`
	// File receives logs in TUI mode, relative to DataDir unless absolute.
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	DefaultHistoryFile = "chat_history.json"
	DefaultFAQFile     = "banking_faq.json"
	DefaultLogFile     = "bankbot.log"
	DefaultOllamaURL   = "http://127.0.0.1:11434"
	DefaultServerAddr  = "127.0.0.1:8080"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DataDir:     "",
		HistoryFile: DefaultHistoryFile,
		FAQFile:     DefaultFAQFile,

		Generation: GenerationConfig{
			Provider:    "ollama",
			Model:       "",
			TimeoutSecs: 120,
		},

		Ollama: OllamaConfig{
			URL: DefaultOllamaURL,
		},

		Server: ServerConfig{
			Addr:            DefaultServerAddr,
			RateLimitPerMin: 60,
			MaxBodyBytes:    64 << 10,
		},

		UI: UIConfig{
			Theme:    "dark",
			ShowHelp: true,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   DefaultLogFile,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the bankbot configuration directory. BANKBOT_HOME
// overrides the default ~/.bankbot.
func ConfigDir() (string, error) {
	if dir := os.Getenv("BANKBOT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".bankbot"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ResolvedDataDir returns DataDir, or the config directory when unset.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return expandHome(c.DataDir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "."
	}
	return dir
}

// HistoryPath returns the absolute or DataDir-relative history file path.
func (c *Config) HistoryPath() string {
	return c.inDataDir(c.HistoryFile)
}

// FAQPath returns the FAQ file path.
func (c *Config) FAQPath() string {
	return c.inDataDir(c.FAQFile)
}

// LogPath returns the TUI log file path.
func (c *Config) LogPath() string {
	return c.inDataDir(c.Log.File)
}

// Timeout returns the generation timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSecs) * time.Second
}

func (c *Config) inDataDir(name string) string {
	name = expandHome(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ResolvedDataDir(), name)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files hold API keys and must be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return errors.Wrapf(err, "fix insecure permissions (was %o)", mode)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(tomlPath); statErr == nil {
		return LoadFromPath(tomlPath)
	}

	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(jsonPath); statErr == nil {
		return LoadFromPath(jsonPath)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file with full validation.
// Files ending in .json are decoded as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "load JSON config from %s", path)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "load TOML config from %s", path)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("could not ensure secure config permissions")
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrap(err, "decode TOML file")
	}
	for _, key := range meta.Undecoded() {
		log.WithFields(log.Fields{"path": path, "key": key.String()}).Warn("unknown config key")
	}
	return fillDefaults(cfg)
}

// LoadJSON decodes a JSON file into cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("could not ensure secure config permissions")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read JSON file")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "decode JSON file")
	}
	return fillDefaults(cfg)
}

// fillDefaults fills in values a file set to empty.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.HistoryFile == "" {
		cfg.HistoryFile = defaults.HistoryFile
	}
	if cfg.FAQFile == "" {
		cfg.FAQFile = defaults.FAQFile
	}

	// Generation
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = defaults.Generation.Provider
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = defaults.Generation.TimeoutSecs
	}

	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = defaults.Ollama.URL
	}

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaults.Log.File
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML.
// SECURITY: Config files are written 0600 (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# bankbot configuration file")
	fmt.Fprintln(&buf, "# Generated by bankbot - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON.
// SECURITY: Config files are written 0600 (owner read/write only).
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validProviders = []string{"ollama", "openai", "gemini"}
	validThemes    = []string{"dark", "light", "auto"}
	validFormats   = []string{"text", "json"}
)

// Validate validates the configuration and returns ValidateErrors when any
// field is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !contains(validProviders, c.Generation.Provider) {
		add("generation.provider", "must be one of %s, got %q", strings.Join(validProviders, ", "), c.Generation.Provider)
	}
	if c.Generation.Provider == "openai" && c.Generation.Model == "" {
		add("generation.model", "is required for the openai provider")
	}
	if c.Generation.TimeoutSecs < 1 || c.Generation.TimeoutSecs > 3600 {
		add("generation.timeout_secs", "must be between 1 and 3600, got %d", c.Generation.TimeoutSecs)
	}

	if err := validateURL(c.Ollama.URL); err != nil {
		add("ollama.url", "%v", err)
	}
	if c.OpenAI.BaseURL != "" {
		if err := validateURL(c.OpenAI.BaseURL); err != nil {
			add("openai.base_url", "%v", err)
		}
	}
	if c.Gemini.BaseURL != "" {
		if err := validateURL(c.Gemini.BaseURL); err != nil {
			add("gemini.base_url", "%v", err)
		}
	}

	if c.HistoryFile == "" {
		add("history_file", "must not be empty")
	}

	if c.Server.RateLimitPerMin < 0 {
		add("server.rate_limit_per_min", "must not be negative, got %d", c.Server.RateLimitPerMin)
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "must not be negative, got %d", c.Server.MaxBodyBytes)
	}

	if !contains(validThemes, c.UI.Theme) {
		add("ui.theme", "must be one of %s, got %q", strings.Join(validThemes, ", "), c.UI.Theme)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}
	if !contains(validFormats, c.Log.Format) {
		add("log.format", "must be one of %s, got %q", strings.Join(validFormats, ", "), c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - BANKBOT_DATA_DIR: overrides data_dir
//   - BANKBOT_PROVIDER: overrides generation.provider
//   - BANKBOT_MODEL: overrides generation.model
//   - BANKBOT_TIMEOUT: overrides generation.timeout_secs
//   - BANKBOT_OLLAMA_URL: overrides ollama.url
//   - BANKBOT_OPENAI_BASE_URL, BANKBOT_OPENAI_API_KEY (or OPENAI_API_KEY)
//   - BANKBOT_GEMINI_API_KEY (or GEMINI_API_KEY)
//   - BANKBOT_ADDR: overrides server.addr
//   - BANKBOT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	setString := func(dst *string, names ...string) {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.DataDir, "BANKBOT_DATA_DIR")
	setString(&c.Generation.Provider, "BANKBOT_PROVIDER")
	setString(&c.Generation.Model, "BANKBOT_MODEL")
	setString(&c.Ollama.URL, "BANKBOT_OLLAMA_URL")
	setString(&c.OpenAI.BaseURL, "BANKBOT_OPENAI_BASE_URL")
	setString(&c.OpenAI.APIKey, "BANKBOT_OPENAI_API_KEY", "OPENAI_API_KEY")
	setString(&c.Gemini.APIKey, "BANKBOT_GEMINI_API_KEY", "GEMINI_API_KEY")
	setString(&c.Server.Addr, "BANKBOT_ADDR")
	setString(&c.Log.Level, "BANKBOT_LOG_LEVEL")

	if timeout := os.Getenv("BANKBOT_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil {
			c.Generation.TimeoutSecs = secs
		} else {
			log.WithField("value", timeout).Warn("ignoring invalid BANKBOT_TIMEOUT")
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "generation.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type; list fields take a comma-separated string.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"data_dir",
		"history_file",
		"faq_file",
		"generation.provider",
		"generation.model",
		"generation.system_prompt",
		"generation.timeout_secs",
		"ollama.url",
		"openai.base_url",
		"openai.api_key",
		"gemini.api_key",
		"gemini.base_url",
		"banking.keywords",
		"banking.refusal",
		"banking.greeting",
		"server.addr",
		"server.rate_limit_per_min",
		"server.max_body_bytes",
		"ui.theme",
		"ui.show_help",
		"log.level",
		"log.format",
		"log.file",
	}
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Banking.Keywords != nil {
		clone.Banking.Keywords = append([]string(nil), c.Banking.Keywords...)
	}
	return &clone
}

// Redacted returns a copy with API keys masked.
// SECURITY: Secrets must not appear in logs or `config show` output.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.OpenAI.APIKey != "" {
		safe.OpenAI.APIKey = "[REDACTED]"
	}
	if safe.Gemini.APIKey != "" {
		safe.Gemini.APIKey = "[REDACTED]"
	}
	return safe
}

// String returns a redacted JSON rendering of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
