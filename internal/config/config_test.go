// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BANKBOT_HOME", dir)
	for _, name := range []string{
		"BANKBOT_DATA_DIR", "BANKBOT_PROVIDER", "BANKBOT_MODEL", "BANKBOT_TIMEOUT",
		"BANKBOT_OLLAMA_URL", "BANKBOT_OPENAI_BASE_URL", "BANKBOT_OPENAI_API_KEY",
		"OPENAI_API_KEY", "BANKBOT_GEMINI_API_KEY", "GEMINI_API_KEY",
		"BANKBOT_ADDR", "BANKBOT_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
	return dir
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ollama", cfg.Generation.Provider)
	assert.Equal(t, DefaultOllamaURL, cfg.Ollama.URL)
	assert.Equal(t, DefaultHistoryFile, cfg.HistoryFile)
	assert.Equal(t, DefaultFAQFile, cfg.FAQFile)
	assert.Equal(t, 120, cfg.Generation.TimeoutSecs)
}

func TestConfig_LoadWithoutFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultHistoryFile), cfg.HistoryPath())
	assert.Equal(t, filepath.Join(dir, DefaultFAQFile), cfg.FAQPath())
	assert.Equal(t, filepath.Join(dir, DefaultLogFile), cfg.LogPath())
}

func TestConfig_LoadTOML(t *testing.T) {
	dir := isolate(t)
	content := `
data_dir = "/srv/bankbot"
faq_file = "faq.yaml"

[generation]
provider = "openai"
model = "gpt-4o-mini"
timeout_secs = 30

[openai]
base_url = "http://localhost:1234/v1"

[banking]
keywords = ["bank", "loan"]
refusal = "Banking only."
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
	assert.Equal(t, 30, cfg.Generation.TimeoutSecs)
	assert.Equal(t, []string{"bank", "loan"}, cfg.Banking.Keywords)
	assert.Equal(t, "Banking only.", cfg.Banking.Refusal)
	assert.Equal(t, "/srv/bankbot/faq.yaml", cfg.FAQPath())
	assert.Equal(t, "/srv/bankbot/chat_history.json", cfg.HistoryPath(), "unset keys keep defaults")
	assert.Equal(t, DefaultOllamaURL, cfg.Ollama.URL)

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions tightened on load")
}

func TestConfig_LoadJSONFallback(t *testing.T) {
	dir := isolate(t)
	content := `{"generation": {"model": "llama3.1"}, "ui": {"theme": "light"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", cfg.Generation.Model)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.Equal(t, "ollama", cfg.Generation.Provider)
}

func TestConfig_LoadInvalid(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is = = not toml"), 0600))
	_, err := Load()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[generation]\nprovider = \"carrier-pigeon\"\n"), 0600))
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation.provider")
}

func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("BANKBOT_PROVIDER", "gemini")
	t.Setenv("BANKBOT_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("BANKBOT_TIMEOUT", "45")
	t.Setenv("BANKBOT_DATA_DIR", "/data")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Generation.Model)
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.Equal(t, 45, cfg.Generation.TimeoutSecs)
	assert.Equal(t, "/data/chat_history.json", cfg.HistoryPath())
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid default config", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.Generation.Provider = "invalid" }, wantErr: "generation.provider"},
		{name: "openai without model", mutate: func(c *Config) { c.Generation.Provider = "openai" }, wantErr: "generation.model"},
		{name: "openai with model", mutate: func(c *Config) {
			c.Generation.Provider = "openai"
			c.Generation.Model = "gpt-4o"
		}},
		{name: "zero timeout", mutate: func(c *Config) { c.Generation.TimeoutSecs = 0 }, wantErr: "generation.timeout_secs"},
		{name: "bad ollama url", mutate: func(c *Config) { c.Ollama.URL = "ftp://host" }, wantErr: "ollama.url"},
		{name: "ollama url without host", mutate: func(c *Config) { c.Ollama.URL = "http://" }, wantErr: "ollama.url"},
		{name: "bad openai url", mutate: func(c *Config) { c.OpenAI.BaseURL = "localhost:1234" }, wantErr: "openai.base_url"},
		{name: "negative rate limit", mutate: func(c *Config) { c.Server.RateLimitPerMin = -1 }, wantErr: "server.rate_limit_per_min"},
		{name: "invalid theme", mutate: func(c *Config) { c.UI.Theme = "neon" }, wantErr: "ui.theme"},
		{name: "invalid log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "invalid log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.wantErr, verrs[0].Field)
		})
	}
}

func TestConfig_SaveTOMLRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Generation.Model = "llama3.2:3b"
	cfg.Banking.Keywords = []string{"bank", "atm"}
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Generation, loaded.Generation)
	assert.Equal(t, cfg.Banking.Keywords, loaded.Banking.Keywords)
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("generation.provider")
	require.NoError(t, err)
	assert.Equal(t, "ollama", val)

	require.NoError(t, cfg.Set("generation.timeout_secs", "30"))
	assert.Equal(t, 30, cfg.Generation.TimeoutSecs)

	require.NoError(t, cfg.Set("ui.show_help", "false"))
	assert.False(t, cfg.UI.ShowHelp)

	require.NoError(t, cfg.Set("banking.keywords", "bank, loan,,atm"))
	assert.Equal(t, []string{"bank", "loan", "atm"}, cfg.Banking.Keywords)

	_, err = cfg.Get("invalid.key")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("generation.timeout_secs", "soon"))
	assert.Error(t, cfg.Set("generation.provider.name", "x"))
}

func TestConfig_AllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_CloneAndRedact(t *testing.T) {
	cfg := Default()
	cfg.OpenAI.APIKey = "sk-123"
	cfg.Banking.Keywords = []string{"bank"}

	clone := cfg.Clone()
	clone.Banking.Keywords[0] = "changed"
	assert.Equal(t, "bank", cfg.Banking.Keywords[0])

	assert.NotContains(t, cfg.String(), "sk-123")
	assert.Equal(t, "sk-123", cfg.OpenAI.APIKey, "String does not modify the original")
}

func TestFlags_OnlyChangedFlagsApply(t *testing.T) {
	isolate(t)

	var flags Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--model", "llama3.1", "--timeout", "10"}))

	cfg, err := flags.Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", cfg.Generation.Model)
	assert.Equal(t, 10, cfg.Generation.TimeoutSecs)
	assert.Equal(t, "ollama", cfg.Generation.Provider, "unset flag leaves the default")
}

func TestFlags_ExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log": {"level": "debug"}}`), 0600))

	var flags Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--log-format", "json"}))

	cfg, err := flags.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, fs.Parse([]string{"--provider", "nope"}))
	_, err = flags.Load()
	assert.Error(t, err)
}
