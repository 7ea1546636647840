package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.Stealth)
	assert.Equal(t, "gpt-5", cfg.LLM.Model)
	assert.Equal(t, "gpt-4o", cfg.LLM.FallbackModel)
	assert.Equal(t, 50, cfg.Extractor.MinLength)
	assert.Equal(t, 8000, cfg.Extractor.MaxLength)
	assert.Equal(t, 2*time.Second, cfg.Scraper.RetryBaseDelay)
	assert.NotEmpty(t, cfg.Auth.AuthenticatedSelectors)
	assert.True(t, strings.HasSuffix(cfg.Session.Dir, filepath.Join(AppDirName, "browser-profile")))
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[scraper]
retry_base_delay = "500ms"
artifact_dir = "/tmp/artifacts"

[llm]
model = "gpt-4.1"

[auth]
identifier = "file@example.com"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PROFILESCAN_LOGIN_ID", "env@example.com")
	t.Setenv("PROFILESCAN_LOGIN_SECRET", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.RetryBaseDelay)
	assert.Equal(t, "/tmp/artifacts", cfg.Scraper.ArtifactDir)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, "env@example.com", cfg.Auth.Identifier, "env overrides file")
	assert.Equal(t, "hunter2", cfg.Auth.Secret)
	// Untouched defaults survive the file overlay.
	assert.Equal(t, "gpt-4o", cfg.LLM.FallbackModel)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	t.Setenv("PROFILESCAN_CONFIG", "")
	t.Setenv("PROFILESCAN_LLM_PROVIDER", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestUseProvider_Gemini(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg := Default()

	cfg.UseProvider("gemini")

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.FallbackModel)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PS_TEST_INT", "7")
	t.Setenv("PS_TEST_BAD_INT", "seven")
	t.Setenv("PS_TEST_BOOL", "true")
	t.Setenv("PS_TEST_DUR", "3s")
	t.Setenv("PS_TEST_SLICE", " a, b ,,c ")

	assert.Equal(t, 7, envIntOr("PS_TEST_INT", 1))
	assert.Equal(t, 1, envIntOr("PS_TEST_BAD_INT", 1))
	assert.True(t, envBoolOr("PS_TEST_BOOL", false))
	assert.Equal(t, 3*time.Second, envDurationOr("PS_TEST_DUR", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, envSliceOr("PS_TEST_SLICE", nil))
	assert.Equal(t, "x", envOr("PS_TEST_UNSET", "x"))
}
