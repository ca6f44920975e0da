package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "11434", cfg.Server.Port)
	assert.True(t, cfg.Auth.Enforce)
	assert.True(t, cfg.Auth.TrustFirstToken)
	assert.Equal(t, "puku-embed", cfg.Puku.EmbeddingsModel)
	assert.Equal(t, "puku-fim", cfg.Puku.FIMModel)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	os.Clearenv()
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUTH_ENFORCE", "false")
	t.Setenv("PUKU_EMBEDDINGS_MODEL", "nomic-embed-text")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Auth.Enforce)
	assert.Equal(t, "nomic-embed-text", cfg.Puku.EmbeddingsModel)
}

func TestLoadConfig_APIKeyResolution(t *testing.T) {
	os.Clearenv()
	t.Setenv("TEST_API_KEY", "sk-test-12345")

	dir := t.TempDir()
	configContent := `
providers:
  - id: "test-provider"
    name: "Test"
    type: "openai"
    api_key: "ENV:TEST_API_KEY"
    enabled: true
`
	err := os.WriteFile(dir+"/config.yaml", []byte(configContent), 0o644)
	assert.NoError(t, err)

	cwd, err := os.Getwd()
	assert.NoError(t, err)
	assert.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-test-12345", cfg.Providers[0].APIKey)
}
