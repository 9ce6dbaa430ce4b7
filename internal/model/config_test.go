package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
imap:
  host: imap.example.com
  port: "993"
  username: bot@example.com
  password: secret
  tls: true
smtp:
  host: smtp.example.com
  port: "587"
  username: bot@example.com
  password: secret
  starttls: true
company_name: Acme
support_email: support@example.com
folders:
  - name: Support
    documentation_file: docs/support.md
    prompt: "Answer using: {docs}"
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1", cfg.AI.BaseURL)
	assert.Equal(t, 2048, cfg.AI.MaxTokens)
	assert.Equal(t, 60, cfg.Send.TimeoutSec)
	assert.True(t, cfg.Send.AppendSentCopy)
	assert.False(t, cfg.Send.MarkAmbiguous)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.Len(t, cfg.Folders, 1)
	assert.Equal(t, 300, cfg.Folders[0].PollIntervalSec, "missing interval gets the default")
}

func TestLoadConfigResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	resolved := cfg.ResolvePath(cfg.Folders[0].DocumentationFile)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "docs", "support.md"), resolved)

	// Absolute paths pass through untouched.
	assert.Equal(t, "/etc/docs.md", cfg.ResolvePath("/etc/docs.md"))
}

func TestLoadConfigRejectsDuplicateFolders(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalConfig+`
  - name: Support
    prompt: duplicate
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate folder")
}

func TestLoadConfigRequiresFolders(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
imap:
  host: imap.example.com
smtp:
  host: smtp.example.com
  username: bot@example.com
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one folder")
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestFromFallsBackToSMTPUsername(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", cfg.From())

	cfg.FromAddress = "helpdesk@example.com"
	assert.Equal(t, "helpdesk@example.com", cfg.From())
}
