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

// clearEnv blanks every recognised variable; viper treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(strings.ToUpper(k), "")
	}
}

func writeEnvFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "id-123")
	t.Setenv("CLIENT_SECRET", "shh")
	t.Setenv("REDIRECT_URI", "http://localhost:3000/oauth2callback")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "id-123", cfg.ClientID)
	assert.Equal(t, "shh", cfg.ClientSecret)
	assert.Equal(t, "http://localhost:3000/oauth2callback", cfg.RedirectURI)

	assert.Equal(t, ProviderGmail, cfg.Provider)
	assert.Equal(t, BackendFile, cfg.TokenBackend)
	assert.Equal(t, "text", cfg.Output)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, MaxPageSize, cfg.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.AuthTimeout)
	assert.Equal(t, "token.json", filepath.Base(cfg.TokenPath))
	assert.Empty(t, cfg.CachePath)
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)
	p := writeEnvFile(t, "CLIENT_ID=file-id\nCLIENT_SECRET=file-secret\nREDIRECT_URI=http://localhost:3000\nPAGE_SIZE=100\nAUTH_TIMEOUT=30s\nOUTPUT=JSON\nREFRESH_TOKEN=1//abc\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "file-id", cfg.ClientID)
	assert.Equal(t, "file-secret", cfg.ClientSecret)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.AuthTimeout)
	assert.Equal(t, "1//abc", cfg.RefreshToken)
	assert.Equal(t, "json", cfg.Output)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	p := writeEnvFile(t, "CLIENT_ID=file-id\nCLIENT_SECRET=file-secret\nREDIRECT_URI=http://localhost:3000\n")
	t.Setenv("CLIENT_ID", "env-id")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.ClientID)
	assert.Equal(t, "file-secret", cfg.ClientSecret)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "id")
	t.Setenv("CLIENT_SECRET", "secret")
	t.Setenv("REDIRECT_URI", "http://localhost:3000")

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}

func TestLoad_MissingCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "only-id")

	_, err := Load("")
	var me *MissingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, []string{"CLIENT_SECRET", "REDIRECT_URI"}, me.Keys)
	assert.Contains(t, err.Error(), "CLIENT_SECRET, REDIRECT_URI")
}

func TestLoad_IMAPProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "imap")
	t.Setenv("IMAP_HOST", "imap.example.com")
	t.Setenv("IMAP_USERNAME", "me@example.com")
	t.Setenv("IMAP_PASSWORD", "app-password")
	t.Setenv("IMAP_TLS", "false")
	t.Setenv("IMAP_PORT", "143")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderIMAP, cfg.Provider)
	assert.Equal(t, "imap.example.com:143", cfg.IMAP.Addr())
	assert.False(t, cfg.IMAP.TLS)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
}

func TestLoad_IMAPMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "imap")
	t.Setenv("IMAP_HOST", "imap.example.com")

	_, err := Load("")
	var me *MissingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, []string{"IMAP_USERNAME", "IMAP_PASSWORD"}, me.Keys)
}

func TestValidate_Invalid(t *testing.T) {
	valid := func() Config {
		return Config{
			ClientID: "id", ClientSecret: "s", RedirectURI: "http://localhost:3000",
			Provider: ProviderGmail, TokenBackend: BackendFile, Output: "text",
			LogLevel: "info", PageSize: 500, AuthTimeout: time.Minute,
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"provider", func(c *Config) { c.Provider = "pop3" }, "provider"},
		{"backend", func(c *Config) { c.TokenBackend = "vault" }, "token_backend"},
		{"output", func(c *Config) { c.Output = "xml" }, "output"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"page size low", func(c *Config) { c.PageSize = 0 }, "page_size"},
		{"page size high", func(c *Config) { c.PageSize = 501 }, "page_size"},
		{"timeout", func(c *Config) { c.AuthTimeout = 0 }, "auth_timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			var ie *InvalidError
			require.ErrorAs(t, c.Validate(), &ie)
			assert.Equal(t, tc.key, ie.Key)
		})
	}

	c := valid()
	assert.NoError(t, c.Validate())
}
