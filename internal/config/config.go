package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"

	BackendFile    = "file"
	BackendKeyring = "keyring"

	// MaxPageSize is the largest page Gmail's messages.list accepts.
	MaxPageSize = 500
)

// OutputFormats lists the accepted values of the output key.
var OutputFormats = []string{"text", "table", "json", "yaml"}

// Config is the application configuration. Keys are flat so that the same
// names work in the process environment and in a dotenv file.
type Config struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	RefreshToken string `mapstructure:"refresh_token"` // optional, printed by inboxdomains-setup

	Provider     string        `mapstructure:"provider"`
	TokenPath    string        `mapstructure:"token_path"`
	TokenBackend string        `mapstructure:"token_backend"`
	CachePath    string        `mapstructure:"cache_path"`
	Output       string        `mapstructure:"output"`
	LogLevel     string        `mapstructure:"log_level"`
	PageSize     int           `mapstructure:"page_size"`
	AuthTimeout  time.Duration `mapstructure:"auth_timeout"`

	IMAP IMAP `mapstructure:",squash"`
}

// IMAP holds the settings for the imap provider.
type IMAP struct {
	Host     string `mapstructure:"imap_host"`
	Port     int    `mapstructure:"imap_port"`
	Username string `mapstructure:"imap_username"`
	Password string `mapstructure:"imap_password"`
	TLS      bool   `mapstructure:"imap_tls"`
	Mailbox  string `mapstructure:"imap_mailbox"`
}

// Addr returns host:port.
func (c IMAP) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// keys lists every recognised key; each is bound to its upper-case
// environment variable.
var keys = []string{
	"client_id", "client_secret", "redirect_uri", "refresh_token",
	"provider", "token_path", "token_backend", "cache_path",
	"output", "log_level", "page_size", "auth_timeout",
	"imap_host", "imap_port", "imap_username", "imap_password", "imap_tls", "imap_mailbox",
}

// MissingError is returned when required keys are absent.
type MissingError struct {
	Keys []string // environment variable names
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// InvalidError is returned when a key holds an unusable value.
type InvalidError struct {
	Key   string
	Value string
	Allow string
}

func (e *InvalidError) Error() string {
	if e.Allow != "" {
		return fmt.Sprintf("invalid %s %q (want %s)", strings.ToUpper(e.Key), e.Value, e.Allow)
	}
	return fmt.Sprintf("invalid %s %q", strings.ToUpper(e.Key), e.Value)
}

// DefaultDir returns ~/.config/inboxdomains, or the working directory if the
// home directory cannot be determined.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "inboxdomains")
}

// Load reads configuration from the environment and, if envFile names an
// existing file, from that dotenv file. Environment variables take
// precedence over the file. The result is validated before it is returned.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("provider", ProviderGmail)
	v.SetDefault("token_path", filepath.Join(DefaultDir(), "token.json"))
	v.SetDefault("token_backend", BackendFile)
	v.SetDefault("output", "text")
	v.SetDefault("log_level", "info")
	v.SetDefault("page_size", MaxPageSize)
	v.SetDefault("auth_timeout", 5*time.Minute)
	v.SetDefault("imap_port", 993)
	v.SetDefault("imap_tls", true)
	v.SetDefault("imap_mailbox", "INBOX")

	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.TokenBackend = strings.ToLower(strings.TrimSpace(c.TokenBackend))
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.RedirectURI = strings.TrimSpace(c.RedirectURI)
	c.RefreshToken = strings.TrimSpace(c.RefreshToken)
}

// Validate checks required keys for the selected provider and the ranges of
// the optional ones.
func (c *Config) Validate() error {
	var missing []string
	switch c.Provider {
	case ProviderGmail:
		if c.ClientID == "" {
			missing = append(missing, "CLIENT_ID")
		}
		if c.ClientSecret == "" {
			missing = append(missing, "CLIENT_SECRET")
		}
		if c.RedirectURI == "" {
			missing = append(missing, "REDIRECT_URI")
		}
	case ProviderIMAP:
		if c.IMAP.Host == "" {
			missing = append(missing, "IMAP_HOST")
		}
		if c.IMAP.Username == "" {
			missing = append(missing, "IMAP_USERNAME")
		}
		if c.IMAP.Password == "" {
			missing = append(missing, "IMAP_PASSWORD")
		}
	default:
		return &InvalidError{Key: "provider", Value: c.Provider, Allow: "gmail or imap"}
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	if c.TokenBackend != BackendFile && c.TokenBackend != BackendKeyring {
		return &InvalidError{Key: "token_backend", Value: c.TokenBackend, Allow: "file or keyring"}
	}
	if !contains(OutputFormats, c.Output) {
		return &InvalidError{Key: "output", Value: c.Output, Allow: strings.Join(OutputFormats, ", ")}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &InvalidError{Key: "log_level", Value: c.LogLevel, Allow: "debug, info, warn, error"}
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return &InvalidError{Key: "page_size", Value: fmt.Sprint(c.PageSize), Allow: fmt.Sprintf("1..%d", MaxPageSize)}
	}
	if c.AuthTimeout <= 0 {
		return &InvalidError{Key: "auth_timeout", Value: c.AuthTimeout.String(), Allow: "a positive duration"}
	}
	if c.Provider == ProviderIMAP && (c.IMAP.Port < 1 || c.IMAP.Port > 65535) {
		return &InvalidError{Key: "imap_port", Value: fmt.Sprint(c.IMAP.Port)}
	}
	return nil
}

func contains[T comparable](arr []T, v T) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}
