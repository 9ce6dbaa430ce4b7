package model

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// FolderConfig holds the configuration for a single monitored mailbox folder.
type FolderConfig struct {
	// Name is the IMAP folder to monitor. Must be unique in the config.
	Name string `mapstructure:"name" yaml:"name"`

	// DocumentationFile is the path to the plain-text documentation used
	// to ground replies. Relative paths resolve against the config file
	// directory.
	DocumentationFile string `mapstructure:"documentation_file" yaml:"documentation_file"`

	// Prompt is the folder-specific response prompt template. It may
	// contain {company_name} and {support_email} placeholders.
	Prompt string `mapstructure:"prompt" yaml:"prompt"`

	// PollIntervalSec is how often (in seconds) to check this folder.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// SentCopyFolder is where sent replies are appended. Empty means the
	// monitored folder itself.
	SentCopyFolder string `mapstructure:"sent_copy_folder" yaml:"sent_copy_folder"`
}

// PollInterval returns the folder's poll interval as a duration.
func (f FolderConfig) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalSec) * time.Second
}

// IMAPConfig holds the inbound mail server settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	StartTLS bool   `mapstructure:"starttls" yaml:"starttls"`
}

// Address returns the host:port address of the SMTP server.
func (c SMTPConfig) Address() string {
	return c.Host + ":" + c.Port
}

// AIConfig holds settings for the completion service.
type AIConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// SendConfig holds reply delivery policy settings.
type SendConfig struct {
	// TimeoutSec bounds a single SMTP delivery attempt.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MarkAmbiguous controls what happens when a send times out without a
	// server response: false (default) leaves the message unmarked and
	// risks a duplicate reply next cycle, true marks it and risks a lost
	// one.
	MarkAmbiguous bool `mapstructure:"mark_ambiguous" yaml:"mark_ambiguous"`

	// AppendSentCopy appends each sent reply to the monitored folder.
	AppendSentCopy bool `mapstructure:"append_sent_copy" yaml:"append_sent_copy"`

	// ConfirmBeforeSend prompts on stdin before every send.
	ConfirmBeforeSend bool `mapstructure:"confirm_before_send" yaml:"confirm_before_send"`
}

// Timeout returns the configured send timeout as a duration.
func (c SendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// LoggingConfig holds structured logging preferences.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// MetricsConfig holds the optional Prometheus listener settings.
type MetricsConfig struct {
	// ListenAddr is where /metrics is served. Empty disables the listener.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP    IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	SMTP    SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	AI      AIConfig       `mapstructure:"ai" yaml:"ai"`
	Send    SendConfig     `mapstructure:"send" yaml:"send"`
	Logging LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Folders []FolderConfig `mapstructure:"folders" yaml:"folders"`

	// FromAddress is the sender address for outgoing replies. Defaults to
	// the SMTP username.
	FromAddress string `mapstructure:"from_address" yaml:"from_address"`

	// CompanyName and SupportEmail fill the prompt template placeholders.
	CompanyName  string `mapstructure:"company_name" yaml:"company_name"`
	SupportEmail string `mapstructure:"support_email" yaml:"support_email"`

	// StateDB is the path to the SQLite database recording processed
	// messages. Relative paths resolve against the config file directory.
	StateDB string `mapstructure:"state_db" yaml:"state_db"`

	// baseDir is the directory of the loaded config file, used to resolve
	// relative documentation and state paths.
	baseDir string
}

// ResolvePath resolves a possibly relative path against the config file
// directory, matching how the original deployment laid out documentation
// files next to the config.
func (c *AppConfig) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// From returns the effective sender address for outgoing replies.
func (c *AppConfig) From() string {
	if c.FromAddress != "" {
		return c.FromAddress
	}
	return c.SMTP.Username
}

// SetBaseDir overrides the directory used to resolve relative paths.
// Intended for tests that build configs without a file on disk.
func (c *AppConfig) SetBaseDir(dir string) {
	c.baseDir = dir
}

// defaultAppConfig returns a configuration with sensible defaults applied.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		AI: AIConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 2048,
		},
		Send: SendConfig{
			TimeoutSec:     60,
			AppendSentCopy: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		StateDB: "state.db",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper
// and validates it. Unlike most settings the config file itself is
// required: a support bot with no folders has nothing to do.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("send.timeout_sec", 60)
	v.SetDefault("send.append_sent_copy", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("state_db", "state.db")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.baseDir = filepath.Dir(abs)

	for i := range cfg.Folders {
		if cfg.Folders[i].PollIntervalSec <= 0 {
			cfg.Folders[i].PollIntervalSec = 300
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *AppConfig) Validate() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if len(c.Folders) == 0 {
		return fmt.Errorf("at least one folder must be configured")
	}

	seen := make(map[string]bool, len(c.Folders))
	for _, f := range c.Folders {
		if f.Name == "" {
			return fmt.Errorf("folder name must not be empty")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate folder %q", f.Name)
		}
		seen[f.Name] = true
	}

	if c.From() == "" {
		return fmt.Errorf("from_address or smtp.username is required")
	}

	return nil
}
