package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Mail backend kinds selectable in the account configuration.
const (
	BackendAPI   = "api"
	BackendGmail = "gmail"
	BackendIMAP  = "imap"
)

// AccountConfig identifies the mail account and which backend serves it.
type AccountConfig struct {
	// Email is the account address, also used as the credential key.
	Email string `mapstructure:"email" yaml:"email"`

	// Backend selects the mail source kind ("api", "gmail" or "imap").
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// APIConfig holds settings for the Korgan backend (mail pages + folder tree).
type APIConfig struct {
	// BaseURL is the root URL of the backend service.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// OrgID scopes folder tree requests to an organization.
	OrgID string `mapstructure:"org_id" yaml:"org_id"`

	// ContextID scopes folder tree requests within the organization.
	ContextID string `mapstructure:"context_id" yaml:"context_id"`

	// RootSlug optionally restricts tree loads to one subtree.
	RootSlug string `mapstructure:"root_slug" yaml:"root_slug"`
}

// IMAPConfig holds connection settings for a direct IMAP account.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	UseTLS   bool   `mapstructure:"use_tls" yaml:"use_tls"`
}

// GmailConfig holds OAuth file locations for a direct Gmail account.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	TokenFile       string `mapstructure:"token_file" yaml:"token_file"`
}

// MailConfig tunes the mail context engine.
type MailConfig struct {
	// PageSize is the number of messages requested per page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// StalenessSec is the age after which a loaded context is refetched.
	StalenessSec int `mapstructure:"staleness_sec" yaml:"staleness_sec"`

	// MaxContexts caps how many folder contexts stay resident in memory.
	MaxContexts int `mapstructure:"max_contexts" yaml:"max_contexts"`

	// BulkBatchSize bounds how many messages a bulk action processes
	// between cancellation checks.
	BulkBatchSize int `mapstructure:"bulk_batch_size" yaml:"bulk_batch_size"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	RefreshSec      int    `mapstructure:"refresh_sec" yaml:"refresh_sec"`
	TreeExpandDepth int    `mapstructure:"tree_expand_depth" yaml:"tree_expand_depth"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Gmail   GmailConfig   `mapstructure:"gmail" yaml:"gmail"`
	Mail    MailConfig    `mapstructure:"mail" yaml:"mail"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/korgan/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "korgan", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{Backend: BackendAPI},
		IMAP:    IMAPConfig{Port: 993, UseTLS: true},
		Mail: MailConfig{
			PageSize:      50,
			StalenessSec:  300,
			MaxContexts:   16,
			BulkBatchSize: 25,
		},
		Display: DisplayConfig{
			Theme:           "default",
			RefreshSec:      60,
			TreeExpandDepth: 2,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("account.backend", BackendAPI)
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.use_tls", true)
	v.SetDefault("mail.page_size", 50)
	v.SetDefault("mail.staleness_sec", 300)
	v.SetDefault("mail.max_contexts", 16)
	v.SetDefault("mail.bulk_batch_size", 25)
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.refresh_sec", 60)
	v.SetDefault("display.tree_expand_depth", 2)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("api", cfg.API)
	v.Set("imap", cfg.IMAP)
	v.Set("gmail", cfg.Gmail)
	v.Set("mail", cfg.Mail)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
