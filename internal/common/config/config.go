// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Azure   AzureConfig   `mapstructure:"azure"`
	BC      BCConfig      `mapstructure:"business_central"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

// AzureConfig holds the shared app registration used for the Graph audience.
type AzureConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// BCConfig holds the Business Central environment and its credential set.
// Credentials fall back to the shared Azure registration when unset.
type BCConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	Environment  string `mapstructure:"environment"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// LimitsConfig bounds per-request fan-out and payload sizes.
type LimitsConfig struct {
	InboxTop         int `mapstructure:"inbox_top"`          // messages fetched per user
	InboxWorkers     int `mapstructure:"inbox_workers"`      // concurrent inbox fetches
	PromptUsers      int `mapstructure:"prompt_users"`       // users listed in the grounding prompt
	PromptMessages   int `mapstructure:"prompt_messages"`    // messages shown per user
	PromptCompanies  int `mapstructure:"prompt_companies"`   // companies sampled in sub-lists
	UpstreamTimeout  int `mapstructure:"upstream_timeout"`   // seconds, per upstream call
	CompletionTimeout int `mapstructure:"completion_timeout"` // seconds, answer generation
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BCTenantID resolves the tenant used for the financial audience.
func (c *Config) BCTenantID() string {
	if c.BC.TenantID != "" {
		return c.BC.TenantID
	}
	return c.Azure.TenantID
}

// BCClientID resolves the client id used for the financial audience.
func (c *Config) BCClientID() string {
	if c.BC.ClientID != "" {
		return c.BC.ClientID
	}
	return c.Azure.ClientID
}

// BCClientSecret resolves the client secret used for the financial audience.
func (c *Config) BCClientSecret() string {
	if c.BC.ClientSecret != "" {
		return c.BC.ClientSecret
	}
	return c.Azure.ClientSecret
}

// MissingBCCredentials names the credential values the direct Business Central
// route requires but the environment does not provide.
func (c *Config) MissingBCCredentials() []string {
	var missing []string
	if c.BCTenantID() == "" {
		missing = append(missing, "BC_TENANT_ID or AZURE_TENANT_ID")
	}
	if c.BCClientID() == "" {
		missing = append(missing, "BC_CLIENT_ID or AZURE_CLIENT_ID")
	}
	if c.BCClientSecret() == "" {
		missing = append(missing, "BC_CLIENT_SECRET or AZURE_CLIENT_SECRET")
	}
	return missing
}

func validateConfig(cfg *Config) error {
	if cfg.Azure.TenantID == "" || cfg.Azure.ClientID == "" || cfg.Azure.ClientSecret == "" {
		return fmt.Errorf("azure credentials incomplete: tenant_id, client_id and client_secret are required")
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api_key is required")
	}
	return nil
}
