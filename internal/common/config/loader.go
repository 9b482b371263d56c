// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// Enable ENV override like AZURE_TENANT_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from a few locations so tests and the binary behave
// the same regardless of working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bc-assistant"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15
	}
	if cfg.BC.Environment == "" {
		cfg.BC.Environment = "Production"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-5-nano"
	}
	if cfg.Limits.InboxTop == 0 {
		cfg.Limits.InboxTop = 5
	}
	if cfg.Limits.InboxWorkers == 0 {
		cfg.Limits.InboxWorkers = 8
	}
	if cfg.Limits.PromptUsers == 0 {
		cfg.Limits.PromptUsers = 10
	}
	if cfg.Limits.PromptMessages == 0 {
		cfg.Limits.PromptMessages = 5
	}
	if cfg.Limits.PromptCompanies == 0 {
		cfg.Limits.PromptCompanies = 10
	}
	if cfg.Limits.UpstreamTimeout == 0 {
		cfg.Limits.UpstreamTimeout = 30
	}
	if cfg.Limits.CompletionTimeout == 0 {
		cfg.Limits.CompletionTimeout = 120
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// overrideFromEnv backfills credentials from the flat env names earlier
// deployments used, so existing .env files keep working.
func overrideFromEnv(cfg *Config) {
	setIfEmpty(&cfg.Azure.TenantID, "AZURE_TENANT_ID", "TENANT_ID")
	setIfEmpty(&cfg.Azure.ClientID, "AZURE_CLIENT_ID", "CLIENT_ID")
	setIfEmpty(&cfg.Azure.ClientSecret, "AZURE_CLIENT_SECRET", "CLIENT_SECRET")
	setIfEmpty(&cfg.BC.TenantID, "BC_TENANT_ID")
	setIfEmpty(&cfg.BC.ClientID, "BC_CLIENT_ID")
	setIfEmpty(&cfg.BC.ClientSecret, "BC_CLIENT_SECRET", "BC_SECRET_KEY")
	setIfEmpty(&cfg.BC.Environment, "BC_ENVIRONMENT")
	setIfEmpty(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
}

func setIfEmpty(dst *string, envNames ...string) {
	if *dst != "" {
		return
	}
	for _, name := range envNames {
		if v := os.Getenv(name); v != "" {
			*dst = v
			return
		}
	}
}
