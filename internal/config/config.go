// Package config loads the application's configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/merge-warden/internal/logger"
)

// GitLabConfig holds the connection settings for the GitLab instance.
type GitLabConfig struct {
	URL           string
	Token         string
	WebhookSecret string
	BotUsername   string
}

// DBConfig holds the PostgreSQL connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LLMConfig holds the settings for the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	APIURL     string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort string
	GitLab     GitLabConfig
	Database   *DBConfig
	LLM        LLMConfig
	Logging    logger.Config
	Locale     string
	MaxWorkers int
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")
	viper.SetDefault("LOCALE", "en")
	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_DATABASE", "merge_warden")
	viper.SetDefault("POSTGRES_CONN_MAX_LIFETIME", "1h")
	viper.SetDefault("POSTGRES_CONN_MAX_IDLE_TIME", "10m")
	viper.SetDefault("LLM_MAX_RETRIES", 3)
	viper.SetDefault("LLM_TIMEOUT", "30s")

	// A missing .env file is fine; the environment alone may be complete.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if viper.GetString("GITLAB_URL") == "" {
		return nil, fmt.Errorf("GITLAB_URL must be set")
	}
	if viper.GetString("GITLAB_TOKEN") == "" {
		return nil, fmt.Errorf("GITLAB_TOKEN must be set")
	}
	if viper.GetString("GITLAB_WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("GITLAB_WEBHOOK_SECRET must be set")
	}
	if viper.GetString("LLM_API_URL") == "" {
		return nil, fmt.Errorf("LLM_API_URL must be set")
	}
	if viper.GetString("LLM_MODEL") == "" {
		return nil, fmt.Errorf("LLM_MODEL must be set")
	}

	return &Config{
		ServerPort: viper.GetString("SERVER_PORT"),
		GitLab: GitLabConfig{
			URL:           viper.GetString("GITLAB_URL"),
			Token:         viper.GetString("GITLAB_TOKEN"),
			WebhookSecret: viper.GetString("GITLAB_WEBHOOK_SECRET"),
			BotUsername:   viper.GetString("GITLAB_BOT_USERNAME"),
		},
		Database: &DBConfig{
			Host:            viper.GetString("POSTGRES_HOST"),
			Port:            viper.GetInt("POSTGRES_PORT"),
			Username:        viper.GetString("POSTGRES_USER"),
			Password:        viper.GetString("POSTGRES_PASSWORD"),
			Database:        viper.GetString("POSTGRES_DATABASE"),
			ConnMaxLifetime: viper.GetDuration("POSTGRES_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("POSTGRES_CONN_MAX_IDLE_TIME"),
		},
		LLM: LLMConfig{
			APIURL:     viper.GetString("LLM_API_URL"),
			APIKey:     viper.GetString("LLM_API_KEY"),
			Model:      viper.GetString("LLM_MODEL"),
			MaxRetries: viper.GetInt("LLM_MAX_RETRIES"),
			Timeout:    viper.GetDuration("LLM_TIMEOUT"),
		},
		Logging: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
		Locale:     viper.GetString("LOCALE"),
		MaxWorkers: viper.GetInt("MAX_WORKERS"),
	}, nil
}
