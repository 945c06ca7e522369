package util

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AllowedOrigins      []string      `mapstructure:"ALLOWED_ORIGINS"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	HTTPServerAddress   string        `mapstructure:"HTTP_SERVER_ADDRESS"`
	TokenSecretKey      string        `mapstructure:"TOKEN_SECRET_KEY"`
	AccessTokenDuration time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	RedisServerAddress  string        `mapstructure:"REDIS_SERVER_ADDRESS"`

	SMTPHost        string `mapstructure:"SMTP_HOST"`
	SMTPPort        int    `mapstructure:"SMTP_PORT"`
	SMTPUsername    string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword    string `mapstructure:"SMTP_PASSWORD"`
	SMTPFromAddress string `mapstructure:"SMTP_FROM_ADDRESS"`

	SMSGatewayURL    string `mapstructure:"SMS_GATEWAY_URL"`
	SMSGatewayAPIKey string `mapstructure:"SMS_GATEWAY_API_KEY"`

	UserDirectoryURL    string `mapstructure:"USER_DIRECTORY_URL"`
	UserDirectoryAPIKey string `mapstructure:"USER_DIRECTORY_API_KEY"`

	RetrySweepInterval time.Duration `mapstructure:"RETRY_SWEEP_INTERVAL"`
	RetryBatchSize     int32         `mapstructure:"RETRY_BATCH_SIZE"`
	DeliveryWorkers    int           `mapstructure:"DELIVERY_WORKERS"`
	AttemptTimeout     time.Duration `mapstructure:"ATTEMPT_TIMEOUT"`
	RetentionInterval  time.Duration `mapstructure:"RETENTION_INTERVAL"`
	ReadRetentionDays  int           `mapstructure:"READ_RETENTION_DAYS"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	// Set defaults for non-sensitive config
	viper.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	viper.SetDefault("HTTP_SERVER_ADDRESS", "0.0.0.0:8080")
	viper.SetDefault("ACCESS_TOKEN_DURATION", "24h")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("RETRY_SWEEP_INTERVAL", "1m")
	viper.SetDefault("RETRY_BATCH_SIZE", 100)
	viper.SetDefault("DELIVERY_WORKERS", 8)
	viper.SetDefault("ATTEMPT_TIMEOUT", "30s")
	viper.SetDefault("RETENTION_INTERVAL", "1h")
	viper.SetDefault("READ_RETENTION_DAYS", 30)

	// Prefer environment variables over config file
	viper.AutomaticEnv()

	// Load config file
	viper.SetConfigFile(path)
	if err = viper.ReadInConfig(); err != nil {
		return
	}

	// Unmarshal config into struct
	err = viper.UnmarshalExact(&config)
	if err != nil {
		return
	}

	// Validate required configuration
	err = validateConfig(config)
	return
}

func validateConfig(config Config) error {
	if config.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if config.TokenSecretKey == "" {
		return fmt.Errorf("TOKEN_SECRET_KEY is required")
	}
	if config.RedisServerAddress == "" {
		return fmt.Errorf("REDIS_SERVER_ADDRESS is required")
	}
	if config.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required")
	}
	if config.SMSGatewayURL == "" {
		return fmt.Errorf("SMS_GATEWAY_URL is required")
	}
	if config.UserDirectoryURL == "" {
		return fmt.Errorf("USER_DIRECTORY_URL is required")
	}
	if config.RetryBatchSize <= 0 {
		return fmt.Errorf("RETRY_BATCH_SIZE must be positive")
	}
	if config.DeliveryWorkers <= 0 {
		return fmt.Errorf("DELIVERY_WORKERS must be positive")
	}

	return nil
}
