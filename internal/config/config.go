/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the streaming-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	JWKSURL                  string `mapstructure:"JWKS_URL"`
	AdminAccount             string `mapstructure:"ADMIN_ACCOUNT"`
	PlatformAccount          string `mapstructure:"PLATFORM_ACCOUNT"`
	DefaultFeeBps            int64  `mapstructure:"DEFAULT_FEE_BPS"`
	SettleRateLimitPerMinute int    `mapstructure:"SETTLE_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "flowpay:rate_limit")
	viper.SetDefault("ADMIN_ACCOUNT", "platform-admin")
	viper.SetDefault("PLATFORM_ACCOUNT", "platform-treasury")
	viper.SetDefault("DEFAULT_FEE_BPS", 10)
	viper.SetDefault("SETTLE_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "STREAMING_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("ADMIN_ACCOUNT")
	_ = viper.BindEnv("PLATFORM_ACCOUNT")
	_ = viper.BindEnv("DEFAULT_FEE_BPS")
	_ = viper.BindEnv("SETTLE_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "flowpay:rate_limit"
	}
	config.AdminAccount = strings.TrimSpace(config.AdminAccount)
	config.PlatformAccount = strings.TrimSpace(config.PlatformAccount)

	// The fee rate is capped at 10% everywhere; a misconfigured default is
	// coerced rather than rejected so the service still starts.
	if config.DefaultFeeBps < 0 {
		log.Printf("level=warn component=config msg=\"negative default fee configured; coercing to zero\" fee_bps=%d", config.DefaultFeeBps)
		config.DefaultFeeBps = 0
	}
	if config.DefaultFeeBps > 1000 {
		log.Printf("level=warn component=config msg=\"default fee too high; capping at 1000 bps\" fee_bps=%d", config.DefaultFeeBps)
		config.DefaultFeeBps = 1000
	}

	if config.SettleRateLimitPerMinute <= 0 {
		config.SettleRateLimitPerMinute = 30
	}

	return
}
