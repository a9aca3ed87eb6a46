// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like REDIS_ADDRESS
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored if absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or any ancestor that
// holds go.mod, so tests a few directories deep still pick it up.
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
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig applies direct env fallbacks for values that commonly
// arrive through the environment rather than the yaml files.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Redis.Address = val
		}
	}
	if cfg.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Redis.Password = val
		}
	}
	if cfg.Server.BaseURL == "" {
		if val := os.Getenv("SERVER_BASE_URL"); val != "" {
			cfg.Server.BaseURL = val
		}
	}
	if cfg.Store.Path == "" {
		if val := os.Getenv("STORE_PATH"); val != "" {
			cfg.Store.Path = val
		}
	}
	if cfg.Push.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Push.AWS.Region = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "offline-worker.db"
	}
	if cfg.Store.SchemaVersion == 0 {
		cfg.Store.SchemaVersion = 2
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = 5000
	}

	if cfg.Cache.FetchTimeout == 0 {
		cfg.Cache.FetchTimeout = 10000
	}
	if cfg.Cache.OfflinePage == "" {
		cfg.Cache.OfflinePage = "/offline.html"
	}
	if cfg.Cache.PlaceholderIcon == "" {
		cfg.Cache.PlaceholderIcon = "/icons/icon-192x192.png"
	}

	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 8
	}
	if cfg.Sync.ReplayTimeout == 0 {
		cfg.Sync.ReplayTimeout = 30000
	}

	if cfg.Push.Notifier == "" {
		cfg.Push.Notifier = "log"
	}

	if cfg.Server.ReceiptsPath == "" {
		cfg.Server.ReceiptsPath = "/api/notifications/read-receipts"
	}
	if cfg.Server.SubscriptionPath == "" {
		cfg.Server.SubscriptionPath = "/api/push/subscriptions"
	}
	if cfg.Server.HealthPath == "" {
		cfg.Server.HealthPath = "/api/health"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30000
	}

	if cfg.Channel.ListenAddress == "" {
		cfg.Channel.ListenAddress = ":8940"
	}
	if cfg.Channel.SyncTimeout == 0 {
		cfg.Channel.SyncTimeout = 5000
	}
	if cfg.Channel.FetchTimeout == 0 {
		cfg.Channel.FetchTimeout = 10000
	}

	if cfg.Connectivity.ProbeInterval == 0 {
		cfg.Connectivity.ProbeInterval = 15000
	}
	if cfg.Connectivity.ProbeTimeout == 0 {
		cfg.Connectivity.ProbeTimeout = 3000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}
	if cfg.Cache.Version == "" {
		return fmt.Errorf("cache.version is required")
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if cfg.Cache.Origin == "" {
		cfg.Cache.Origin = cfg.Server.BaseURL
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
