// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Store        StoreConfig        `mapstructure:"store"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Push         PushConfig         `mapstructure:"push"`
	Server       ServerConfig       `mapstructure:"server"`
	Channel      ChannelConfig      `mapstructure:"channel"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// StoreConfig configures the embedded persistent store.
type StoreConfig struct {
	Path          string `mapstructure:"path"`
	SchemaVersion int    `mapstructure:"schema_version"`
	BusyTimeout   int    `mapstructure:"busy_timeout"` // milliseconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig configures asset caching and its offline fallbacks. Version is
// the cache generation tag; activating a build with a new version deletes
// every other generation.
type CacheConfig struct {
	Version         string   `mapstructure:"version"`
	Origin          string   `mapstructure:"origin"` // scheme://host of the app
	PrecacheURLs    []string `mapstructure:"precache_urls"`
	OfflinePage     string   `mapstructure:"offline_page"`
	PlaceholderIcon string   `mapstructure:"placeholder_icon"`
	FetchTimeout    int      `mapstructure:"fetch_timeout"` // milliseconds
}

// SyncConfig configures queued-request replay.
type SyncConfig struct {
	MaxAttempts   int `mapstructure:"max_attempts"`
	ReplayTimeout int `mapstructure:"replay_timeout"` // milliseconds, per request
}

// PushConfig configures how system notifications are displayed.
type PushConfig struct {
	Notifier string `mapstructure:"notifier"` // "sns", "ses", or "log"
	AWS      struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		TopicARN    string `mapstructure:"topic_arn"`
		SMSSenderID string `mapstructure:"sms_sender_id"`
	} `mapstructure:"sns"`
	SES struct {
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"ses"`
}

// ServerConfig names the collaborator endpoints on the application server.
type ServerConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	ReceiptsPath     string `mapstructure:"receipts_path"`
	SubscriptionPath string `mapstructure:"subscription_path"`
	HealthPath       string `mapstructure:"health_path"`
	RequestTimeout   int    `mapstructure:"request_timeout"` // milliseconds
}

// ReceiptsURL returns the absolute read-receipt batch endpoint.
func (s ServerConfig) ReceiptsURL() string {
	return s.BaseURL + s.ReceiptsPath
}

// SubscriptionURL returns the absolute push-subscription endpoint.
func (s ServerConfig) SubscriptionURL() string {
	return s.BaseURL + s.SubscriptionPath
}

// HealthURL returns the absolute connectivity-probe endpoint.
func (s ServerConfig) HealthURL() string {
	return s.BaseURL + s.HealthPath
}

// ChannelConfig configures the page-facing message channel bridge.
type ChannelConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	SyncTimeout   int    `mapstructure:"sync_timeout"`  // milliseconds, bounded forced sync
	FetchTimeout  int    `mapstructure:"fetch_timeout"` // milliseconds, proxied page fetches
}

// ConnectivityConfig configures the online/offline monitor.
type ConnectivityConfig struct {
	ProbeInterval int `mapstructure:"probe_interval"` // milliseconds
	ProbeTimeout  int `mapstructure:"probe_timeout"`  // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CacheName returns the generation name for a version tag.
func (c CacheConfig) CacheName() string {
	return fmt.Sprintf("cache:%s", c.Version)
}
