// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName                    string   `mapstructure:"appname"`
	AppPort                    string   `mapstructure:"appport"`
	Environment                string   `mapstructure:"environment"`
	LogLevel                   LogLevel `mapstructure:"loglevel"`
	PrivateKey                 string   `mapstructure:"privatekey"`
	LoginSessionTimeoutSeconds int      `mapstructure:"loginsessiontimeoutseconds"`
	AdminEmail                 string   `mapstructure:"adminemail"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// MaxMind GeoLite credentials. Empty disables automatic updates.
	GeoLiteLicenseKey string `mapstructure:"geolitelicensekey"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Privacy settings
	GDPREnabled     bool `mapstructure:"gdprenabled"`
	IPAnonymization bool `mapstructure:"ipanonymization"`

	// Session liveness settings. The sweep timeout and the active-users
	// query window are independent knobs; do not conflate them.
	ActiveSessionTimeoutMinutes int `mapstructure:"activesessiontimeoutminutes"`
	ActiveUsersWindowMinutes    int `mapstructure:"activeuserswindowminutes"`

	// Live broadcast settings
	BroadcastIntervalSeconds int `mapstructure:"broadcastintervalseconds"`

	// Data retention settings
	DataRetentionDays int `mapstructure:"dataretentiondays"`

	// Rate limits (requests per minute, per client IP)
	TrackRateLimitPerMinute int `mapstructure:"trackratelimitperminute"`
	AuthRateLimitPerMinute  int `mapstructure:"authratelimitperminute"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "fintrack")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("loginsessiontimeoutseconds", 43200) // 12 hours
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("publicdir", "web/dist")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("gdprenabled", true)
		v.SetDefault("ipanonymization", true)
		v.SetDefault("activesessiontimeoutminutes", 5)
		v.SetDefault("activeuserswindowminutes", 5)
		v.SetDefault("broadcastintervalseconds", 30)
		v.SetDefault("dataretentiondays", 90)
		v.SetDefault("trackratelimitperminute", 100)
		v.SetDefault("authratelimitperminute", 5)

		v.BindEnv("appname", "FINTRACK_APP_NAME")
		v.BindEnv("appport", "FINTRACK_APP_PORT")
		v.BindEnv("environment", "FINTRACK_ENV")
		v.BindEnv("loglevel", "FINTRACK_LOG_LEVEL")
		v.BindEnv("privatekey", "FINTRACK_PRIVATE_KEY")
		v.BindEnv("loginsessiontimeoutseconds", "FINTRACK_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("adminemail", "FINTRACK_ADMIN_EMAIL")
		v.BindEnv("storagepath", "FINTRACK_STORAGE_PATH")
		v.BindEnv("geodbpath", "FINTRACK_GEO_DB_PATH")
		v.BindEnv("publicdir", "FINTRACK_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "FINTRACK_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("geolitelicensekey", "FINTRACK_GEOLITE_LICENSE_KEY")
		v.BindEnv("logsdir", "FINTRACK_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "FINTRACK_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "FINTRACK_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "FINTRACK_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "FINTRACK_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "FINTRACK_DB_MAX_IDLE_CONNS")
		v.BindEnv("gdprenabled", "FINTRACK_GDPR_ENABLED")
		v.BindEnv("ipanonymization", "FINTRACK_IP_ANONYMIZATION")
		v.BindEnv("activesessiontimeoutminutes", "FINTRACK_ACTIVE_SESSION_TIMEOUT_MINUTES")
		v.BindEnv("activeuserswindowminutes", "FINTRACK_ACTIVE_USERS_WINDOW_MINUTES")
		v.BindEnv("broadcastintervalseconds", "FINTRACK_BROADCAST_INTERVAL_SECONDS")
		v.BindEnv("dataretentiondays", "FINTRACK_DATA_RETENTION_DAYS")
		v.BindEnv("trackratelimitperminute", "FINTRACK_TRACK_RATE_LIMIT_PER_MINUTE")
		v.BindEnv("authratelimitperminute", "FINTRACK_AUTH_RATE_LIMIT_PER_MINUTE")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique FINTRACK_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.ActiveSessionTimeoutMinutes <= 0 {
		return fmt.Errorf("invalid active session timeout: %d", c.ActiveSessionTimeoutMinutes)
	}
	if c.ActiveUsersWindowMinutes <= 0 {
		return fmt.Errorf("invalid active users window: %d", c.ActiveUsersWindowMinutes)
	}
	if c.DataRetentionDays <= 0 {
		return fmt.Errorf("invalid data retention days: %d", c.DataRetentionDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// ActiveSessionTimeout returns the liveness sweep cutoff as a duration.
func (c *Config) ActiveSessionTimeout() time.Duration {
	return time.Duration(c.ActiveSessionTimeoutMinutes) * time.Minute
}

// ActiveUsersWindow returns the active-users query window as a duration.
func (c *Config) ActiveUsersWindow() time.Duration {
	return time.Duration(c.ActiveUsersWindowMinutes) * time.Minute
}

// BroadcastInterval returns the live broadcast tick interval.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastIntervalSeconds) * time.Second
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetLoginSessionTimeout returns the admin login cookie duration in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// If explicitly set via env var, uses that value. Tests run with a single
// connection for stability; otherwise allow concurrent dashboard reads.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment.
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
