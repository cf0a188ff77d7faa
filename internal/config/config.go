// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Quests     QuestsConfig     `mapstructure:"quests"`
	Employees  []EmployeeConfig `mapstructure:"employees"`
	Mattermost MattermostConfig `mapstructure:"mattermost"`
	AI         AIConfig         `mapstructure:"ai"`
	QuickBooks QuickBooksConfig `mapstructure:"quickbooks"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Environment string   `mapstructure:"environment"`
	CORSOrigins []string `mapstructure:"cors_origins"` // browser origins allowed to call the API
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// DSN returns the libpq connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection URL form used by golang-migrate.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SchedulerConfig contains cron job settings.
type SchedulerConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	XPRefreshTime        string `mapstructure:"xp_refresh_time"` // cron expression
	DigestTime           string `mapstructure:"digest_time"`     // HH:MM
	DigestSize           int    `mapstructure:"digest_size"`
	SkipWeekends         bool   `mapstructure:"skip_weekends"`
	DigestMinCompletions int    `mapstructure:"digest_min_completions"` // skip quiet days
}

// QuestsConfig contains quest board settings.
type QuestsConfig struct {
	Timezone            string `mapstructure:"timezone"`
	SeedFile            string `mapstructure:"seed_file"`
	LeaderboardCacheTTL int    `mapstructure:"leaderboard_cache_ttl"` // seconds
}

// GetLocation returns the quest board time zone.
func (c *QuestsConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LeaderboardTTL returns the leaderboard cache lifetime.
func (c *QuestsConfig) LeaderboardTTL() time.Duration {
	return time.Duration(c.LeaderboardCacheTTL) * time.Second
}

// EmployeeConfig represents a selectable employee.
type EmployeeConfig struct {
	Email string `mapstructure:"email"`
	Name  string `mapstructure:"name"`
	Role  string `mapstructure:"role"` // owner or crew
}

// MattermostConfig contains Mattermost webhook notification settings.
type MattermostConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// AIConfig contains procedure generator settings.
type AIConfig struct {
	Provider    string  `mapstructure:"provider"`
	Host        string  `mapstructure:"host"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"` // seconds
	Temperature float64 `mapstructure:"temperature"`
	CompanyName string  `mapstructure:"company_name"`
}

// QuickBooksConfig contains QuickBooks Online OAuth and API settings.
type QuickBooksConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	Environment  string `mapstructure:"environment"` // sandbox or production
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	APIBaseURL   string `mapstructure:"api_base_url"`
	VehicleQuery string `mapstructure:"vehicle_query"`
	VehicleType  string `mapstructure:"vehicle_entity"`
	MinorVersion int    `mapstructure:"minor_version"`
	StateTTL     int    `mapstructure:"state_ttl"` // seconds
}

// Enabled reports whether QuickBooks credentials are configured.
func (c *QuickBooksConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// BaseURL returns the accounting API host for the configured environment.
func (c *QuickBooksConfig) BaseURL() string {
	if c.APIBaseURL != "" {
		return strings.TrimRight(c.APIBaseURL, "/")
	}
	if c.Environment == "production" {
		return "https://quickbooks.api.intuit.com"
	}
	return "https://sandbox-quickbooks.api.intuit.com"
}

// StateLifetime returns how long an authorization request stays valid.
func (c *QuickBooksConfig) StateLifetime() time.Duration {
	if c.StateTTL <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.StateTTL) * time.Second
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/crew-ops/")
	}

	setDefaults(v)

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	// Quest board configuration
	_ = v.BindEnv("quests.timezone", "QUESTS_TIMEZONE")
	_ = v.BindEnv("quests.seed_file", "QUESTS_SEED_FILE")

	// Mattermost configuration
	_ = v.BindEnv("mattermost.webhook_url", "MATTERMOST_WEBHOOK_URL")
	_ = v.BindEnv("mattermost.channel", "MATTERMOST_CHANNEL")
	_ = v.BindEnv("mattermost.enabled", "MATTERMOST_ENABLED")

	// AI configuration
	_ = v.BindEnv("ai.host", "OLLAMA_HOST")
	_ = v.BindEnv("ai.model", "AI_MODEL")

	// QuickBooks configuration
	_ = v.BindEnv("quickbooks.client_id", "QUICKBOOKS_CLIENT_ID")
	_ = v.BindEnv("quickbooks.client_secret", "QUICKBOOKS_CLIENT_SECRET")
	_ = v.BindEnv("quickbooks.redirect_url", "QUICKBOOKS_REDIRECT_URL")
	_ = v.BindEnv("quickbooks.environment", "QUICKBOOKS_ENVIRONMENT")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 10)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("scheduler.xp_refresh_time", "5 0 * * *")
	v.SetDefault("scheduler.digest_time", "18:00")
	v.SetDefault("scheduler.digest_size", 5)
	v.SetDefault("quests.timezone", "America/Chicago")
	v.SetDefault("quests.leaderboard_cache_ttl", 60)
	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.host", "http://localhost:11434")
	v.SetDefault("ai.model", "llama3.2")
	v.SetDefault("ai.timeout", 60)
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("quickbooks.environment", "sandbox")
	v.SetDefault("quickbooks.auth_url", "https://appcenter.intuit.com/connect/oauth2")
	v.SetDefault("quickbooks.token_url", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer")
	v.SetDefault("quickbooks.vehicle_query", "select * from Vehicle")
	v.SetDefault("quickbooks.vehicle_entity", "Vehicle")
	v.SetDefault("quickbooks.minor_version", 75)
	v.SetDefault("quickbooks.state_ttl", 600)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}
	if _, err := c.Quests.GetLocation(); err != nil {
		return fmt.Errorf("invalid quests.timezone %q: %w", c.Quests.Timezone, err)
	}
	if len(c.Employees) == 0 {
		return fmt.Errorf("at least one employee must be configured")
	}
	owners := 0
	for _, e := range c.Employees {
		if strings.TrimSpace(e.Email) == "" {
			return fmt.Errorf("employee %q has no email", e.Name)
		}
		switch e.Role {
		case "owner":
			owners++
		case "crew", "":
		default:
			return fmt.Errorf("employee %s has unknown role %q", e.Email, e.Role)
		}
	}
	if owners == 0 {
		return fmt.Errorf("at least one employee must have the owner role")
	}
	if c.Mattermost.Enabled && c.Mattermost.WebhookURL == "" {
		return fmt.Errorf("mattermost.webhook_url is required when mattermost is enabled")
	}
	if c.QuickBooks.Enabled() && c.QuickBooks.RedirectURL == "" {
		return fmt.Errorf("quickbooks.redirect_url is required when quickbooks is configured")
	}
	return nil
}

// Owners returns the configured owner emails.
func (c *Config) Owners() []string {
	var owners []string
	for _, e := range c.Employees {
		if e.Role == "owner" {
			owners = append(owners, strings.ToLower(e.Email))
		}
	}
	return owners
}
