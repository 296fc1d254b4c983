// Package config loads entity-discovery configuration from YAML with env overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
)

const (
	defaultServerPort      = 8070
	defaultServerTimeout   = 30 * time.Second
	defaultCrawlWriteLimit = 30 * time.Minute
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultRedisAddress    = "localhost:6379"

	defaultUserAgent       = "NorthCloud-EntityDiscovery/1.0 (+https://northcloud.one)"
	defaultSitemapTimeout  = 10 * time.Second
	defaultRESTTimeout     = 10 * time.Second
	defaultPageTimeout     = 15 * time.Second
	defaultCrawlDelay      = 150 * time.Millisecond
	defaultCrawlBatchSize  = 50
	defaultRESTPerPage     = 100
	defaultURLSampleSize   = 30
	defaultAITimeout       = 20 * time.Second
	defaultAITemperature   = 0.2
	defaultUsageTimeout    = 8 * time.Second
	defaultUsageOperation  = "entity_discovery_ai"
	defaultLocalizationTag = "he"
	defaultMaxFetchRate    = 20
)

type Config struct {
	Debug     bool            `env:"APP_DEBUG" yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   logger.Config   `yaml:"logging"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	AI        AIConfig        `yaml:"ai"`
	Usage     UsageConfig     `yaml:"usage"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds the optional Redis connection used for discovery events.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"`
}

type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// DiscoveryConfig tunes the outbound crawling behaviour.
type DiscoveryConfig struct {
	UserAgent      string        `env:"DISCOVERY_USER_AGENT"       yaml:"user_agent"`
	SitemapTimeout time.Duration `env:"DISCOVERY_SITEMAP_TIMEOUT"  yaml:"sitemap_timeout"`
	RESTTimeout    time.Duration `env:"DISCOVERY_REST_TIMEOUT"     yaml:"rest_timeout"`
	PageTimeout    time.Duration `env:"DISCOVERY_PAGE_TIMEOUT"     yaml:"page_timeout"`
	CrawlDelay     time.Duration `env:"DISCOVERY_CRAWL_DELAY"      yaml:"crawl_delay"`
	CrawlBatchSize int           `env:"DISCOVERY_CRAWL_BATCH_SIZE" yaml:"crawl_batch_size"`
	RESTPerPage    int           `env:"DISCOVERY_REST_PER_PAGE"    yaml:"rest_per_page"`
	URLSampleSize  int           `env:"DISCOVERY_URL_SAMPLE_SIZE"  yaml:"url_sample_size"`
	// Locale drives localized names and display-name collation (BCP 47).
	Locale string `env:"DISCOVERY_LOCALE" yaml:"locale"`
	// OperationTimeout bounds one discover/populate/crawl run on the server side.
	OperationTimeout time.Duration `env:"DISCOVERY_OPERATION_TIMEOUT" yaml:"operation_timeout"`
	// MaxFetchRate caps page fetches per second across concurrent crawls; negative disables the cap.
	MaxFetchRate float64 `env:"DISCOVERY_MAX_FETCH_RATE" yaml:"max_fetch_rate"`
}

// AIConfig points at the structured-completion endpoint used for type enrichment.
type AIConfig struct {
	Enabled     bool          `env:"AI_ENABLED"     yaml:"enabled"`
	Endpoint    string        `env:"AI_ENDPOINT"    yaml:"endpoint"`
	APIKey      string        `env:"AI_API_KEY"     yaml:"api_key"`
	Timeout     time.Duration `env:"AI_TIMEOUT"     yaml:"timeout"`
	Temperature float64       `env:"AI_TEMPERATURE" yaml:"temperature"`
}

// UsageConfig points at the usage metering service.
type UsageConfig struct {
	Enabled       bool          `env:"USAGE_ENABLED"   yaml:"enabled"`
	Endpoint      string        `env:"USAGE_ENDPOINT"  yaml:"endpoint"`
	Timeout       time.Duration `env:"USAGE_TIMEOUT"   yaml:"timeout"`
	OperationKind string        `env:"USAGE_OPERATION" yaml:"operation_kind"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.AI.Enabled && c.AI.Endpoint == "" {
		return errors.New("ai.endpoint is required when ai.enabled is true")
	}
	if c.Usage.Enabled && c.Usage.Endpoint == "" {
		return errors.New("usage.endpoint is required when usage.enabled is true")
	}
	if c.Discovery.CrawlBatchSize <= 0 {
		return errors.New("discovery.crawl_batch_size must be positive")
	}
	return nil
}

// Load reads path, applies defaults and env overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := decodeFile(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	setServerDefaults(&cfg.Server)
	setDatabaseDefaults(&cfg.Database)
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	setDiscoveryDefaults(&cfg.Discovery)
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = defaultAITimeout
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = defaultAITemperature
	}
	if cfg.Usage.Timeout == 0 {
		cfg.Usage.Timeout = defaultUsageTimeout
	}
	if cfg.Usage.OperationKind == "" {
		cfg.Usage.OperationKind = defaultUsageOperation
	}
}

func setServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = defaultServerPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultServerTimeout
	}
	// Populate and crawl hold the request open until the run finishes.
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultCrawlWriteLimit
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"http://localhost:3002"}
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = defaultDatabasePort
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = defaultMaxOpenConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = defaultConnMaxLifetime
	}
}

func setDiscoveryDefaults(d *DiscoveryConfig) {
	if d.UserAgent == "" {
		d.UserAgent = defaultUserAgent
	}
	if d.SitemapTimeout == 0 {
		d.SitemapTimeout = defaultSitemapTimeout
	}
	if d.RESTTimeout == 0 {
		d.RESTTimeout = defaultRESTTimeout
	}
	if d.PageTimeout == 0 {
		d.PageTimeout = defaultPageTimeout
	}
	if d.CrawlDelay == 0 {
		d.CrawlDelay = defaultCrawlDelay
	}
	if d.CrawlBatchSize == 0 {
		d.CrawlBatchSize = defaultCrawlBatchSize
	}
	if d.RESTPerPage == 0 {
		d.RESTPerPage = defaultRESTPerPage
	}
	if d.URLSampleSize == 0 {
		d.URLSampleSize = defaultURLSampleSize
	}
	if d.Locale == "" {
		d.Locale = defaultLocalizationTag
	}
	if d.OperationTimeout == 0 {
		d.OperationTimeout = defaultCrawlWriteLimit
	}
	if d.MaxFetchRate == 0 {
		d.MaxFetchRate = defaultMaxFetchRate
	}
}
