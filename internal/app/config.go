package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Cache backends selectable with Cache.Backend.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CATALOG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Cache       CacheConfig
	Redis       RedisConfig
	Paging      PagingConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CacheConfig selects and tunes the product list/count cache.
type CacheConfig struct {
	Backend string        `default:"redis" usage:"Cache backend: redis, memory or none" flag:"cache-backend"`
	TTL     time.Duration `default:"300s" usage:"Expiry of cached entries" flag:"cache-ttl"`
	Prefix  string        `default:"catalog:" usage:"Key prefix for the redis backend" flag:"cache-prefix"`
}

// RedisConfig configures the Redis client. The client reconnects and
// retries internally; the service keeps serving from Postgres while Redis
// is unreachable.
type RedisConfig struct {
	Addr         string        `default:"localhost:6379" usage:"Redis address (CATALOG_REDIS_ADDR or REDIS_ADDR)" flag:"redis-addr"`
	Password     string        `default:"" usage:"Redis password" flag:"redis-password"`
	DB           int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	PoolSize     int           `default:"50" usage:"Maximum socket connections"`
	MinIdleConns int           `default:"5" usage:"Idle connections kept open"`
	DialTimeout  time.Duration `default:"2s" usage:"Timeout for establishing connections"`
	ReadTimeout  time.Duration `default:"500ms" usage:"Timeout for socket reads"`
	WriteTimeout time.Duration `default:"500ms" usage:"Timeout for socket writes"`
	MaxRetries   int           `default:"2" usage:"Retries per command before giving up"`
}

// PagingConfig bounds product list pages.
type PagingConfig struct {
	DefaultLimit int `default:"20" usage:"Page size when none is requested"`
	MaxLimit     int `default:"100" usage:"Largest page size a client may request"`
}

// RateLimitConfig controls the per-client rate limits. Product detail reads
// always hit Postgres, so they draw from their own budget instead of sharing
// the one of the cached list and category reads.
type RateLimitConfig struct {
	Max       int           `default:"100" usage:"Max list and category requests per window"`
	DetailMax int           `default:"60" usage:"Max product detail requests per window" flag:"rate-limit-detail-max"`
	Window    time.Duration `default:"1m"  usage:"Time for a drained budget to refill"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: skipFlags,
		EnvPrefix: "CATALOG",
		Files:     []string{"config.yaml", "/etc/catalog/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CATALOG_DATABASE_URL or DATABASE_URL")
	}
	switch c.Cache.Backend {
	case CacheRedis, CacheMemory, CacheNone:
	default:
		return errors.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return errors.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.RateLimit.Window <= 0 {
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	if c.Paging.DefaultLimit <= 0 || c.Paging.MaxLimit < c.Paging.DefaultLimit {
		return errors.Errorf("invalid paging limits: default %d, max %d",
			c.Paging.DefaultLimit, c.Paging.MaxLimit)
	}
	return nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL, REDIS_ADDR,
// REDIS_ENABLED and PORT variables onto the CATALOG_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" && os.Getenv("CATALOG_REDIS_ADDR") == "" {
		c.Redis.Addr = v
	}
	if os.Getenv("REDIS_ENABLED") == "false" && c.Cache.Backend == CacheRedis {
		c.Cache.Backend = CacheNone
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
