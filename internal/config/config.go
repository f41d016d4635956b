package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Search     SearchConfig     `mapstructure:"search"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Review     ReviewConfig     `mapstructure:"review"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CacheConfig struct {
	Type        string        `mapstructure:"type"` // redis, memory or none
	RedisURL    string        `mapstructure:"redis_url"`
	RedisDB     int           `mapstructure:"redis_db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	TTL         TTLConfig     `mapstructure:"ttl"`
}

type TTLConfig struct {
	Specs          time.Duration `mapstructure:"specs"`
	Price          time.Duration `mapstructure:"price"`
	PriceEstimated time.Duration `mapstructure:"price_estimated"`
	Reviews        time.Duration `mapstructure:"reviews"`
	ProsCons       time.Duration `mapstructure:"proscons"`
}

type SearchConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	NumResults    int           `mapstructure:"num_results"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	GlobalRegions []string      `mapstructure:"global_regions"`
}

// StorefrontConfig enables direct Amazon storefront searches next to the
// search API. Hosts maps region codes to storefront base URLs.
type StorefrontConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	Hosts      map[string]string `mapstructure:"hosts"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	Delay      time.Duration     `mapstructure:"delay"`
	MaxResults int               `mapstructure:"max_results"`
}

type ReviewConfig struct {
	Domains  []string      `mapstructure:"domains"`
	MaxPages int           `mapstructure:"max_pages"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Delay    time.Duration `mapstructure:"delay"`
}

type BrowserConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	ExecPath string        `mapstructure:"exec_path"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Settle   time.Duration `mapstructure:"settle"`
}

type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ResolverConfig struct {
	MinMatchScore          float64       `mapstructure:"min_match_score"`
	HighValueFloor         float64       `mapstructure:"high_value_floor"`
	MarketplaceReviewFloor int           `mapstructure:"marketplace_review_floor"`
	ConsensusMinSellers    int           `mapstructure:"consensus_min_sellers"`
	CallTimeout            time.Duration `mapstructure:"call_timeout"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// Load reads .env, then an optional YAML file, then RESOLVER_* variables. The
// unprefixed names PORT, REDIS_URL, REDIS_DB, SERPER_API_KEY and OPENAI_API_KEY
// are honoured too. An empty path searches ./resolver.yaml and ./config/resolver.yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("resolver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("RESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"server.port":     "PORT",
		"cache.redis_url": "REDIS_URL",
		"cache.redis_db":  "REDIS_DB",
		"search.api_key":  "SERPER_API_KEY",
		"llm.api_key":     "OPENAI_API_KEY",
	} {
		prefixed := "RESOLVER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("cache.type", "redis")
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.dial_timeout", "5s")
	v.SetDefault("cache.ttl.specs", "168h")
	v.SetDefault("cache.ttl.price", "24h")
	v.SetDefault("cache.ttl.price_estimated", "12h")
	v.SetDefault("cache.ttl.reviews", "168h")
	v.SetDefault("cache.ttl.proscons", "168h")

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "https://google.serper.dev")
	v.SetDefault("search.timeout", "15s")
	v.SetDefault("search.num_results", 20)
	v.SetDefault("search.rate_per_second", 5)
	v.SetDefault("search.burst", 10)
	v.SetDefault("search.global_regions", []string{"usa"})

	v.SetDefault("storefront.enabled", false)
	v.SetDefault("storefront.timeout", "15s")
	v.SetDefault("storefront.delay", "1s")
	v.SetDefault("storefront.max_results", 20)

	v.SetDefault("review.domains", []string{})
	v.SetDefault("review.max_pages", 3)
	v.SetDefault("review.timeout", "10s")
	v.SetDefault("review.delay", "500ms")

	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.timeout", "30s")
	v.SetDefault("browser.settle", "2s")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("resolver.min_match_score", 0.4)
	v.SetDefault("resolver.high_value_floor", 100)
	v.SetDefault("resolver.marketplace_review_floor", 1000)
	v.SetDefault("resolver.consensus_min_sellers", 3)
	v.SetDefault("resolver.call_timeout", "15s")

	v.SetDefault("ratelimit.per_second", 10)
	v.SetDefault("ratelimit.burst", 20)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server port is required")
	}
	switch c.Cache.Type {
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("redis url is required when cache type is 'redis'")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("cache type must be 'redis', 'memory' or 'none', got: %s", c.Cache.Type)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", c.Log.Format)
	}

	ttls := c.Cache.TTL
	for name, d := range map[string]time.Duration{
		"specs": ttls.Specs, "price": ttls.Price, "price_estimated": ttls.PriceEstimated,
		"reviews": ttls.Reviews, "proscons": ttls.ProsCons,
	} {
		if d <= 0 {
			return fmt.Errorf("cache ttl %s must be positive", name)
		}
	}

	r := c.Resolver
	if r.MinMatchScore <= 0 || r.MinMatchScore > 1 {
		return fmt.Errorf("resolver min_match_score must be in (0,1], got %v", r.MinMatchScore)
	}
	if r.HighValueFloor <= 0 {
		return fmt.Errorf("resolver high_value_floor must be positive, got %v", r.HighValueFloor)
	}
	if r.MarketplaceReviewFloor <= 0 {
		return fmt.Errorf("resolver marketplace_review_floor must be positive, got %d", r.MarketplaceReviewFloor)
	}
	if r.ConsensusMinSellers < 2 {
		return fmt.Errorf("resolver consensus_min_sellers must be at least 2, got %d", r.ConsensusMinSellers)
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("ratelimit per_second and burst must be positive")
	}
	return nil
}
