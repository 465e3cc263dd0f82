package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string
	ConfigFile    string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	TaskQueue      string
	TaskMaxRetries int

	Engine    EngineConfig
	RateLimit RateLimitConfig
	Proxy     ProxyConfig
	Scrape    ScrapeConfig
}

type EngineConfig struct {
	Workers               int
	Permits               int
	RequestDelay          time.Duration
	MaxConcurrentBulkJobs int
	JobMaxRetries         int
	MaxBulkTargets        int
}

type RateLimitConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	MaxRetries int
	Cooldown   time.Duration
}

type ProxyConfig struct {
	Strategy       string
	HealthInterval time.Duration
	TestURL        string
	MaxPerMinute   int
	File           string
	List           []string
}

type ScrapeConfig struct {
	UserAgent string
	Timeout   time.Duration
	Attempts  int
	SearchURL string
	RenderJS  bool
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// getenvDuration accepts Go durations ("300ms") or plain seconds ("0.3").
func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// YAML document it names is overlaid on top.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8081"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),
		ConfigFile:    os.Getenv("CONFIG_FILE"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_EXPORT_BUCKET", "exports"),

		TaskQueue:      getenv("TASK_QUEUE", "default"),
		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),

		Engine: EngineConfig{
			Workers:               getenvInt("ENGINE_WORKERS", 20),
			Permits:               getenvInt("ENGINE_PERMITS", 0),
			RequestDelay:          getenvDuration("ENGINE_REQUEST_DELAY", 300*time.Millisecond),
			MaxConcurrentBulkJobs: getenvInt("ENGINE_MAX_CONCURRENT_BULK_JOBS", 5),
			JobMaxRetries:         getenvInt("JOB_MAX_RETRIES", 3),
			MaxBulkTargets:        getenvInt("BULK_MAX_TARGETS", 5000),
		},
		RateLimit: RateLimitConfig{
			BaseDelay:  getenvDuration("RATE_LIMIT_BASE_DELAY", time.Second),
			MaxDelay:   getenvDuration("RATE_LIMIT_MAX_DELAY", 60*time.Second),
			Multiplier: getenvFloat("RATE_LIMIT_MULTIPLIER", 2.0),
			MaxRetries: getenvInt("RATE_LIMIT_MAX_RETRIES", 5),
			Cooldown:   getenvDuration("RATE_LIMIT_COOLDOWN", 60*time.Second),
		},
		Proxy: ProxyConfig{
			Strategy:       getenv("PROXY_STRATEGY", "best"),
			HealthInterval: getenvDuration("PROXY_HEALTH_INTERVAL", 5*time.Minute),
			TestURL:        getenv("PROXY_TEST_URL", "https://httpbin.org/ip"),
			MaxPerMinute:   getenvInt("PROXY_MAX_PER_MINUTE", 30),
			File:           os.Getenv("PROXY_FILE"),
			List:           getenvList("PROXY_LIST"),
		},
		Scrape: ScrapeConfig{
			UserAgent: getenv("SCRAPE_USER_AGENT", "HarvesterBot/1.0"),
			Timeout:   getenvDuration("SCRAPE_TIMEOUT", 30*time.Second),
			Attempts:  getenvInt("SCRAPE_ATTEMPTS", 2),
			SearchURL: os.Getenv("SCRAPE_SEARCH_URL"),
			RenderJS:  getenv("SCRAPE_RENDER_JS", "false") == "true",
		},
	}

	if cfg.ConfigFile != "" {
		if err := LoadFile(cfg.ConfigFile, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch {
	case c.RedisAddr == "":
		return fmt.Errorf("REDIS_ADDR is required")
	case c.Engine.Workers < 1:
		return fmt.Errorf("engine workers must be at least 1, got %d", c.Engine.Workers)
	case c.Engine.JobMaxRetries < 0:
		return fmt.Errorf("job max retries must not be negative, got %d", c.Engine.JobMaxRetries)
	case c.RateLimit.Multiplier < 1:
		return fmt.Errorf("rate limit multiplier must be >= 1, got %v", c.RateLimit.Multiplier)
	case c.RateLimit.MaxDelay < c.RateLimit.BaseDelay:
		return fmt.Errorf("rate limit max delay %v is below base delay %v", c.RateLimit.MaxDelay, c.RateLimit.BaseDelay)
	}
	return nil
}

func (c Config) IsProduction() bool { return c.AppEnv == "production" }
