package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the tunable sections of Config. Pointers distinguish
// "absent" from zero so the overlay only touches keys present in the file.
type fileConfig struct {
	Engine *struct {
		Workers               *int      `yaml:"workers"`
		Permits               *int      `yaml:"permits"`
		RequestDelay          *duration `yaml:"request_delay"`
		MaxConcurrentBulkJobs *int      `yaml:"max_concurrent_bulk_jobs"`
		JobMaxRetries         *int      `yaml:"job_max_retries"`
		MaxBulkTargets        *int      `yaml:"max_bulk_targets"`
	} `yaml:"engine"`
	RateLimit *struct {
		BaseDelay  *duration `yaml:"base_delay"`
		MaxDelay   *duration `yaml:"max_delay"`
		Multiplier *float64  `yaml:"multiplier"`
		MaxRetries *int      `yaml:"max_retries"`
		Cooldown   *duration `yaml:"cooldown"`
	} `yaml:"rate_limit"`
	Proxy *struct {
		Strategy       *string   `yaml:"strategy"`
		HealthInterval *duration `yaml:"health_interval"`
		TestURL        *string   `yaml:"test_url"`
		MaxPerMinute   *int      `yaml:"max_per_minute"`
		File           *string   `yaml:"file"`
		List           []string  `yaml:"list"`
	} `yaml:"proxy"`
	Scrape *struct {
		UserAgent *string   `yaml:"user_agent"`
		Timeout   *duration `yaml:"timeout"`
		Attempts  *int      `yaml:"attempts"`
		SearchURL *string   `yaml:"search_url"`
		RenderJS  *bool     `yaml:"render_js"`
	} `yaml:"scrape"`
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if e := fc.Engine; e != nil {
		setInt(&cfg.Engine.Workers, e.Workers)
		setInt(&cfg.Engine.Permits, e.Permits)
		setDuration(&cfg.Engine.RequestDelay, e.RequestDelay)
		setInt(&cfg.Engine.MaxConcurrentBulkJobs, e.MaxConcurrentBulkJobs)
		setInt(&cfg.Engine.JobMaxRetries, e.JobMaxRetries)
		setInt(&cfg.Engine.MaxBulkTargets, e.MaxBulkTargets)
	}
	if r := fc.RateLimit; r != nil {
		setDuration(&cfg.RateLimit.BaseDelay, r.BaseDelay)
		setDuration(&cfg.RateLimit.MaxDelay, r.MaxDelay)
		if r.Multiplier != nil {
			cfg.RateLimit.Multiplier = *r.Multiplier
		}
		setInt(&cfg.RateLimit.MaxRetries, r.MaxRetries)
		setDuration(&cfg.RateLimit.Cooldown, r.Cooldown)
	}
	if p := fc.Proxy; p != nil {
		setString(&cfg.Proxy.Strategy, p.Strategy)
		setDuration(&cfg.Proxy.HealthInterval, p.HealthInterval)
		setString(&cfg.Proxy.TestURL, p.TestURL)
		setInt(&cfg.Proxy.MaxPerMinute, p.MaxPerMinute)
		setString(&cfg.Proxy.File, p.File)
		cfg.Proxy.List = append(cfg.Proxy.List, p.List...)
	}
	if s := fc.Scrape; s != nil {
		setString(&cfg.Scrape.UserAgent, s.UserAgent)
		setDuration(&cfg.Scrape.Timeout, s.Timeout)
		setInt(&cfg.Scrape.Attempts, s.Attempts)
		setString(&cfg.Scrape.SearchURL, s.SearchURL)
		if s.RenderJS != nil {
			cfg.Scrape.RenderJS = *s.RenderJS
		}
	}
	return nil
}

// duration decodes "300ms"/"1m" strings as well as bare numbers of seconds.
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	if parsed, err := time.ParseDuration(node.Value); err == nil {
		*d = duration(parsed)
		return nil
	}
	var secs float64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration %q", node.Value)
	}
	*d = duration(secs * float64(time.Second))
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
