package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"uidai-insights/internal/logging"
)

// Dataset names the source of one dataset kind
type Dataset struct {
	Kind   string `yaml:"kind"`
	Source string `yaml:"source"` // file path, http(s) URL or s3://bucket/key
}

var (
	instance *Config
	once     sync.Once
)

// Config is the application configuration
type Config struct {
	Server struct {
		Addr             string        `yaml:"addr"`
		CORSOrigins      []string      `yaml:"cors_origins"`
		RateLimit        int           `yaml:"rate_limit"`
		RateLimitWindow  time.Duration `yaml:"rate_limit_window"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		ShutdownDeadline time.Duration `yaml:"shutdown_deadline"`
	} `yaml:"server"`
	Datasets []Dataset `yaml:"datasets"`
	Geo      struct {
		BoundaryPath string   `yaml:"boundary_path"`
		BoundaryURL  string   `yaml:"boundary_url"`
		PropertyKeys []string `yaml:"property_keys"`
	} `yaml:"geo"`
	Analytics struct {
		Threshold float64 `yaml:"threshold"`
		Window    int     `yaml:"window"`
		Steps     int     `yaml:"steps"`
	} `yaml:"analytics"`
	Forecast struct {
		FitTimeout time.Duration `yaml:"fit_timeout"`
	} `yaml:"forecast"`
	Cache struct {
		Backend string        `yaml:"backend"` // "memory" or "redis"
		TTL     time.Duration `yaml:"ttl"`
		Redis   RedisConfig   `yaml:"redis"`
	} `yaml:"cache"`
	Storage struct {
		Backend string `yaml:"backend"` // "source" or "mysql"
		DSN     string `yaml:"dsn"`
	} `yaml:"storage"`
	S3  S3Config       `yaml:"s3"`
	Log logging.Config `yaml:"log"`
}

func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		instance.applyEnv()
		instance.applyDefaults()

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// Source returns the configured source for a dataset kind
func (c *Config) Source(kind string) (string, bool) {
	for _, d := range c.Datasets {
		if d.Kind == kind {
			return d.Source, true
		}
	}
	return "", false
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 120
	}
	if c.Server.RateLimitWindow == 0 {
		c.Server.RateLimitWindow = time.Minute
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownDeadline == 0 {
		c.Server.ShutdownDeadline = 10 * time.Second
	}
	if c.Geo.BoundaryPath == "" {
		c.Geo.BoundaryPath = "assets/india_states.geojson"
	}
	if c.Geo.BoundaryURL == "" {
		c.Geo.BoundaryURL = "https://raw.githubusercontent.com/geohacker/india/master/state/india_state.geojson"
	}
	if c.Analytics.Threshold == 0 {
		c.Analytics.Threshold = 2.5
	}
	if c.Analytics.Window == 0 {
		c.Analytics.Window = 7
	}
	if c.Analytics.Steps == 0 {
		c.Analytics.Steps = 7
	}
	if c.Forecast.FitTimeout == 0 {
		c.Forecast.FitTimeout = 2 * time.Second
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "source"
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = defaultDSN
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = "uidai"
	}
	if c.S3.Region == "" {
		c.S3.Region = "ap-south-1"
	}
}

func (c *Config) validate() error {
	if len(c.Datasets) == 0 {
		return fmt.Errorf("datasets cannot be empty")
	}
	seen := make(map[string]bool, len(c.Datasets))
	for _, d := range c.Datasets {
		switch d.Kind {
		case "enrolment", "biometric", "demographic":
		default:
			return fmt.Errorf("datasets: unknown kind %q", d.Kind)
		}
		if seen[d.Kind] {
			return fmt.Errorf("datasets: duplicate kind %q", d.Kind)
		}
		seen[d.Kind] = true
		if d.Source == "" && c.Storage.Backend == "source" {
			return fmt.Errorf("datasets: %s has no source", d.Kind)
		}
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	switch c.Storage.Backend {
	case "source", "mysql":
	default:
		return fmt.Errorf("storage.backend must be source or mysql, got %q", c.Storage.Backend)
	}
	if c.Analytics.Threshold <= 0 {
		return fmt.Errorf("analytics.threshold must be positive")
	}
	if c.Analytics.Window < 1 || c.Analytics.Steps < 1 {
		return fmt.Errorf("analytics.window and analytics.steps must be at least 1")
	}
	return nil
}
