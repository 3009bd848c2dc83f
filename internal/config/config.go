package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Geocode       GeocodeConfig       `yaml:"geocode"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Search        SearchConfig        `yaml:"search"`
	Suggest       SuggestConfig       `yaml:"suggest"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type DirectoryConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type GeocodeConfig struct {
	BaseURL        string        `yaml:"base_url"`
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type RedisConfig struct {
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	Suggestions time.Duration `yaml:"suggestions"`
	Metadata    time.Duration `yaml:"metadata"`
	Geocode     time.Duration `yaml:"geocode"`
	Detail      time.Duration `yaml:"detail"`
}

type ClickHouseConfig struct {
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type SearchConfig struct {
	QueryTimeout   time.Duration        `yaml:"query_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	StartupRetry   RetryConfig          `yaml:"startup_retry"`
	SlowQuery      SlowQueryConfig      `yaml:"slow_query"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowQueryConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type SuggestConfig struct {
	MinQueryLength int           `yaml:"min_query_length"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxCandidates  int           `yaml:"max_candidates"`
}

type SessionConfig struct {
	IdleTTL         time.Duration `yaml:"idle_ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	ServiceName string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   500,
		},
		Directory: DirectoryConfig{
			BaseURL:        "http://localhost:8000",
			RequestTimeout: 3 * time.Second,
		},
		Geocode: GeocodeConfig{
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "edunet-search-gateway/1.0",
			RequestTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			TTL: CacheTTLConfig{
				Suggestions: 10 * time.Minute,
				Metadata:    30 * time.Minute,
				Geocode:     24 * time.Hour,
				Detail:      5 * time.Minute,
			},
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "edunet_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Search: SearchConfig{
			QueryTimeout: 2 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      50,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			StartupRetry: RetryConfig{
				MaxAttempts: 3,
				InitialWait: 200 * time.Millisecond,
				MaxWait:     2 * time.Second,
				Multiplier:  2.0,
			},
			SlowQuery: SlowQueryConfig{
				WarningThreshold:  500 * time.Millisecond,
				CriticalThreshold: 1500 * time.Millisecond,
			},
		},
		Suggest: SuggestConfig{
			MinQueryLength: 1,
			DebounceWindow: 150 * time.Millisecond,
			MaxCandidates:  8,
		},
		Session: SessionConfig{
			IdleTTL:         30 * time.Minute,
			SweepInterval:   1 * time.Minute,
			DefaultPageSize: 5,
			MaxPageSize:     50,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			ServiceName: "edunet-search-gateway",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Directory.BaseURL == "" {
		return fmt.Errorf("directory base url required")
	}
	if c.Geocode.BaseURL == "" {
		return fmt.Errorf("geocode base url required")
	}
	if c.Geocode.UserAgent == "" {
		return fmt.Errorf("geocode user agent required by the nominatim usage policy")
	}
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address required")
	}
	if c.Suggest.MinQueryLength < 1 {
		return fmt.Errorf("suggest min query length must be at least 1")
	}
	if c.Suggest.MaxCandidates <= 0 {
		return fmt.Errorf("suggest max candidates must be positive")
	}
	if c.Session.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}
	if c.Session.MaxPageSize <= 0 || c.Session.MaxPageSize > 500 {
		return fmt.Errorf("max page size must be between 1 and 500")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session idle ttl must be positive")
	}
	return nil
}
