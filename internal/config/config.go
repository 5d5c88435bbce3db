package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admission AdmissionConfig `yaml:"admission"`
	Routing   RoutingConfig   `yaml:"routing"`
	Assembler AssemblerConfig `yaml:"assembler"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	s := ""
	for i > 0 {
		s = string(rune('0'+i%10)) + s
		i /= 10
	}
	return s
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

type CacheConfig struct {
	// Backend selects the result cache implementation: "memory" or "redis".
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	// CallerScoped partitions cache keys by caller, for per-tenant isolation.
	CallerScoped bool `yaml:"caller_scoped"`
}

type RateLimitConfig struct {
	// Buckets is keyed by capability; capabilities without an entry fall back
	// to the "default" entry.
	Buckets map[string]BucketConfig `yaml:"buckets"`
	// DailyTokenBudget caps provider-reported token spend per caller per UTC
	// day. Zero disables the check. Requires Redis.
	DailyTokenBudget int64 `yaml:"daily_token_budget"`
}

type BucketConfig struct {
	Burst      float64 `yaml:"burst"`
	RefillRate float64 `yaml:"refill_rate"` // tokens per second
}

type AdmissionConfig struct {
	MaxTranslateChars int          `yaml:"max_translate_chars"`
	MaxPromptChars    int          `yaml:"max_prompt_chars"`
	MaxImageBytes     int          `yaml:"max_image_bytes"`
	Policy            PolicyConfig `yaml:"policy"`
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

type RoutingConfig struct {
	DefaultTimeout time.Duration        `yaml:"default_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	FailureWindow    time.Duration `yaml:"failure_window"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

type AssemblerConfig struct {
	TokenBudget int `yaml:"token_budget"`
}

type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "gateway",
			User:            "gateway",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     time.Hour,
		},
		RateLimit: RateLimitConfig{
			Buckets: map[string]BucketConfig{
				"default":   {Burst: 30, RefillRate: 0.5},
				"translate": {Burst: 60, RefillRate: 1},
				"generate":  {Burst: 20, RefillRate: 0.2},
			},
		},
		Admission: AdmissionConfig{
			MaxTranslateChars: 5000,
			MaxPromptChars:    32000,
			MaxImageBytes:     10 << 20,
			Policy: PolicyConfig{
				Enabled:           false,
				BundlePath:        "/etc/gateway/policies",
				EvaluationTimeout: 100 * time.Millisecond,
			},
		},
		Routing: RoutingConfig{
			DefaultTimeout: 30 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 3,
				FailureWindow:    60 * time.Second,
				Cooldown:         30 * time.Second,
			},
		},
		Assembler: AssemblerConfig{
			TokenBudget: 3000,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			BufferSize:    1024,
			FlushInterval: 5 * time.Second,
		},
	}
}
