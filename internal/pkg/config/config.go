package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Valkey       ValkeyConfig       `mapstructure:"valkey"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Search       SearchConfig       `mapstructure:"search"`
	Geo          GeoConfig          `mapstructure:"geo"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Temporal     TemporalConfig     `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	RateLimit    int `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// SearchConfig locates the hosted search engine.
type SearchConfig struct {
	Endpoint             string   `mapstructure:"endpoint"`
	APIKey               string   `mapstructure:"api_key"`
	TimeoutSeconds       int      `mapstructure:"timeout_seconds"`
	PropertiesCollection string   `mapstructure:"properties_collection"`
	LocationsCollection  string   `mapstructure:"locations_collection"`
	PropertyQueryBy      []string `mapstructure:"property_query_by"`
	LocationQueryBy      []string `mapstructure:"location_query_by"`
}

func (s SearchConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GeoConfig bounds filter construction.
type GeoConfig struct {
	MaxFilterChars      int     `mapstructure:"max_filter_chars"`
	HardLimitChars      int     `mapstructure:"hard_limit_chars"`
	StartTolerance      float64 `mapstructure:"start_tolerance"`
	MaxTolerance        float64 `mapstructure:"max_tolerance"`
	ToleranceGrowth     float64 `mapstructure:"tolerance_growth"`
	DefaultRadiusMeters float64 `mapstructure:"default_radius_meters"`
}

// OrchestratorConfig tunes search sessions.
type OrchestratorConfig struct {
	PageSize           int    `mapstructure:"page_size"`
	TextPageSize       int    `mapstructure:"text_page_size"`
	PageDelayMs        int    `mapstructure:"page_delay_ms"`
	SearchCutoffMs     int    `mapstructure:"search_cutoff_ms"`
	ExhaustiveSearch   bool   `mapstructure:"exhaustive_search"`
	UseCache           bool   `mapstructure:"use_cache"`
	MaxCandidates      int    `mapstructure:"max_candidates"`
	AutoLoad           bool   `mapstructure:"auto_load"`
	OversizePolicy     string `mapstructure:"oversize_policy"`
	FallbackTTLSeconds int    `mapstructure:"fallback_ttl_seconds"`
}

func (o OrchestratorConfig) PageDelay() time.Duration {
	return time.Duration(o.PageDelayMs) * time.Millisecond
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	BatchSize int    `mapstructure:"batch_size"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ETXEBILA_SEARCH_API_KEY → search.api_key
	v.SetEnvPrefix("ETXEBILA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.rate_limit", 200)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "etxebila")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "etxebila")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.password", "")
	v.SetDefault("valkey.db", 0)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)

	v.SetDefault("search.endpoint", "http://localhost:8108")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.timeout_seconds", 10)
	v.SetDefault("search.properties_collection", "properties")
	v.SetDefault("search.locations_collection", "locations")
	v.SetDefault("search.property_query_by", []string{"title", "description", "address"})
	v.SetDefault("search.location_query_by", []string{"name", "municipality", "region"})

	v.SetDefault("geo.max_filter_chars", 3900)
	v.SetDefault("geo.hard_limit_chars", 4000)
	v.SetDefault("geo.start_tolerance", 0.0001)
	v.SetDefault("geo.max_tolerance", 0.05)
	v.SetDefault("geo.tolerance_growth", 2.0)
	v.SetDefault("geo.default_radius_meters", 1000.0)

	v.SetDefault("orchestrator.page_size", 250)
	v.SetDefault("orchestrator.text_page_size", 20)
	v.SetDefault("orchestrator.page_delay_ms", 800)
	v.SetDefault("orchestrator.search_cutoff_ms", 3000)
	v.SetDefault("orchestrator.exhaustive_search", false)
	v.SetDefault("orchestrator.use_cache", true)
	v.SetDefault("orchestrator.max_candidates", 1000)
	v.SetDefault("orchestrator.auto_load", true)
	v.SetDefault("orchestrator.oversize_policy", "bbox")
	v.SetDefault("orchestrator.fallback_ttl_seconds", 900)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "etxebila-precompute")
	v.SetDefault("temporal.batch_size", 100)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Search.Endpoint == "" {
		errs = append(errs, "search.endpoint is required")
	}
	if c.Search.TimeoutSeconds <= 0 {
		errs = append(errs, "search.timeout_seconds must be positive")
	}

	g := c.Geo
	if g.HardLimitChars <= 0 {
		errs = append(errs, "geo.hard_limit_chars must be positive")
	}
	if g.MaxFilterChars <= 0 || g.MaxFilterChars > g.HardLimitChars {
		errs = append(errs, fmt.Sprintf("geo.max_filter_chars must be 1-%d, got %d", g.HardLimitChars, g.MaxFilterChars))
	}
	if g.StartTolerance <= 0 || g.MaxTolerance < g.StartTolerance {
		errs = append(errs, "geo tolerances must satisfy 0 < start_tolerance <= max_tolerance")
	}
	if g.ToleranceGrowth <= 1 {
		errs = append(errs, "geo.tolerance_growth must be greater than 1")
	}

	o := c.Orchestrator
	if o.PageSize <= 0 || o.PageSize > 250 {
		errs = append(errs, fmt.Sprintf("orchestrator.page_size must be 1-250, got %d", o.PageSize))
	}
	if o.TextPageSize <= 0 || o.TextPageSize > o.PageSize {
		errs = append(errs, "orchestrator.text_page_size must be between 1 and page_size")
	}
	if o.PageDelayMs < 0 {
		errs = append(errs, "orchestrator.page_delay_ms must not be negative")
	}
	if o.OversizePolicy != "bbox" && o.OversizePolicy != "fail" {
		errs = append(errs, fmt.Sprintf("orchestrator.oversize_policy must be bbox or fail, got %q", o.OversizePolicy))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
