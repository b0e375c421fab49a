package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the orchestrator.
type Config struct {
	HTTPPort  string
	JWTSecret []byte
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Queue     QueueConfig
	Execution ExecutionConfig
	Budget    BudgetConfig
	Catalog   CatalogConfig
	Provider  ProviderConfig
	Notify    NotifyConfig
	Metrics   MetricsConfig
}

// StorageConfig selects the request record backend
type StorageConfig struct {
	Backend string // "postgres" or "memory"
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheConfig holds response cache and override cache settings
type CacheConfig struct {
	Backend           string // "redis" or "memory"
	MemorySize        int
	OverrideCacheSize int
	OverrideCacheTTL  time.Duration
}

// QueueConfig holds async job queue settings
type QueueConfig struct {
	Backend      string // "redis" or "memory"
	Name         string
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	MaxSize      int
}

// ExecutionConfig holds deadline and retry settings for the execution unit
type ExecutionConfig struct {
	Deadline             time.Duration // wall-clock bound per attempt
	TimeoutMaxAttempts   int
	TimeoutDelay         time.Duration
	TransientMaxAttempts int
	TransientBaseDelay   time.Duration
	TransientMaxDelay    time.Duration
}

// BudgetConfig holds admission ceilings and alert thresholds, in cents. Zero disables.
type BudgetConfig struct {
	DailyLimitCents     int64
	UserDailyLimitCents int64

	DailyAlertCents     int64
	MonthlyAlertCents   int64
	UserDailyAlertCents int64
	AlertInterval       time.Duration
}

// CatalogConfig points at the optional YAML routing/pricing file
type CatalogConfig struct {
	Path  string
	Watch bool
}

// ProviderConfig holds provider client settings
type ProviderConfig struct {
	RequestTimeout time.Duration
	Endpoints      []ProviderEndpoint
}

// ProviderEndpoint is one OpenAI-compatible backend and the model prefixes it serves
type ProviderEndpoint struct {
	Name     string
	BaseURL  string
	APIKey   string
	Prefixes []string
}

// NotifyConfig holds observer channel settings
type NotifyConfig struct {
	RedisChannel string // empty disables pub/sub

	ArchiveEnabled       bool
	ArchiveBufferSize    int
	ArchiveFlushSize     int
	ArchiveFlushInterval time.Duration
	S3Bucket             string
	S3Region             string
	S3Prefix             string
	PodName              string
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEndpoint reads <NAME>_BASE_URL, <NAME>_API_KEY and <NAME>_MODEL_PREFIXES.
// Endpoints without an API key are skipped.
func loadEndpoint(name, defaultURL string, defaultPrefixes []string) (ProviderEndpoint, bool) {
	upper := strings.ToUpper(name)
	apiKey := os.Getenv(upper + "_API_KEY")
	if apiKey == "" {
		return ProviderEndpoint{}, false
	}
	return ProviderEndpoint{
		Name:     name,
		BaseURL:  getEnvString(upper+"_BASE_URL", defaultURL),
		APIKey:   apiKey,
		Prefixes: getEnvList(upper+"_MODEL_PREFIXES", defaultPrefixes),
	}, true
}

// JWTSecret returns the token signing secret
func JWTSecret() []byte {
	return []byte(getEnvString("JWT_SECRET", "supersecretkey"))
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:  getEnvString("HTTP_PORT", "8080"),
		JWTSecret: JWTSecret(),
		Storage: StorageConfig{
			Backend: getEnvString("STORAGE_BACKEND", "postgres"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			Backend:           getEnvString("CACHE_BACKEND", "redis"),
			MemorySize:        getEnvInt("CACHE_MEMORY_SIZE", 10000),
			OverrideCacheSize: getEnvInt("CACHE_OVERRIDE_SIZE", 256),
			OverrideCacheTTL:  getEnvDuration("CACHE_OVERRIDE_TTL", 30*time.Second),
		},
		Queue: QueueConfig{
			Backend:      getEnvString("QUEUE_BACKEND", "redis"),
			Name:         getEnvString("QUEUE_NAME", "ai_requests"),
			Workers:      getEnvInt("QUEUE_WORKERS", 4),
			BatchSize:    getEnvInt("QUEUE_BATCH_SIZE", 10),
			PollInterval: getEnvDuration("QUEUE_POLL_INTERVAL", 500*time.Millisecond),
			MaxSize:      getEnvInt("QUEUE_MAX_SIZE", 0),
		},
		Execution: ExecutionConfig{
			Deadline:             getEnvDuration("EXECUTION_DEADLINE", 5*time.Minute),
			TimeoutMaxAttempts:   getEnvInt("EXECUTION_TIMEOUT_MAX_ATTEMPTS", 3),
			TimeoutDelay:         getEnvDuration("EXECUTION_TIMEOUT_DELAY", 5*time.Second),
			TransientMaxAttempts: getEnvInt("EXECUTION_TRANSIENT_MAX_ATTEMPTS", 5),
			TransientBaseDelay:   getEnvDuration("EXECUTION_TRANSIENT_BASE_DELAY", 2*time.Second),
			TransientMaxDelay:    getEnvDuration("EXECUTION_TRANSIENT_MAX_DELAY", time.Minute),
		},
		Budget: BudgetConfig{
			DailyLimitCents:     getEnvInt64("BUDGET_DAILY_LIMIT_CENTS", 0),
			UserDailyLimitCents: getEnvInt64("BUDGET_USER_DAILY_LIMIT_CENTS", 0),
			DailyAlertCents:     getEnvInt64("BUDGET_DAILY_ALERT_CENTS", 0),
			MonthlyAlertCents:   getEnvInt64("BUDGET_MONTHLY_ALERT_CENTS", 0),
			UserDailyAlertCents: getEnvInt64("BUDGET_USER_DAILY_ALERT_CENTS", 0),
			AlertInterval:       getEnvDuration("BUDGET_ALERT_INTERVAL", 15*time.Minute),
		},
		Catalog: CatalogConfig{
			Path:  getEnvString("CATALOG_PATH", ""),
			Watch: getEnvBool("CATALOG_WATCH", true),
		},
		Provider: ProviderConfig{
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Notify: NotifyConfig{
			RedisChannel:         getEnvString("NOTIFY_REDIS_CHANNEL", ""),
			ArchiveEnabled:       getEnvBool("NOTIFY_ARCHIVE_ENABLED", false),
			ArchiveBufferSize:    getEnvInt("NOTIFY_ARCHIVE_BUFFER_SIZE", 10000),
			ArchiveFlushSize:     getEnvInt("NOTIFY_ARCHIVE_FLUSH_SIZE", 1000),
			ArchiveFlushInterval: getEnvDuration("NOTIFY_ARCHIVE_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:             getEnvString("NOTIFY_ARCHIVE_S3_BUCKET", ""),
			S3Region:             getEnvString("NOTIFY_ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:             getEnvString("NOTIFY_ARCHIVE_S3_PREFIX", "outcomes/"),
			PodName:              getEnvString("POD_NAME", "orchestrator-0"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	defaults := []struct {
		name     string
		url      string
		prefixes []string
	}{
		{"openai", "https://api.openai.com/v1", []string{"gpt-"}},
		{"anthropic", "https://api.anthropic.com/v1", []string{"claude-"}},
		{"google", "https://generativelanguage.googleapis.com/v1beta/openai", []string{"gemini-", "nanobanana-"}},
		{"elevenlabs", "https://api.elevenlabs.io/v1", []string{"eleven_"}},
	}
	for _, d := range defaults {
		if ep, ok := loadEndpoint(d.name, d.url, d.prefixes); ok {
			cfg.Provider.Endpoints = append(cfg.Provider.Endpoints, ep)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that cannot fall back to a default
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Cache.Backend != "redis" && c.Cache.Backend != "memory" {
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.Queue.Backend != "redis" && c.Queue.Backend != "memory" {
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queue.Backend)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("QUEUE_WORKERS must be positive")
	}
	if c.Execution.Deadline <= 0 {
		return fmt.Errorf("EXECUTION_DEADLINE must be positive")
	}
	if c.Execution.TimeoutMaxAttempts <= 0 || c.Execution.TransientMaxAttempts <= 0 {
		return fmt.Errorf("execution attempt caps must be positive")
	}
	if c.Notify.ArchiveEnabled && c.Notify.S3Bucket == "" {
		return fmt.Errorf("NOTIFY_ARCHIVE_S3_BUCKET is required when archiving is enabled")
	}
	return nil
}
