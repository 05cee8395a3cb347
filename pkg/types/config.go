package types

// Config is the top-level vidtrend.yaml project configuration.
type Config struct {
	Source    SourceConfig     `yaml:"source" json:"source"`
	Blob      BlobConfig       `yaml:"blob" json:"blob"`
	Database  DatabaseConfig   `yaml:"database" json:"database"`
	Pipeline  PipelineConfig   `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Retry     RetryConfig      `yaml:"retry,omitempty" json:"retry,omitempty"`
	Notify    *NotifyConfig    `yaml:"notify,omitempty" json:"notify,omitempty"`
	Cache     *CacheConfig     `yaml:"cache,omitempty" json:"cache,omitempty"`
	Server    *ServerConfig    `yaml:"server,omitempty" json:"server,omitempty"`
	Schedule  *ScheduleConfig  `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
	Log       LogConfig        `yaml:"log,omitempty" json:"log,omitempty"`
}

// Category is a named upstream video category.
type Category struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// SourceConfig selects where raw records come from.
type SourceConfig struct {
	Type       string     `yaml:"type" json:"type"` // "file" or "youtube"
	Path       string     `yaml:"path,omitempty" json:"path,omitempty"`
	BaseURL    string     `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	RegionCode string     `yaml:"regionCode,omitempty" json:"regionCode,omitempty"`
	MaxResults int        `yaml:"maxResults,omitempty" json:"maxResults,omitempty"`
	Categories []Category `yaml:"categories,omitempty" json:"categories,omitempty"`
	APIKey     string     `yaml:"-" json:"-"` // YOUTUBE_API_KEY
}

// BlobConfig configures the archival object store.
type BlobConfig struct {
	Type            string `yaml:"type" json:"type"` // "s3", "minio" or "file"
	Bucket          string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	UseSSL          bool   `yaml:"useSSL,omitempty" json:"useSSL,omitempty"`
	Dir             string `yaml:"dir,omitempty" json:"dir,omitempty"`
	RawPrefix       string `yaml:"rawPrefix,omitempty" json:"rawPrefix,omitempty"`
	ProcessedPrefix string `yaml:"processedPrefix,omitempty" json:"processedPrefix,omitempty"`
	AnalysisPrefix  string `yaml:"analysisPrefix,omitempty" json:"analysisPrefix,omitempty"`
	AccessKeyID     string `yaml:"-" json:"-"`
	SecretAccessKey string `yaml:"-" json:"-"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	Type             string `yaml:"type" json:"type"` // "postgres" or "sqlite"
	DSN              string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Host             string `yaml:"host,omitempty" json:"host,omitempty"`
	Port             int    `yaml:"port,omitempty" json:"port,omitempty"`
	Name             string `yaml:"name,omitempty" json:"name,omitempty"`
	User             string `yaml:"user,omitempty" json:"user,omitempty"`
	Path             string `yaml:"path,omitempty" json:"path,omitempty"`
	PasswordSecretID string `yaml:"passwordSecretId,omitempty" json:"passwordSecretId,omitempty"`
	Password         string `yaml:"-" json:"-"` // DB_PASSWORD
}

// PipelineConfig tunes transform/load behavior.
type PipelineConfig struct {
	Concurrency int  `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	DemoMode    bool `yaml:"demoMode,omitempty" json:"demoMode,omitempty"`
	TopLimit    int  `yaml:"topLimit,omitempty" json:"topLimit,omitempty"`
}

// RetryConfig bounds retries of blocking store calls.
type RetryConfig struct {
	MaxAttempts     int    `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
	InitialInterval string `yaml:"initialInterval,omitempty" json:"initialInterval,omitempty"`
	MaxInterval     string `yaml:"maxInterval,omitempty" json:"maxInterval,omitempty"`
	CallTimeout     string `yaml:"callTimeout,omitempty" json:"callTimeout,omitempty"`
}

// NotifyConfig selects where load-completion messages go.
type NotifyConfig struct {
	QueueURL   string `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	WebhookURL string `yaml:"webhookUrl,omitempty" json:"webhookUrl,omitempty"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	Console    bool   `yaml:"console,omitempty" json:"console,omitempty"`
}

// CacheConfig enables the Redis query cache.
type CacheConfig struct {
	RedisURL string `yaml:"redisUrl" json:"redisUrl"`
	TTL      string `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// ServerConfig configures the query API.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
	// APIKey, when set, is required in X-API-Key on every route but health.
	APIKey string `yaml:"apiKey,omitempty" json:"-"`
}

// ScheduleConfig configures periodic pipeline runs.
type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	ServiceName  string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}
