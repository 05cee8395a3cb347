// Package config handles loading and validation of vidtrend.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// FileName is the config file looked up by Load.
const FileName = "vidtrend.yaml"

// Environment variables carrying secrets.
const (
	EnvDBPassword      = "DB_PASSWORD"
	EnvYouTubeAPIKey   = "YOUTUBE_API_KEY"
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvAPIKey          = "VIDTREND_API_KEY"
)

// Load reads vidtrend.yaml from dir. A .env file next to it, when present,
// seeds the environment without overriding variables already set.
func Load(dir string) (*types.Config, error) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("reading %s: %w", envPath, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a config document. Secrets are read
// from the environment.
func Parse(data []byte) (*types.Config, error) {
	var cfg types.Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *types.Config) {
	cfg.Database.Password = os.Getenv(EnvDBPassword)
	cfg.Source.APIKey = os.Getenv(EnvYouTubeAPIKey)
	cfg.Blob.AccessKeyID = os.Getenv(EnvAccessKeyID)
	cfg.Blob.SecretAccessKey = os.Getenv(EnvSecretAccessKey)
	if cfg.Server != nil {
		if key := os.Getenv(EnvAPIKey); key != "" {
			cfg.Server.APIKey = key
		}
	}
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *types.Config) {
	if cfg.Source.Type == "" {
		cfg.Source.Type = "file"
	}
	if cfg.Blob.Type == "" {
		cfg.Blob.Type = "file"
	}
	if cfg.Blob.Type == "file" && cfg.Blob.Dir == "" {
		cfg.Blob.Dir = "data"
	}
	if cfg.Blob.RawPrefix == "" {
		cfg.Blob.RawPrefix = "raw/"
	}
	if cfg.Blob.ProcessedPrefix == "" {
		cfg.Blob.ProcessedPrefix = "processed/"
	}
	if cfg.Blob.AnalysisPrefix == "" {
		cfg.Blob.AnalysisPrefix = "analysis/"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "youtube_trending.db"
	}
	if cfg.Database.Type == "postgres" && cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Pipeline.Concurrency <= 0 {
		cfg.Pipeline.Concurrency = 4
	}
	if cfg.Pipeline.TopLimit <= 0 {
		cfg.Pipeline.TopLimit = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server != nil && cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "vidtrend"
	}
}

// Validate checks cfg for missing or conflicting settings.
func Validate(cfg *types.Config) error {
	var errs []error
	switch cfg.Source.Type {
	case "file":
		if cfg.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for a file source"))
		}
	case "youtube":
		if cfg.Source.MaxResults < 0 || cfg.Source.MaxResults > 50 {
			errs = append(errs, errors.New("source.maxResults must be between 1 and 50"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.type %q", cfg.Source.Type))
	}

	switch cfg.Blob.Type {
	case "file":
	case "s3":
		if cfg.Blob.Bucket == "" {
			errs = append(errs, errors.New("blob.bucket is required for s3"))
		}
	case "minio":
		if cfg.Blob.Bucket == "" || cfg.Blob.Endpoint == "" {
			errs = append(errs, errors.New("blob.bucket and blob.endpoint are required for minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob.type %q", cfg.Blob.Type))
	}

	switch cfg.Database.Type {
	case "sqlite":
	case "postgres":
		if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.Name == "") {
			errs = append(errs, errors.New("database.dsn or database.host and database.name are required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.type %q", cfg.Database.Type))
	}

	for _, d := range []struct{ name, val string }{
		{"retry.initialInterval", cfg.Retry.InitialInterval},
		{"retry.maxInterval", cfg.Retry.MaxInterval},
		{"retry.callTimeout", cfg.Retry.CallTimeout},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	if cfg.Cache != nil && cfg.Cache.TTL != "" {
		if _, err := time.ParseDuration(cfg.Cache.TTL); err != nil {
			errs = append(errs, fmt.Errorf("cache.ttl: %w", err))
		}
	}
	if cfg.Schedule != nil {
		if cfg.Schedule.Cron == "" {
			errs = append(errs, errors.New("schedule.cron is required when schedule is set"))
		} else if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
		}
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

// PostgresDSN returns the configured DSN, or builds one from its parts.
func PostgresDSN(db types.DatabaseConfig) string {
	if db.DSN != "" {
		return db.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.User != "" {
		if db.Password != "" {
			u.User = url.UserPassword(db.User, db.Password)
		} else {
			u.User = url.User(db.User)
		}
	}
	return u.String()
}
