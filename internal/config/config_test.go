package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BUCKET", "trending-archive")
	writeConfig(t, dir, `source:
  type: youtube
  regionCode: GB
  maxResults: 25
  categories:
    - id: 10
      name: Music
    - id: 20
      name: Gaming
blob:
  type: s3
  bucket: ${BUCKET}
  region: eu-west-1
database:
  type: postgres
  host: db.internal
  name: trending
  user: etl
pipeline:
  concurrency: 8
  demoMode: true
retry:
  maxAttempts: 5
  initialInterval: 100ms
server: {}
cache:
  redisUrl: redis://localhost:6379/0
  ttl: 2m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PASSWORD=from-dotenv\nYOUTUBE_API_KEY=yt-key\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv(EnvDBPassword)
		_ = os.Unsetenv(EnvYouTubeAPIKey)
	})

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "youtube", cfg.Source.Type)
	assert.Len(t, cfg.Source.Categories, 2)
	assert.Equal(t, "yt-key", cfg.Source.APIKey)
	assert.Equal(t, "trending-archive", cfg.Blob.Bucket)
	assert.Equal(t, "raw/", cfg.Blob.RawPrefix)
	assert.Equal(t, "processed/", cfg.Blob.ProcessedPrefix)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "from-dotenv", cfg.Database.Password)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.DemoMode)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "2m", cfg.Cache.TTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentWinsOverDotenv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "source:\n  path: raw.json\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PASSWORD=from-dotenv\n"), 0o600))
	t.Setenv(EnvDBPassword, "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Password)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "source:\n  path: raw.json\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Source.Type)
	assert.Equal(t, "file", cfg.Blob.Type)
	assert.Equal(t, "data", cfg.Blob.Dir)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "youtube_trending.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 20, cfg.Pipeline.TopLimit)
	assert.False(t, cfg.Pipeline.DemoMode)
	assert.Nil(t, cfg.Server)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "invalid: [yaml")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"file source without path", "source:\n  type: file\n", "source.path is required"},
		{"unknown source", "source:\n  type: ftp\n", `unknown source.type "ftp"`},
		{"s3 without bucket", "source:\n  path: x\nblob:\n  type: s3\n", "blob.bucket is required"},
		{"minio without endpoint", "source:\n  path: x\nblob:\n  type: minio\n  bucket: b\n", "blob.endpoint are required"},
		{"unknown blob", "source:\n  path: x\nblob:\n  type: gcs\n", `unknown blob.type "gcs"`},
		{"postgres without host", "source:\n  path: x\ndatabase:\n  type: postgres\n", "database.dsn or database.host"},
		{"unknown database", "source:\n  path: x\ndatabase:\n  type: mysql\n", `unknown database.type "mysql"`},
		{"bad retry interval", "source:\n  path: x\nretry:\n  initialInterval: soon\n", "retry.initialInterval"},
		{"bad cache ttl", "source:\n  path: x\ncache:\n  redisUrl: redis://x\n  ttl: forever\n", "cache.ttl"},
		{"schedule without cron", "source:\n  path: x\nschedule: {}\n", "schedule.cron is required"},
		{"bad cron", "source:\n  path: x\nschedule:\n  cron: every hour\n", "schedule.cron:"},
		{"bad log format", "source:\n  path: x\nlog:\n  format: xml\n", `unknown log.format "xml"`},
		{"youtube max results", "source:\n  type: youtube\n  maxResults: 51\n", "source.maxResults"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidation_ReportsAllErrors(t *testing.T) {
	_, err := Parse([]byte("source:\n  type: file\nblob:\n  type: s3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.path")
	assert.Contains(t, err.Error(), "blob.bucket")
}

func TestPostgresDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", PostgresDSN(types.DatabaseConfig{DSN: "postgres://x"}))
	assert.Equal(t, "postgres://etl:p%40ss@db:5432/trending", PostgresDSN(types.DatabaseConfig{
		Host: "db", Port: 5432, Name: "trending", User: "etl", Password: "p@ss",
	}))
	assert.Equal(t, "postgres://etl@db:5433/t", PostgresDSN(types.DatabaseConfig{Host: "db", Port: 5433, Name: "t", User: "etl"}))
}

type mockSecrets struct {
	value string
	err   error
	asked []string
}

func (m *mockSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.asked = append(m.asked, aws.ToString(in.SecretId))
	if m.err != nil {
		return nil, m.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(m.value)}, nil
}

func TestResolveSecrets(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr bool
	}{
		{"plain", "hunter2", "hunter2", false},
		{"rds json", `{"username":"etl","password":"s3cret"}`, "s3cret", false},
		{"json without password", `{"username":"etl"}`, "", true},
		{"empty", "  ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &types.Config{Database: types.DatabaseConfig{PasswordSecretID: "db/pw"}}
			mock := &mockSecrets{value: tt.secret}
			err := ResolveSecrets(context.Background(), cfg, mock)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Database.Password)
			assert.Equal(t, []string{"db/pw"}, mock.asked)
		})
	}
}

func TestResolveSecrets_Skips(t *testing.T) {
	mock := &mockSecrets{err: errors.New("should not be called")}

	require.NoError(t, ResolveSecrets(context.Background(), &types.Config{}, mock))
	cfg := &types.Config{Database: types.DatabaseConfig{PasswordSecretID: "db/pw", Password: "env"}}
	require.NoError(t, ResolveSecrets(context.Background(), cfg, mock))
	assert.Equal(t, "env", cfg.Database.Password)
	assert.Empty(t, mock.asked)
}

func TestResolveSecrets_ClientError(t *testing.T) {
	cfg := &types.Config{Database: types.DatabaseConfig{PasswordSecretID: "db/pw"}}
	err := ResolveSecrets(context.Background(), cfg, &mockSecrets{err: errors.New("denied")})
	assert.ErrorContains(t, err, "denied")
}
