package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveSecrets fetches the database password from Secrets Manager when
// database.passwordSecretId is set and no password came from the
// environment. A nil client is created from the default AWS config.
func ResolveSecrets(ctx context.Context, cfg *types.Config, client SecretsAPI) error {
	id := cfg.Database.PasswordSecretID
	if id == "" || cfg.Database.Password != "" {
		return nil
	}
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		client = secretsmanager.NewFromConfig(awsCfg)
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return fmt.Errorf("fetching secret %s: %w", id, err)
	}
	pw, err := passwordFromSecret(aws.ToString(out.SecretString))
	if err != nil {
		return fmt.Errorf("secret %s: %w", id, err)
	}
	cfg.Database.Password = pw
	return nil
}

// passwordFromSecret accepts either a bare string or the RDS-style JSON
// document {"password": "..."}.
func passwordFromSecret(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty secret")
	}
	if !strings.HasPrefix(s, "{") {
		return s, nil
	}
	var doc struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return "", fmt.Errorf("decoding secret: %w", err)
	}
	if doc.Password == "" {
		return "", fmt.Errorf("secret has no password field")
	}
	return doc.Password, nil
}
