package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/richxcame/ride-booking/pkg/config"
)

type awsProvider struct {
	client *secretsmanager.Client
}

func newAWSProvider(ctx context.Context, cfg config.SecretsConfig) (*awsProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to load aws config: %w", err)
	}
	return &awsProvider{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

func (a *awsProvider) Fetch(ctx context.Context, path string) (map[string]string, error) {
	result, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: aws fetch failed for %s: %w", path, err)
	}

	var raw []byte
	switch {
	case result.SecretString != nil:
		raw = []byte(*result.SecretString)
	default:
		raw = result.SecretBinary
	}
	return decodePayload(raw), nil
}

func (a *awsProvider) Close() error {
	return nil
}

// decodePayload accepts a JSON object or a bare value stored under "value".
func decodePayload(raw []byte) map[string]string {
	payload := make(map[string]string)
	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		for k, v := range asMap {
			payload[k] = v
		}
		return payload
	}
	payload["value"] = string(raw)
	return payload
}
