package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/richxcame/ride-booking/pkg/config"
	"google.golang.org/api/option"
)

type gcpProvider struct {
	client  *secretmanager.Client
	project string
}

func newGCPProvider(ctx context.Context, cfg config.SecretsConfig) (*gcpProvider, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("secrets: gcp project id is required")
	}

	var opts []option.ClientOption
	if cfg.GCPCredsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCPCredsPath))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to create gcp client: %w", err)
	}
	return &gcpProvider{client: client, project: cfg.GCPProjectID}, nil
}

func (g *gcpProvider) Fetch(ctx context.Context, path string) (map[string]string, error) {
	name := path
	if !strings.HasPrefix(name, "projects/") {
		name = fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.project, path)
	}

	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("secrets: gcp fetch failed for %s: %w", path, err)
	}
	if resp.Payload == nil {
		return map[string]string{}, nil
	}
	return decodePayload(resp.Payload.Data), nil
}

func (g *gcpProvider) Close() error {
	return g.client.Close()
}
