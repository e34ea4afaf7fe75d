package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	vault "github.com/hashicorp/vault/api"
	"github.com/richxcame/ride-booking/pkg/config"
)

type vaultProvider struct {
	client *vault.Client
	mount  string
}

func newVaultProvider(cfg config.SecretsConfig) (*vaultProvider, error) {
	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.VaultAddress

	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to create vault client: %w", err)
	}
	if cfg.VaultToken != "" {
		client.SetToken(cfg.VaultToken)
	}

	mount := cfg.VaultMount
	if mount == "" {
		mount = "secret"
	}
	return &vaultProvider{client: client, mount: mount}, nil
}

func (v *vaultProvider) Fetch(ctx context.Context, path string) (map[string]string, error) {
	secret, err := v.client.KVv2(v.mount).Get(ctx, path)
	if err != nil {
		var respErr *vault.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("secrets: vault path %s not found", path)
		}
		return nil, err
	}

	payload := make(map[string]string, len(secret.Data))
	for k, raw := range secret.Data {
		payload[k] = fmt.Sprint(raw)
	}
	return payload, nil
}

func (v *vaultProvider) Close() error {
	return nil
}
