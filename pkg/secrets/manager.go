package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

var (
	// ErrProviderNotConfigured is returned when no provider is configured.
	ErrProviderNotConfigured = errors.New("secrets: provider not configured")
	// ErrInvalidReference indicates an invalid or empty reference string.
	ErrInvalidReference = errors.New("secrets: invalid reference")
	// ErrKeyNotFound is returned when a requested key does not exist in the secret payload.
	ErrKeyNotFound = errors.New("secrets: key not found")
)

// Provider fetches the key/value payload stored at path.
type Provider interface {
	Fetch(ctx context.Context, path string) (map[string]string, error)
	Close() error
}

type cacheEntry struct {
	data      map[string]string
	expiresAt time.Time
}

// Manager resolves "path#key" references against a Provider with a TTL cache.
type Manager struct {
	provider Provider
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewManager builds the provider selected in cfg.
func NewManager(ctx context.Context, cfg config.SecretsConfig) (*Manager, error) {
	var (
		p   Provider
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case "vault":
		p, err = newVaultProvider(cfg)
	case "aws":
		p, err = newAWSProvider(ctx, cfg)
	case "gcp":
		p, err = newGCPProvider(ctx, cfg)
	case "":
		return nil, ErrProviderNotConfigured
	default:
		return nil, fmt.Errorf("secrets: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewManagerWithProvider(p, cfg.CacheTTL), nil
}

// NewManagerWithProvider wraps an existing provider.
func NewManagerWithProvider(p Provider, ttl time.Duration) *Manager {
	return &Manager{
		provider: p,
		ttl:      ttl,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// parseReference splits "path#key"; the key defaults to "value".
func parseReference(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	path, key, found := strings.Cut(ref, "#")
	path = strings.Trim(path, "/")
	if path == "" {
		return "", "", ErrInvalidReference
	}
	if !found || key == "" {
		key = "value"
	}
	return path, key, nil
}

// Resolve returns the secret value behind ref.
func (m *Manager) Resolve(ctx context.Context, ref string) (string, error) {
	path, key, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	data, err := m.load(ctx, path)
	if err != nil {
		return "", err
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s#%s", ErrKeyNotFound, path, key)
	}
	return value, nil
}

// ResolveInto overwrites dst with the secret behind ref when ref is set.
func (m *Manager) ResolveInto(ctx context.Context, dst *string, ref string) error {
	if ref == "" {
		return nil
	}
	value, err := m.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	*dst = value
	return nil
}

func (m *Manager) load(ctx context.Context, path string) (map[string]string, error) {
	m.mu.Lock()
	entry, ok := m.cache[path]
	m.mu.Unlock()
	if ok && m.now().Before(entry.expiresAt) {
		return entry.data, nil
	}

	data, err := m.provider.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	if m.ttl > 0 {
		m.mu.Lock()
		m.cache[path] = cacheEntry{data: data, expiresAt: m.now().Add(m.ttl)}
		m.mu.Unlock()
	}

	logger.Debug("secret loaded", zap.String("path", path))
	return data, nil
}

// Close releases provider resources.
func (m *Manager) Close() error {
	return m.provider.Close()
}
