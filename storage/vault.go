package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// VaultStore keeps manifests in a KV v2 secrets engine at
// <mount>/<dataPath>/<network>, under the "manifest" key.
//
// The client reads VAULT_TOKEN and the other VAULT_* variables from the
// environment; a token given explicitly overrides it.
type VaultStore struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultStore creates a new Vault manifest store.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "dao/releases")
//   - token: Vault token, or empty to use the environment
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultStore{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

func (s *VaultStore) secretPath(network string) (string, error) {
	if err := checkNetwork(network); err != nil {
		return "", err
	}
	if s.dataPath == "" {
		return network, nil
	}
	return s.dataPath + "/" + network, nil
}

// FetchManifest reads the latest version of the network's secret.
func (s *VaultStore) FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error) {
	p, err := s.secretPath(network)
	if err != nil {
		return nil, err
	}

	secret, err := s.client.KVv2(s.mountPath).Get(ctx, p)
	if errors.Is(err, api.ErrSecretNotFound) {
		s.log.Debug("Manifest not found in Vault", slog.String("path", p))
		return nil, interfaces.ErrManifestNotFound
	}
	if err != nil {
		s.log.Error("Failed to read from Vault", slog.String("path", p), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrManifestNotFound
	}

	content, ok := secret.Data["manifest"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: manifest key not found in Vault data at %s", interfaces.ErrInvalidManifest, p)
	}
	return decodeManifest(network, []byte(content))
}

// WriteManifest writes a new version of the network's secret.
func (s *VaultStore) WriteManifest(ctx context.Context, manifest *interfaces.Manifest) error {
	start := time.Now()
	data, err := encodeManifest(manifest)
	if err != nil {
		return err
	}
	p, err := s.secretPath(manifest.Network)
	if err != nil {
		return err
	}

	_, err = s.client.KVv2(s.mountPath).Put(ctx, p, map[string]interface{}{
		"manifest": string(data),
	})
	if err != nil {
		s.log.Error("Failed to write to Vault", slog.String("path", p), "err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Info("Stored manifest in Vault",
		slog.String("path", p),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Available uses the health endpoint to verify that Vault is initialized and unsealed.
func (s *VaultStore) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := s.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		s.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		s.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this store.
func (s *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", s.mountPath, s.dataPath)
}

// LocationURI returns the URI that identifies this store.
func (s *VaultStore) LocationURI() string {
	return s.locationURI
}
