package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// MultiStore implements interfaces.ManifestStore over several stores.
// Writes go to every available writable store; reads come from the first
// store holding the network.
type MultiStore struct {
	stores []interfaces.ManifestStore
	log    *slog.Logger
}

// NewMultiStore creates a new multi-store.
func NewMultiStore(stores []interfaces.ManifestStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStore{
		stores: stores,
		log:    logger,
	}
}

// FetchManifest tries the stores in order. ErrManifestNotFound is returned
// only when every consulted store reported it.
func (m *MultiStore) FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable",
				slog.String("store_name", store.Name()),
				slog.String("network", network))
			continue
		}

		manifest, err := store.FetchManifest(ctx, network)
		if err == nil {
			m.log.Info("Fetched manifest",
				slog.String("store_name", store.Name()),
				slog.String("network", network),
				slog.Duration("duration", time.Since(start)))
			return manifest, nil
		}

		if errors.Is(err, interfaces.ErrManifestNotFound) {
			notFound++
		}
		errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		m.log.Debug("Failed to fetch from store",
			slog.String("store_name", store.Name()),
			slog.String("network", network),
			"err", err)
	}

	if len(errs) > 0 && notFound == len(errs) {
		return nil, interfaces.ErrManifestNotFound
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no store available for %s", interfaces.ErrStoreUnavailable, network)
	}

	m.log.Error("All stores failed to fetch manifest",
		slog.String("network", network),
		slog.Int("failed_stores", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return nil, fmt.Errorf("all stores failed to fetch %s: %w", network, errors.Join(errs...))
}

// WriteManifest writes to every available store that accepts writes. It
// succeeds when at least one store persisted the manifest.
func (m *MultiStore) WriteManifest(ctx context.Context, manifest *interfaces.Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}

	start := time.Now()
	written := 0
	var errs []error

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store_name", store.Name()))
			continue
		}

		err := store.WriteManifest(ctx, manifest)
		switch {
		case err == nil:
			written++
			m.log.Info("Stored manifest",
				slog.String("store_name", store.Name()),
				slog.String("network", manifest.Network),
				slog.Duration("duration", time.Since(start)))
		case errors.Is(err, interfaces.ErrReadOnlyStore):
			m.log.Debug("Skipping read-only store", slog.String("store_name", store.Name()))
		default:
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			m.log.Warn("Failed to store manifest",
				slog.String("store_name", store.Name()),
				"err", err)
		}
	}

	if written == 0 {
		m.log.Error("No store accepted the manifest",
			slog.Int("failed_stores", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return fmt.Errorf("%w: no writable store available", interfaces.ErrStoreUnavailable)
		}
		return fmt.Errorf("all stores failed to store manifest: %w", errors.Join(errs...))
	}

	return nil
}

// Available checks if any store is available.
func (m *MultiStore) Available(ctx context.Context) bool {
	for _, store := range m.stores {
		if store.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this store.
func (m *MultiStore) Name() string {
	return "multi-store"
}

// LocationURI combines the location URIs of every store.
func (m *MultiStore) LocationURI() string {
	var locations []string
	for _, store := range m.stores {
		locations = append(locations, store.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
