package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

const createManifestsTable = `
	CREATE TABLE IF NOT EXISTS dao_manifests (
		network    TEXT PRIMARY KEY,
		network_id BIGINT NOT NULL,
		manifest   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresStore keeps one row per network in the dao_manifests table.
type PostgresStore struct {
	pool        *pgxpool.Pool
	log         *slog.Logger
	locationURI string
	name        string
}

// NewPostgresStore connects to dsn and creates the table if needed.
func NewPostgresStore(ctx context.Context, dsn string, log *slog.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if _, err := pool.Exec(connectCtx, createManifestsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create manifests table: %w", err)
	}

	return NewPostgresStoreWithPool(pool, poolConfig.ConnConfig.Host, poolConfig.ConnConfig.Database, log), nil
}

// NewPostgresStoreWithPool wraps an existing pool. The table must exist.
func NewPostgresStoreWithPool(pool *pgxpool.Pool, host, database string, log *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:        pool,
		log:         log,
		locationURI: fmt.Sprintf("postgres://%s/%s", host, database),
		name:        fmt.Sprintf("postgres-%s", database),
	}
}

// FetchManifest returns the stored row for network.
func (s *PostgresStore) FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT manifest FROM dao_manifests WHERE network = $1`, network).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrManifestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest: %w", err)
	}
	return decodeManifest(network, data)
}

// WriteManifest upserts the network's row.
func (s *PostgresStore) WriteManifest(ctx context.Context, manifest *interfaces.Manifest) error {
	data, err := encodeManifest(manifest)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO dao_manifests (network, network_id, manifest, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (network) DO UPDATE SET
			network_id = EXCLUDED.network_id,
			manifest = EXCLUDED.manifest,
			updated_at = EXCLUDED.updated_at`,
		manifest.Network, int64(manifest.NetworkID), data)
	if err != nil {
		return fmt.Errorf("failed to upsert manifest: %w", err)
	}

	s.log.Debug("Stored manifest in postgres", slog.String("network", manifest.Network))
	return nil
}

// Available pings the database.
func (s *PostgresStore) Available(ctx context.Context) bool {
	if err := s.pool.Ping(ctx); err != nil {
		s.log.Debug("Postgres store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (s *PostgresStore) Name() string {
	return s.name
}

// LocationURI returns the URI that identifies this store, without credentials.
func (s *PostgresStore) LocationURI() string {
	return s.locationURI
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
