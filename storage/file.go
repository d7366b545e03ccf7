package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// DeploymentFileName is used when a file location names a directory.
const DeploymentFileName = "deployment.json"

// FileStore keeps every network's manifest in one JSON document keyed by
// network name. Writes replace only their own network's entry.
type FileStore struct {
	mu          sync.Mutex
	path        string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a store backed by path. A path without a .json
// extension is treated as a directory holding deployment.json.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if !strings.HasSuffix(path, ".json") {
		path = filepath.Join(path, DeploymentFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileStore{
		path:        path,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", path),
	}, nil
}

// FetchManifest returns the manifest stored for network.
func (s *FileStore) FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[network]
	if !ok {
		return nil, interfaces.ErrManifestNotFound
	}
	return decodeManifest(network, raw)
}

// WriteManifest merges the manifest into the document and replaces the file atomically.
func (s *FileStore) WriteManifest(ctx context.Context, manifest *interfaces.Manifest) error {
	data, err := encodeManifest(manifest)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[manifest.Network] = data

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deployment file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".deployment-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	s.log.Debug("Stored manifest in file",
		slog.String("path", s.path),
		slog.String("network", manifest.Network))
	return nil
}

// read loads the document; a missing file is an empty document. Callers hold the lock.
func (s *FileStore) read() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrInvalidManifest, s.path, err)
	}
	return doc, nil
}

// Available checks that the directory holding the document exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		s.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.path))
}

// LocationURI returns the URI that identifies this store.
func (s *FileStore) LocationURI() string {
	return s.locationURI
}
