package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// IPFSStore keeps manifests in the node's mutable file system (MFS) under
// root, one file per network. After each write the root's CID is logged so
// the release directory can be pinned or published.
type IPFSStore struct {
	shell       *shell.Shell
	host        string
	port        string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSStore creates a store talking to the IPFS API at host:port.
func NewIPFSStore(host, port, root string, timeout time.Duration, log *slog.Logger) (*IPFSStore, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	if root == "" || root == "/" {
		root = "/releases"
	}
	root = "/" + strings.Trim(root, "/")

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSStore{
		shell:       sh,
		host:        host,
		port:        port,
		root:        root,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiURL, root, timeout),
	}, nil
}

// FetchManifest reads <root>/<network>.json from MFS.
func (s *IPFSStore) FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error) {
	start := time.Now()
	name, err := objectName(network)
	if err != nil {
		return nil, err
	}
	p := path.Join(s.root, name)

	if !s.shell.IsUp() {
		s.log.Warn("IPFS node unavailable",
			slog.String("host", s.host),
			slog.String("port", s.port))
		return nil, interfaces.ErrStoreUnavailable
	}

	reader, err := s.shell.FilesRead(ctx, p)
	if err != nil {
		if isMFSNotFound(err) {
			s.log.Debug("Manifest not found in IPFS",
				slog.String("path", p),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrManifestNotFound
		}
		s.log.Error("Failed to read manifest from IPFS",
			slog.String("path", p),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	s.log.Debug("Fetched manifest from IPFS",
		slog.String("path", p),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return decodeManifest(network, data)
}

// WriteManifest replaces <root>/<network>.json in MFS.
func (s *IPFSStore) WriteManifest(ctx context.Context, manifest *interfaces.Manifest) error {
	data, err := encodeManifest(manifest)
	if err != nil {
		return err
	}
	name, err := objectName(manifest.Network)
	if err != nil {
		return err
	}
	p := path.Join(s.root, name)

	if !s.shell.IsUp() {
		return interfaces.ErrStoreUnavailable
	}

	err = s.shell.FilesWrite(ctx, p, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return fmt.Errorf("failed to write to IPFS: %w", err)
	}

	attrs := []any{slog.String("path", p), slog.String("network", manifest.Network)}
	if stat, err := s.shell.FilesStat(ctx, s.root); err == nil {
		attrs = append(attrs, slog.String("rootCID", stat.Hash))
	}
	s.log.Info("Stored manifest in IPFS", attrs...)
	return nil
}

// Available checks if the IPFS node is accessible.
func (s *IPFSStore) Available(ctx context.Context) bool {
	return s.shell.IsUp()
}

// Name returns a unique identifier for this store.
func (s *IPFSStore) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", s.host, s.port)
}

// LocationURI returns the URI that identifies this store.
func (s *IPFSStore) LocationURI() string {
	return s.locationURI
}

func isMFSNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "file does not exist") || strings.Contains(msg, "no link named")
}
