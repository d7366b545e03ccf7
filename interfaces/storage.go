package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// StoreLocation is the URI of a manifest store:
// [scheme]://[auth@]host[:port][/path][?params]
type StoreLocation string

// SupportedStoreSchemes lists the schemes a ManifestStoreFactory understands.
var SupportedStoreSchemes = []string{"file", "s3", "ipfs", "vault", "postgres", "postgresql", "github"}

// NewStoreLocation validates the URI and its scheme.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	for _, s := range SupportedStoreSchemes {
		if s == scheme {
			return StoreLocation(uri), nil
		}
	}
	return "", fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
}

func (loc StoreLocation) String() string {
	return string(loc)
}

var (
	// ErrManifestNotFound is returned when no manifest is stored for the network.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrStoreUnavailable is returned when a store is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrStoreUnavailable = errors.New("manifest store unavailable")

	// ErrInvalidLocationURI is returned when a store location URI is malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrReadOnlyStore is returned by stores that cannot persist manifests.
	ErrReadOnlyStore = errors.New("manifest store is read-only")

	// ErrInvalidManifest is returned for manifests that cannot be keyed.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// ManifestWriter persists a completed manifest. Provisioning calls it once per successful run.
type ManifestWriter interface {
	WriteManifest(ctx context.Context, manifest *Manifest) error
}

// ManifestStore stores manifests keyed by network name.
type ManifestStore interface {
	ManifestWriter

	// FetchManifest returns ErrManifestNotFound when the network has no manifest.
	FetchManifest(ctx context.Context, network string) (*Manifest, error)

	// Available checks if the store is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this store.
	LocationURI() string
}

// ManifestStoreFactory creates manifest stores.
type ManifestStoreFactory interface {
	// StoreFor creates a store from URI.
	StoreFor(location StoreLocation) (ManifestStore, error)

	// CreateMultiStore creates an aggregated store writing to every location.
	CreateMultiStore(locations []StoreLocation) (ManifestStore, error)
}

// ManifestWriterFunc adapts a function to a ManifestWriter.
type ManifestWriterFunc func(ctx context.Context, manifest *Manifest) error

func (f ManifestWriterFunc) WriteManifest(ctx context.Context, manifest *Manifest) error {
	return f(ctx, manifest)
}
