package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir, discardLogger())
	require.NoError(t, err)
	assert.True(t, store.Available(ctx))
	assert.Equal(t, "file://"+filepath.Join(dir, DeploymentFileName), store.LocationURI())

	_, err = store.FetchManifest(ctx, "develop")
	require.ErrorIs(t, err, interfaces.ErrManifestNotFound)

	develop := testManifest("develop")
	require.NoError(t, store.WriteManifest(ctx, develop))

	staging := testManifest("staging")
	staging.NetworkID = 3
	require.NoError(t, store.WriteManifest(ctx, staging))

	got, err := store.FetchManifest(ctx, "develop")
	require.NoError(t, err)
	assert.Equal(t, develop, got)

	// A later write for one network leaves the others in place.
	develop.Avatar = staging.GoodDollar
	require.NoError(t, store.WriteManifest(ctx, develop))

	got, err = store.FetchManifest(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, staging, got)

	got, err = store.FetchManifest(ctx, "develop")
	require.NoError(t, err)
	assert.Equal(t, staging.GoodDollar, got.Avatar)

	data, err := os.ReadFile(filepath.Join(dir, DeploymentFileName))
	require.NoError(t, err)
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc, 2)
	assert.Equal(t, "develop", doc["develop"]["network"])
	assert.Equal(t, float64(4447), doc["develop"]["networkId"])
}

func TestFileStoreExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releases", "custom.json")
	store, err := NewFileStore(path, discardLogger())
	require.NoError(t, err)

	require.NoError(t, store.WriteManifest(context.Background(), testManifest("kovan")))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir, discardLogger())
	require.NoError(t, err)

	require.ErrorIs(t, store.WriteManifest(ctx, nil), interfaces.ErrInvalidManifest)
	require.ErrorIs(t, store.WriteManifest(ctx, testManifest("")), interfaces.ErrInvalidManifest)
	require.ErrorIs(t, store.WriteManifest(ctx, testManifest("../etc")), interfaces.ErrInvalidManifest)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DeploymentFileName), []byte("{not json"), 0o644))
	_, err = store.FetchManifest(ctx, "develop")
	require.ErrorIs(t, err, interfaces.ErrInvalidManifest)
}

func TestStoreFactory(t *testing.T) {
	factory := NewStoreFactory(discardLogger())
	dir := t.TempDir()

	tests := []struct {
		name    string
		uri     string
		want    any
		wantErr bool
	}{
		{name: "file", uri: "file://" + dir, want: &FileStore{}},
		{name: "s3", uri: "s3://releases/dao/?region=eu-west-1", want: &S3Store{}},
		{name: "s3 with credentials", uri: "s3://AKIA:secret@releases/dao/", want: &S3Store{}},
		{name: "ipfs", uri: "ipfs://localhost:5001/releases?timeout=5s", want: &IPFSStore{}},
		{name: "vault", uri: "vault://vault.local:8200/secret/dao?tls=false", want: &VaultStore{}},
		{name: "github", uri: "github://GoodDollar/DAO/releases/deployment.json?ref=master", want: &GitHubStore{}},
		{name: "unsupported scheme", uri: "ftp://example.com/releases", wantErr: true},
		{name: "empty file path", uri: "file://", wantErr: true},
		{name: "s3 without bucket", uri: "s3:///prefix", wantErr: true},
		{name: "ipfs bad timeout", uri: "ipfs://localhost:5001/?timeout=soon", wantErr: true},
		{name: "vault without mount", uri: "vault://vault.local:8200", wantErr: true},
		{name: "github without repo", uri: "github://GoodDollar", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := factory.StoreFor(interfaces.StoreLocation(tt.uri))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestStoreFactoryURIs(t *testing.T) {
	factory := NewStoreFactory(discardLogger())

	s3Store, err := factory.StoreFor("s3://AKIA:secret@releases/dao/?region=eu-west-1")
	require.NoError(t, err)
	assert.NotContains(t, s3Store.LocationURI(), "secret")

	vault, err := factory.StoreFor("vault://vault.local:8200/secret/dao/releases")
	require.NoError(t, err)
	assert.Equal(t, "vault://vault.local:8200/secret/dao/releases", vault.LocationURI())

	gh, err := factory.StoreFor("github://GoodDollar/DAO")
	require.NoError(t, err)
	assert.Equal(t, "github://GoodDollar/DAO/releases/deployment.json", gh.LocationURI())
}

func TestCreateMultiStore(t *testing.T) {
	factory := NewStoreFactory(discardLogger())

	store, err := factory.CreateMultiStore([]interfaces.StoreLocation{
		"ftp://nowhere",
		interfaces.StoreLocation("file://" + t.TempDir()),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiStore{}, store)

	ctx := context.Background()
	require.NoError(t, store.WriteManifest(ctx, testManifest("develop")))
	got, err := store.FetchManifest(ctx, "develop")
	require.NoError(t, err)
	assert.Equal(t, "develop", got.Network)

	_, err = factory.CreateMultiStore([]interfaces.StoreLocation{"ftp://nowhere"})
	require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestGitHubStore(t *testing.T) {
	doc := map[string]*interfaces.Manifest{"develop": testManifest("develop")}
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/GoodDollar/DAO":
			w.WriteHeader(http.StatusOK)
		case "/repos/GoodDollar/DAO/contents/releases/deployment.json":
			assert.Equal(t, "master", r.URL.Query().Get("ref"))
			_ = json.NewEncoder(w).Encode(GitHubContent{
				Content:  base64.StdEncoding.EncodeToString(body),
				Encoding: "base64",
				SHA:      "abc",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	store := NewGitHubStore("GoodDollar", "DAO", "", "master", discardLogger()).WithAPIURL(server.URL)
	assert.True(t, store.Available(ctx))

	got, err := store.FetchManifest(ctx, "develop")
	require.NoError(t, err)
	assert.Equal(t, doc["develop"], got)

	_, err = store.FetchManifest(ctx, "production")
	require.ErrorIs(t, err, interfaces.ErrManifestNotFound)

	require.ErrorIs(t, store.WriteManifest(ctx, testManifest("develop")), interfaces.ErrReadOnlyStore)

	missing := NewGitHubStore("GoodDollar", "Other", "", "", discardLogger()).WithAPIURL(server.URL)
	assert.False(t, missing.Available(ctx))
	_, err = missing.FetchManifest(ctx, "develop")
	require.ErrorIs(t, err, interfaces.ErrManifestNotFound)
}
