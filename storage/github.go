package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// DefaultGitHubAPI is the GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHubStore is a read-only store reading a released deployment document
// (network → manifest, the file store's format) from a repository.
type GitHubStore struct {
	owner       string
	repo        string
	filePath    string
	ref         string
	apiURL      string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// GitHubContent is the subset of the contents API response used here.
type GitHubContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
}

// NewGitHubStore creates a store reading filePath at ref (the default branch when empty).
func NewGitHubStore(owner, repo, filePath, ref string, log *slog.Logger) *GitHubStore {
	if filePath == "" {
		filePath = "releases/" + DeploymentFileName
	}
	filePath = strings.TrimPrefix(filePath, "/")
	uri := fmt.Sprintf("github://%s/%s/%s", owner, repo, filePath)
	if ref != "" {
		uri += "?ref=" + ref
	}
	return &GitHubStore{
		owner:       owner,
		repo:        repo,
		filePath:    filePath,
		ref:         ref,
		apiURL:      DefaultGitHubAPI,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
		locationURI: uri,
	}
}

// WithAPIURL points the store at another GitHub API endpoint.
func (s *GitHubStore) WithAPIURL(apiURL string) *GitHubStore {
	s.apiURL = strings.TrimSuffix(apiURL, "/")
	return s
}

// FetchManifest reads the deployment document and returns the network's entry.
func (s *GitHubStore) FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error) {
	content, err := s.fetchContent(ctx)
	if err != nil {
		return nil, err
	}

	if content.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding: %s", content.Encoding)
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrInvalidManifest, s.filePath, err)
	}
	raw, ok := doc[network]
	if !ok {
		return nil, interfaces.ErrManifestNotFound
	}

	s.log.Debug("Fetched manifest from GitHub",
		slog.String("path", s.filePath),
		slog.String("sha", content.SHA),
		slog.String("network", network))

	return decodeManifest(network, raw)
}

// WriteManifest always fails; releases are published by committing the file.
func (s *GitHubStore) WriteManifest(ctx context.Context, manifest *interfaces.Manifest) error {
	return interfaces.ErrReadOnlyStore
}

// Available checks if the repository is accessible.
func (s *GitHubStore) Available(ctx context.Context) bool {
	req, err := s.newRequest(ctx, fmt.Sprintf("%s/repos/%s/%s", s.apiURL, s.owner, s.repo))
	if err != nil {
		s.log.Debug("Failed to create request", "err", err)
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debug("GitHub store unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Debug("GitHub store unavailable", slog.String("status", resp.Status))
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (s *GitHubStore) Name() string {
	return fmt.Sprintf("github-%s-%s", s.owner, s.repo)
}

// LocationURI returns the URI that identifies this store.
func (s *GitHubStore) LocationURI() string {
	return s.locationURI
}

func (s *GitHubStore) newRequest(ctx context.Context, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	return req, nil
}

func (s *GitHubStore) fetchContent(ctx context.Context) (*GitHubContent, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.apiURL, s.owner, s.repo, s.filePath)
	if s.ref != "" {
		u += "?ref=" + url.QueryEscape(s.ref)
	}

	req, err := s.newRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.ErrManifestNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub API error: %s, %s", resp.Status, string(body))
	}

	var content GitHubContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	return &content, nil
}
