// Package upgrade queries GitHub for the latest release of the simulation
// engine and installs its archive into the local install directory.
package upgrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ReleaseID is the opaque GitHub release id. The API sends it as a number;
// a string is accepted as well.
type ReleaseID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ReleaseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ReleaseID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("release id must be a number or string: %w", err)
	}
	*id = ReleaseID(n.String())
	return nil
}

func (id ReleaseID) String() string { return string(id) }

// Release represents a GitHub release.
type Release struct {
	ID          ReleaseID `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt string    `json:"published_at"`
	Assets      []Asset   `json:"assets"`
}

// Asset represents a release asset.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// AssetMatcher selects the installable asset by name.
type AssetMatcher func(name string) bool

// NameContains matches asset names containing substr (case-sensitive).
func NameContains(substr string) AssetMatcher {
	return func(name string) bool {
		return strings.Contains(name, substr)
	}
}

// FindAsset returns the first asset accepted by match.
func (r *Release) FindAsset(match AssetMatcher) (*Asset, error) {
	for i := range r.Assets {
		if match(r.Assets[i].Name) && r.Assets[i].BrowserDownloadURL != "" {
			return &r.Assets[i], nil
		}
	}
	return nil, NewError(ExitAssetNotFound, fmt.Sprintf("No matching asset in release %s", r.TagName), nil)
}

func (r *Release) validate() error {
	if r.ID == "" {
		return NewError(ExitMalformedRelease, "Release has no id", nil)
	}
	if r.TagName == "" {
		return NewError(ExitMalformedRelease, "Release has no tag_name", nil)
	}
	return nil
}

// ReleaseClient fetches release information from GitHub.
type ReleaseClient struct {
	BaseURL   string
	Owner     string
	Repo      string
	UserAgent string

	httpClient *http.Client
}

// NewReleaseClient creates a new GitHub release client.
func NewReleaseClient(baseURL, owner, repo, userAgent string) *ReleaseClient {
	return &ReleaseClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Owner:      owner,
		Repo:       repo,
		UserAgent:  userAgent,
		httpClient: http.DefaultClient,
	}
}

// SetHTTPClient sets the HTTP client (useful for testing).
func (c *ReleaseClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// FetchLatestRelease fetches the latest published release.
func (c *ReleaseClient) FetchLatestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.BaseURL, c.Owner, c.Repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewError(ExitGenericError, "Failed to create request", err)
	}

	// GitHub API requires a user agent
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(ExitNetworkError, "Failed to fetch release", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewError(ExitNetworkError, fmt.Sprintf("GitHub API returned status %d", resp.StatusCode), ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewError(ExitNetworkError, fmt.Sprintf("GitHub API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, NewError(ExitMalformedRelease, "Failed to decode release", err)
	}
	if err := release.validate(); err != nil {
		return nil, err
	}

	return &release, nil
}

// Probe reports whether url (the API base URL when empty) answers a HEAD
// request. Any HTTP response below 500 counts as reachable.
func (c *ReleaseClient) Probe(ctx context.Context, url string) error {
	if url == "" {
		url = c.BaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return NewError(ExitGenericError, "Failed to create request", err)
	}
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(ExitNetworkError, "Connectivity probe failed", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return NewError(ExitNetworkError, fmt.Sprintf("Connectivity probe returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *ReleaseClient) userAgent() string {
	if c.UserAgent == "" {
		return "simtray"
	}
	return c.UserAgent
}
