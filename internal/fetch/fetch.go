// Package fetch downloads release artifacts over HTTP with retries.
// It does not cache or mirror; every call hits the network.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"
)

// ErrNotFound is returned when the server responds with 404.
var ErrNotFound = errors.New("artifact not found")

// StatusError reports a non-200 response other than 404.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to download artifact from %s, status: %s", e.URL, e.Status)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRetries sets how many times 5xx and connection errors are retried.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		f.client.RetryMax = n
	}
}

// WithRetryWait sets the back off bounds between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(f *Fetcher) {
		f.client.RetryWaitMin = minWait
		f.client.RetryWaitMax = maxWait
	}
}

// WithMaxDownloadSize limits the accepted body size in bytes. Zero or less disables the limit.
func WithMaxDownloadSize(n int64) Option {
	return func(f *Fetcher) {
		f.maxDownloadSize = n
	}
}

// WithLogger reports retries and give-ups to log.
func WithLogger(log logr.Logger) Option {
	return func(f *Fetcher) {
		f.client.Logger = retryLogger{log: log}
	}
}

// WithGitHubToken authenticates requests to GitHub hosts to avoid rate limiting.
func WithGitHubToken(token string) Option {
	return func(f *Fetcher) {
		f.githubToken = token
	}
}

// Fetcher downloads artifacts, retrying with back off while the server is unavailable.
type Fetcher struct {
	client          *retryablehttp.Client
	maxDownloadSize int64
	githubToken     string
}

// New returns a Fetcher. By default it retries 3 times and logs nothing.
func New(opts ...Option) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 30 * time.Second
	client.RetryMax = 3
	client.Logger = nil

	f := &Fetcher{client: client}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL into a new file inside dir and returns its path.
// The caller owns the file. Nothing is left in dir on error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, assetName(rawURL)+".*.download")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := f.copyBody(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmpPath, nil
}

// Checksum downloads rawURL and returns its sha256 digest without keeping the content.
func (f *Fetcher) Checksum(ctx context.Context, rawURL string) (digest.Digest, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	digester := digest.Canonical.Digester()
	if err := f.copyBody(digester.Hash(), resp.Body); err != nil {
		return "", err
	}
	return digester.Digest(), nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new request: %w", err)
	}
	if f.githubToken != "" && isGitHubURL(rawURL) {
		req.Header.Set("Authorization", "Bearer "+f.githubToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact, error: %w", err)
	}
	if code := resp.StatusCode; code != http.StatusOK {
		resp.Body.Close()
		if code == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrNotFound)
		}
		return nil, &StatusError{URL: rawURL, Status: resp.Status, Code: code}
	}
	return resp, nil
}

func (f *Fetcher) copyBody(dst io.Writer, body io.Reader) error {
	if f.maxDownloadSize <= 0 {
		if _, err := io.Copy(dst, body); err != nil {
			return fmt.Errorf("failed to copy artifact contents: %w", err)
		}
		return nil
	}

	// Headers can lie, so read up to the limit and fail if anything remains.
	if _, err := io.Copy(dst, io.LimitReader(body, f.maxDownloadSize)); err != nil {
		return fmt.Errorf("failed to copy artifact contents: %w", err)
	}
	if n, _ := io.Copy(io.Discard, body); n > 0 {
		return fmt.Errorf("artifact is %d bytes greater than the max download size of %d bytes", n, f.maxDownloadSize)
	}
	return nil
}

// isGitHubURL reports whether the URL points to a GitHub host.
func isGitHubURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "github.com" || host == "api.github.com" || strings.HasSuffix(host, ".githubusercontent.com")
}

func assetName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "artifact"
	}
	return path.Base(u.Path)
}
