package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// IsRemote reports whether the configured source location is an http(s) URL
// rather than a local path.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// FetchRemote downloads a remote export to a temporary file and returns its
// local path plus a cleanup func. The extension of the URL path is preserved
// so ReadSource picks the right parser.
func FetchRemote(ctx context.Context, rawURL string) (string, func(), error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, rawURL, err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, rawURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", nil, fmt.Errorf("%w: %s: status %d", ErrSourceUnavailable, rawURL, resp.StatusCode)
	}

	ext := path.Ext(u.Path)
	if ext == "" {
		ext = ".csv"
	}
	tmp, err := os.CreateTemp("", "scrapview-source-*"+ext)
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	name := tmp.Name()
	return name, func() { os.Remove(name) }, nil
}
