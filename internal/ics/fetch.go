package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "daycal/internal/log"
	"daycal/internal/source"
)

const defaultFetchTimeout = 15 * time.Second

// Feed is a single ICS subscription.
type Feed struct {
	// ID is a stable identifier, used as the calendar ID.
	ID string
	// Name is the display label, matched against the configured calendar names.
	Name string
	// URL is the ICS endpoint.
	URL string
	// Color overrides the palette color when the selector does not set one.
	Color string
}

// FetchResult contains the outcome of fetching a single feed.
type FetchResult struct {
	Feed      Feed
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if the cached body was reused
	// Err is the failure that made the cached body stand in for a live
	// one. It is nil for fresh bodies and for 304 Not Modified.
	Err error
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches ICS feeds with HTTP validators (ETag / Last-Modified)
// and a disk-backed copy of the last good body.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a new ICS Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata will be stored. Example: "/var/lib/daycal/ics-cache".
func NewFetcher(cacheDir string, timeout time.Duration) *Fetcher {
	if cacheDir == "" {
		// Relative so development runs without root permissions.
		cacheDir = "./var/ics-cache"
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		cacheDir: cacheDir,
	}
}

// FetchOne fetches a single feed, honoring ETag and Last-Modified.
// On a network error or non-2xx status the cached body is used when present.
// Errors are *source.FetchError.
func (f *Fetcher) FetchOne(ctx context.Context, feed Feed) (FetchResult, error) {
	if feed.URL == "" {
		return FetchResult{}, source.NewFetchError(source.ErrProtocol, feed.Name, errors.New("feed URL is empty"))
	}

	cachePath := f.cachePathForURL(feed.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		appLog.Warn("ics cache dir unavailable", "id", feed.ID, "err", err)
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return FetchResult{}, source.NewFetchError(source.ErrProtocol, feed.Name, err)
	}

	// Conditional headers from cache metadata, only when the body is still there.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", feed.ID, "url", source.RedactURL(feed.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		fetchErr := source.NewFetchError(source.Classify(0, err), feed.Name, err)
		if len(cachedBody) > 0 && ctx.Err() == nil {
			appLog.Error("ics fetch network error, using cached body", err, "id", feed.ID, "url", source.RedactURL(feed.URL))
			return FetchResult{Feed: feed, Body: cachedBody, FromCache: true, Err: fetchErr}, nil
		}
		return FetchResult{}, fetchErr
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, source.NewFetchError(source.ErrNetworkUnavailable, feed.Name, readErr)
		}

		newMeta := cacheEntry{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Still return the freshly fetched body.
			appLog.Error("ics cache save failed", err, "id", feed.ID, "url", source.RedactURL(feed.URL))
		}

		appLog.Info("ics fetch success", "id", feed.ID, "url", source.RedactURL(feed.URL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{Feed: feed, Body: body}, nil

	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, source.NewFetchError(source.ErrProtocol, feed.Name,
				errors.New("received 304 Not Modified but no cached body available"))
		}
		appLog.Debug("ics fetch not modified; using cache", "id", feed.ID, "url", source.RedactURL(feed.URL))
		return FetchResult{Feed: feed, Body: cachedBody, FromCache: true}, nil

	default:
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		// Credentials problems are not papered over with old data.
		kind := source.Classify(resp.StatusCode, statusErr)
		fetchErr := source.NewFetchError(kind, feed.Name, statusErr)
		if len(cachedBody) > 0 && kind != source.ErrAuthenticationFailed {
			appLog.Error("ics fetch non-OK, using cached body", statusErr, "id", feed.ID, "url", source.RedactURL(feed.URL), "status", resp.StatusCode)
			return FetchResult{Feed: feed, Body: cachedBody, FromCache: true, Err: fetchErr}, nil
		}
		return FetchResult{}, fetchErr
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	metaFile := filepath.Join(cachePath, "meta.json")
	bodyFile := filepath.Join(cachePath, "body.ics")

	// Body first so meta never points at a missing body.
	if err := os.WriteFile(bodyFile, body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metaFile, data, 0o600)
}
