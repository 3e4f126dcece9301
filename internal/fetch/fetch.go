// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch obtains the source document, either by downloading it into
// a local cache or by reading a previously cached copy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/specgraph/internal/httputil"
	"github.com/pdiddy/specgraph/pkg/types"
)

// ErrNoCache reports that downloading is disabled and no cached copy exists.
var ErrNoCache = errors.New("no cached document")

const (
	DefaultURL       = "https://html.spec.whatwg.org/"
	DefaultCachePath = "spec.html"
	defaultUserAgent = "specgraph/0.1"
	defaultTimeout   = 2 * time.Minute
)

// WithDefaults fills the empty fields of cfg.
func WithDefaults(cfg types.FetchConfig) types.FetchConfig {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.CachePath == "" {
		cfg.CachePath = DefaultCachePath
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// Load returns the document bytes. With cfg.Download set the document is
// fetched and written to the cache path first; otherwise the cache is read
// and a missing file yields ErrNoCache.
func Load(ctx context.Context, client *http.Client, cfg types.FetchConfig, log *zap.Logger) ([]byte, error) {
	cfg = WithDefaults(cfg)
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.Download {
		log.Info("downloading document", zap.String("url", cfg.URL))
		if err := Download(ctx, client, cfg, log); err != nil {
			return nil, err
		}
	} else {
		log.Info("using cached document", zap.String("path", cfg.CachePath))
	}

	data, err := os.ReadFile(cfg.CachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s: run with --download first", ErrNoCache, cfg.CachePath)
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache %s: %w", cfg.CachePath, err)
	}
	return data, nil
}

// Download fetches cfg.URL and replaces the cache file atomically, so an
// interrupted transfer never leaves a truncated cache behind.
func Download(ctx context.Context, client *http.Client, cfg types.FetchConfig, log *zap.Logger) error {
	cfg = WithDefaults(cfg)
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := httputil.Do(ctx, client, req, httputil.Options{UserAgent: cfg.UserAgent, Log: log})
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, cfg.URL)
	}

	dir := filepath.Dir(cfg.CachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, cfg.CachePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	log.Info("document cached", zap.String("path", cfg.CachePath), zap.Int64("bytes", n))
	return nil
}
