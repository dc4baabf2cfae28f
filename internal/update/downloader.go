package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/InstaWP/iwp-mu/internal/backup"
)

// maxDownloadRetries bounds retries of transient download failures.
const maxDownloadRetries = 3

// HTTPDownloader downloads release archives over HTTP into a scratch directory
type HTTPDownloader struct {
	fs      afero.Fs
	client  *http.Client
	minSize int64
	backoff func(ctx context.Context) backoff.BackOff
}

// NewHTTPDownloader creates a new HTTP downloader. Archives smaller than
// minSize bytes are rejected.
func NewHTTPDownloader(fs afero.Fs, timeout time.Duration, minSize int64) *HTTPDownloader {
	return &HTTPDownloader{
		fs:      fs,
		client:  newHTTPClient(timeout),
		minSize: minSize,
		backoff: defaultBackoff,
	}
}

// WithClient replaces the HTTP client
func (d *HTTPDownloader) WithClient(client *http.Client) *HTTPDownloader {
	d.client = client
	return d
}

// WithBackoff replaces the retry policy
func (d *HTTPDownloader) WithBackoff(policy func(ctx context.Context) backoff.BackOff) *HTTPDownloader {
	d.backoff = policy
	return d
}

func defaultBackoff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     800 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, maxDownloadRetries), ctx)
}

// Fetch downloads url into a new file under scratchDir and returns its
// path. Every error wraps ErrDownload and leaves no file behind.
func (d *HTTPDownloader) Fetch(ctx context.Context, url, scratchDir string) (string, error) {
	if err := d.fs.MkdirAll(scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create scratch directory: %w", ErrDownload, err)
	}

	var path string
	operation := func() error {
		p, err := d.download(ctx, url, scratchDir)
		if err != nil {
			return err
		}
		path = p
		return nil
	}

	notify := func(err error, next time.Duration) {
		log.WithFields(log.Fields{
			"url":   url,
			"retry": next.String(),
		}).Warnf("download attempt failed: %v", err)
	}

	if err := backoff.RetryNotify(operation, d.backoff(ctx), notify); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}

	return path, nil
}

// download performs one attempt. Client errors and undersized archives
// are permanent; network errors and server errors are retried.
func (d *HTTPDownloader) download(ctx context.Context, url, scratchDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	file, err := afero.TempFile(d.fs, scratchDir, backup.DownloadPrefix+"*.zip")
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create download file: %w", err))
	}
	path := file.Name()

	size, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = d.fs.Remove(path)
		return "", fmt.Errorf("failed to write download: %w", err)
	}

	if size < d.minSize {
		_ = d.fs.Remove(path)
		return "", backoff.Permanent(fmt.Errorf("downloaded archive is too small (%d bytes, want at least %d)", size, d.minSize))
	}

	return path, nil
}
