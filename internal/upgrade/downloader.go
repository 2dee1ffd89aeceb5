package upgrade

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

const chunkSize = 32 * 1024

// ProgressHook is called during download with bytes downloaded and total bytes.
// total is -1 when the server did not send a Content-Length.
type ProgressHook func(downloaded, total int64)

// Downloader downloads release archives and installs them.
type Downloader struct {
	httpClient    *http.Client
	maxRetries    int
	retryInterval time.Duration
	userAgent     string
}

// NewDownloader creates a new Downloader that retries transient failures twice.
func NewDownloader() *Downloader {
	return &Downloader{
		httpClient:    http.DefaultClient,
		maxRetries:    2,
		retryInterval: time.Second,
		userAgent:     "simtray",
	}
}

// SetHTTPClient sets the HTTP client (useful for testing).
func (d *Downloader) SetHTTPClient(client *http.Client) {
	d.httpClient = client
}

// SetMaxRetries sets how many times a failed download is retried.
func (d *Downloader) SetMaxRetries(n int) {
	if n < 0 {
		n = 0
	}
	d.maxRetries = n
}

// SetRetryInterval sets the initial delay between attempts.
func (d *Downloader) SetRetryInterval(interval time.Duration) {
	d.retryInterval = interval
}

// SetUserAgent sets the User-Agent header sent with downloads.
func (d *Downloader) SetUserAgent(ua string) {
	d.userAgent = ua
}

// FetchAndExtract downloads the asset of release accepted by match and
// replaces the contents of destDir with the extracted archive. onProgress,
// when non-nil, receives 0..100 and is only called when the response has a
// known length. The archive is verified before destDir is touched.
func (d *Downloader) FetchAndExtract(ctx context.Context, release *Release, match AssetMatcher, destDir string, onProgress func(percent int)) (err error) {
	asset, err := release.FindAsset(match)
	if err != nil {
		return err
	}

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"release_id": release.ID,
		"tag":        release.TagName,
		"asset":      asset.Name,
	})

	tmp, err := os.CreateTemp("", "simtray-download-*")
	if err != nil {
		return NewError(ExitDownloadError, "Failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			if err != nil {
				err = multierror.Append(err, fmt.Errorf("removing temp file: %w", rmErr))
			} else {
				logger.Warnf("failed to remove temp file %s: %v", tmpPath, rmErr)
			}
		}
	}()

	var hook ProgressHook
	if onProgress != nil {
		last := -1
		hook = func(downloaded, total int64) {
			if total <= 0 {
				return
			}
			pct := int(downloaded * 100 / total)
			if pct > 100 {
				pct = 100
			}
			if pct != last {
				last = pct
				onProgress(pct)
			}
		}
	}

	logger.Infof("downloading %s", asset.BrowserDownloadURL)
	dlErr := d.Download(ctx, asset.BrowserDownloadURL, tmp, hook)
	if closeErr := tmp.Close(); closeErr != nil && dlErr == nil {
		dlErr = NewError(ExitDownloadError, "Failed to close temp file", closeErr)
	}
	if dlErr != nil {
		return dlErr
	}

	if err := NewInstaller(destDir).Install(tmpPath); err != nil {
		return err
	}

	logger.Infof("installed into %s", destDir)
	return nil
}

// Download writes url into out, retrying transient failures with
// exponential backoff. out is truncated before every retry.
func (d *Downloader) Download(ctx context.Context, url string, out *os.File, hook ProgressHook) error {
	attempt := 0
	operation := func() error {
		if attempt > 0 {
			if err := out.Truncate(0); err != nil {
				return backoff.Permanent(NewError(ExitDownloadError, "Failed to truncate file on retry", err))
			}
			if _, err := out.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(NewError(ExitDownloadError, "Failed to seek to beginning of file", err))
			}
		}
		attempt++
		return d.downloadAttempt(ctx, url, out, hook)
	}

	notify := func(err error, next time.Duration) {
		log.WithContext(ctx).Warnf("download failed, retrying after %v: %v", next, err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), uint64(d.maxRetries)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctx.Err() != nil {
			return NewError(ExitDownloadError, "Download canceled", ctx.Err())
		}
		return err
	}
	return nil
}

func (d *Downloader) newBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     d.retryInterval,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         30 * time.Second,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
}

func (d *Downloader) downloadAttempt(ctx context.Context, url string, out io.Writer, hook ProgressHook) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(NewError(ExitDownloadError, "Failed to create request", err))
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return NewError(ExitDownloadError, "Failed to download", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		dlErr := NewError(ExitDownloadError, fmt.Sprintf("Download failed with status %d", resp.StatusCode), nil)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(dlErr)
		}
		return dlErr
	}

	total := resp.ContentLength
	var downloaded int64

	if hook != nil {
		hook(0, total)
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return backoff.Permanent(NewError(ExitDownloadError, "Failed to write file", writeErr))
			}
			downloaded += int64(n)
			if hook != nil {
				hook(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return NewError(ExitDownloadError, "Download interrupted", readErr)
		}
	}

	if total > 0 && downloaded != total {
		return NewError(ExitVerificationError, fmt.Sprintf("Downloaded %d of %d bytes", downloaded, total), nil)
	}

	return nil
}
