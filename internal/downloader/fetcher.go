// Package downloader streams single binary resources to disk with
// bounded retry and size validation.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kevinlinvk/bilifavdown/internal/retry"
	"github.com/kevinlinvk/bilifavdown/internal/types"
)

// copyBufferSize keeps per-download memory bounded regardless of media
// size.
const copyBufferSize = 64 * 1024

// defaultAttemptPause is the fixed pause between download attempts.
const defaultAttemptPause = 2 * time.Second

// errZeroLength marks a response or output that carried no bytes; it
// is a transient condition worth another attempt, not a success.
var errZeroLength = errors.New("zero-length download")

// Fetcher downloads direct media URLs to local files using the
// session's HTTP client and headers (the CDN checks the Referer).
type Fetcher struct {
	Client  *http.Client
	Headers http.Header
	// Retry bounds attempts per resource. Zero values mean a single
	// attempt with the default pause.
	Retry  retry.Policy
	Logger types.Logger
}

// Fetch streams the resource at rawURL to destPath. Failed attempts
// delete the partial file before the next try; on exhaustion no file
// is left behind. A declared or written length of zero is retried.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string) error {
	log := f.Logger
	if log == nil {
		log = types.NopLogger()
	}
	policy := f.Retry
	if policy.Delay <= 0 {
		policy.Delay = defaultAttemptPause
	}

	attempt := 0
	err := policy.Do(ctx, notCanceled, func() error {
		attempt++
		if err := f.fetchOnce(ctx, rawURL, destPath); err != nil {
			_ = os.Remove(destPath)
			log.Warnf("download attempt %d/%d for %s failed: %v", attempt, max(policy.MaxAttempts, 1), destPath, err)
			return err
		}
		return nil
	})
	if err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("download %s: %w", destPath, err)
	}
	return nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, v := range f.Headers {
		req.Header[k] = v
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media fetch status=%d", resp.StatusCode)
	}
	if resp.ContentLength == 0 {
		return errZeroLength
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	written, copyErr := io.CopyBuffer(out, resp.Body, make([]byte, copyBufferSize))
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		return copyErr
	case closeErr != nil:
		return closeErr
	case written == 0:
		return errZeroLength
	case resp.ContentLength > 0 && written != resp.ContentLength:
		return fmt.Errorf("short body: wrote %d of %d bytes", written, resp.ContentLength)
	}
	return nil
}

func notCanceled(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
