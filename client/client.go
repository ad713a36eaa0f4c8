// Package client is the high-level entry point: it wires the API
// session, history ledger, media fetcher, muxer, and pipeline from one
// Config and runs the collection download flow.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/kevinlinvk/bilifavdown/internal/biliapi"
	"github.com/kevinlinvk/bilifavdown/internal/downloader"
	"github.com/kevinlinvk/bilifavdown/internal/filename"
	"github.com/kevinlinvk/bilifavdown/internal/history"
	"github.com/kevinlinvk/bilifavdown/internal/muxer"
	"github.com/kevinlinvk/bilifavdown/internal/pipeline"
	"github.com/kevinlinvk/bilifavdown/internal/retry"
)

// Client drives the favorites download pipeline for one configured
// account. Construct it once per run; it holds the authenticated
// session and the loaded history ledger.
type Client struct {
	cfg    *Config
	log    Logger
	ledger *history.Ledger
	api    *biliapi.Session
	pipe   *pipeline.Pipeline
}

// Options tweak construction. The zero value is fine.
type Options struct {
	// HTTPClient overrides the session's HTTP client, for tests.
	HTTPClient *http.Client
	// APIBase overrides the API host, for tests.
	APIBase string
	// Muxer overrides the ffmpeg muxer, for tests.
	Muxer muxer.Muxer
	Logger Logger
}

// New builds a Client: ensures the working directories exist, loads
// the history ledger, and wires the pipeline.
func New(cfg *Config, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = NopLogger()
	}

	for _, dir := range []string{cfg.SavePath, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	ledger, err := history.Load(cfg.HistoryFile)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded history: %d records", ledger.Len())

	session := biliapi.NewSession(biliapi.SessionConfig{
		HTTPClient: opts.HTTPClient,
		Cookies:    cfg.Cookies,
		APIBase:    opts.APIBase,
		Retry412: retry.Policy{
			MaxAttempts: cfg.Retry412Max + 1,
			Delay:       cfg.CooldownDelay(),
		},
		Logger: log,
	})

	fetcher := &downloader.Fetcher{
		Client:  session.HTTPClient(),
		Headers: session.Headers(),
		Retry:   retry.Policy{MaxAttempts: cfg.MaxRetries, Delay: 2 * time.Second},
		Logger:  log,
	}

	mux := opts.Muxer
	if mux == nil {
		mux = muxer.NewFFmpegMuxer(cfg.FFmpegPath)
	}

	pipe := pipeline.New(session, fetcher, mux, ledger, pipeline.Config{
		SavePath:     cfg.SavePath,
		TempDir:      cfg.TempDir,
		RequestDelay: cfg.RequestDelay(),
		DownloadHDR:  cfg.HDREnabled(),
		Limits: filename.Limits{
			MaxTitle:    cfg.MaxTitleLength,
			MaxFilename: cfg.MaxFilenameLength,
			MaxUploader: cfg.UpnameMaxLength,
		},
	}, log)

	return &Client{cfg: cfg, log: log, ledger: ledger, api: session, pipe: pipe}, nil
}

// Ledger exposes the loaded history, mainly for status reporting.
func (c *Client) Ledger() *history.Ledger { return c.ledger }

// Run processes every favorites folder of the configured account,
// restricted to target_folders when set. Per-folder and per-video
// failures are logged and skipped; Run fails only when no collection
// list could be fetched at all.
func (c *Client) Run(ctx context.Context) error {
	folders, err := c.api.UserFolders(ctx, c.cfg.RequestDelay())
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if len(folders) == 0 {
		return errors.New("no collections found; check cookies and network")
	}

	targets := make(map[string]struct{}, len(c.cfg.TargetFolders))
	for _, id := range c.cfg.TargetFolders {
		targets[id] = struct{}{}
	}

	for _, folder := range folders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(targets) > 0 {
			if _, ok := targets[strconv.FormatInt(folder.ID, 10)]; !ok {
				c.log.Debugf("skipping collection %d: not in target_folders", folder.ID)
				continue
			}
		}
		c.pipe.ProcessFolder(ctx, folder)
	}
	return nil
}
