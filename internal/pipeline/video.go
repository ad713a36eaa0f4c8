// Package pipeline orchestrates the per-video and per-collection
// download flow: enumerate parts, resolve qualities, fetch the two
// DASH tracks, mux them, and record success in the history ledger.
// Execution is strictly sequential; the remote API penalizes bursts,
// so throughput is capped by the configured inter-request delay.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kevinlinvk/bilifavdown/internal/biliapi"
	"github.com/kevinlinvk/bilifavdown/internal/filename"
	"github.com/kevinlinvk/bilifavdown/internal/history"
	"github.com/kevinlinvk/bilifavdown/internal/muxer"
	"github.com/kevinlinvk/bilifavdown/internal/quality"
	"github.com/kevinlinvk/bilifavdown/internal/retry"
	"github.com/kevinlinvk/bilifavdown/internal/types"
)

// API is the slice of the bilibili client the pipeline consumes.
// *biliapi.Session implements it.
type API interface {
	UserFolders(ctx context.Context, delay time.Duration) ([]biliapi.Folder, error)
	FolderMedias(ctx context.Context, folderID int64, delay time.Duration) []biliapi.Media
	GetVideoInfo(ctx context.Context, bvid string) (*biliapi.VideoInfo, error)
	GetQualities(ctx context.Context, bvid string, cid int64) (map[int]string, error)
	GetMediaURLs(ctx context.Context, bvid string, cid int64, qn int) (videoURL, audioURL string, err error)
}

// Fetcher downloads one direct resource URL to a local path.
// *downloader.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, destPath string) error
}

// Config carries the orchestration knobs.
type Config struct {
	SavePath     string
	TempDir      string
	RequestDelay time.Duration
	DownloadHDR  bool
	Limits       filename.Limits
}

// Pipeline runs the download-and-merge flow for videos and
// collections. It is single-threaded; nothing here is safe for
// concurrent use.
type Pipeline struct {
	api     API
	fetcher Fetcher
	mux     muxer.Muxer
	ledger  *history.Ledger
	cfg     Config
	log     types.Logger

	// infoCache holds video metadata for one collection pass, so the
	// per-part variant downloads do not re-fetch what the part
	// enumeration already loaded.
	infoCache map[string]*biliapi.VideoInfo
}

// New builds a Pipeline.
func New(api API, fetcher Fetcher, mux muxer.Muxer, ledger *history.Ledger, cfg Config, log types.Logger) *Pipeline {
	if log == nil {
		log = types.NopLogger()
	}
	return &Pipeline{
		api:       api,
		fetcher:   fetcher,
		mux:       mux,
		ledger:    ledger,
		cfg:       cfg,
		log:       log,
		infoCache: make(map[string]*biliapi.VideoInfo),
	}
}

// videoInfo returns cached metadata for bvid, fetching on first use.
func (p *Pipeline) videoInfo(ctx context.Context, bvid string) (*biliapi.VideoInfo, error) {
	if info, ok := p.infoCache[bvid]; ok {
		return info, nil
	}
	info, err := p.api.GetVideoInfo(ctx, bvid)
	if err != nil {
		return nil, err
	}
	p.infoCache[bvid] = info
	return info, nil
}

// resetInfoCache drops cached metadata; called per collection pass.
func (p *Pipeline) resetInfoCache() {
	p.infoCache = make(map[string]*biliapi.VideoInfo)
}

// ProcessVideo downloads every part of one video into destDir. For
// each part the standard-tier variant is attempted, and independently
// the HDR variant when the catalog has one and HDR downloads are
// enabled. A failed part or variant never aborts the remaining ones.
func (p *Pipeline) ProcessVideo(ctx context.Context, bvid, destDir, folderID string) {
	info, err := p.videoInfo(ctx, bvid)
	if err != nil {
		p.log.Errorf("video info for %s unavailable, skipping: %v", bvid, err)
		return
	}

	for _, page := range info.Pages {
		if ctx.Err() != nil {
			return
		}
		if page.CID == 0 {
			continue
		}

		qualities, err := p.api.GetQualities(ctx, bvid, page.CID)
		if err != nil || len(qualities) == 0 {
			p.log.Warnf("no qualities for %s cid=%d (restricted or login required), skipping part: %v", bvid, page.CID, err)
			continue
		}

		if qn, ok := quality.PickStandard(qualities); ok {
			if err := p.downloadVariant(ctx, info, page, qn, destDir, folderID, ""); err != nil {
				p.log.Errorf("download failed: %s - %s: %v", info.Title, page.Part, err)
			} else {
				p.log.Infof("downloaded: %s - %s (qn=%d)", info.Title, page.Part, qn)
			}
		}

		if p.cfg.DownloadHDR {
			if qn, ok := quality.PickHDR(qualities); ok {
				hdrDir := filepath.Join(destDir, "hdr")
				if err := p.downloadVariant(ctx, info, page, qn, hdrDir, folderID, "-hdr"); err != nil {
					p.log.Errorf("hdr download failed: %s - %s: %v", info.Title, page.Part, err)
				} else {
					p.log.Infof("downloaded hdr: %s - %s (qn=%d)", info.Title, page.Part, qn)
				}
			}
		}

		if err := retry.Sleep(ctx, p.cfg.RequestDelay); err != nil {
			return
		}
	}
}

// downloadVariant runs one (video, part, quality) attempt end to end:
// history check, filename composition, URL resolution, the two track
// downloads, the mux, and the ledger append. The temporary track files
// are owned here and removed on every path.
func (p *Pipeline) downloadVariant(ctx context.Context, info *biliapi.VideoInfo, page biliapi.Page, qn int, destDir, folderID, suffix string) error {
	key := history.Key{BVID: info.BVID, CID: page.CID, Quality: qn, FolderID: folderID}
	if p.ledger.Has(key) {
		p.log.Infof("skipping already downloaded: %s cid=%d qn=%d (folder %s)", info.BVID, page.CID, qn, folderID)
		return nil
	}

	uploader := info.Owner.Name
	if uploader == "" {
		uploader = filename.UnknownUploader
	}
	base := filename.Compose(info.Title, page.Part, page.Page, len(info.Pages), uploader, suffix, p.cfg.Limits)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}
	outputPath := resolveCollision(destDir, base, ".mp4")

	videoURL, audioURL, err := p.api.GetMediaURLs(ctx, info.BVID, page.CID, qn)
	if err != nil {
		return fmt.Errorf("resolve media urls: %w", err)
	}

	// Temp names are scoped to (bvid, cid) so parts cannot clobber
	// each other.
	tempVideo := filepath.Join(p.cfg.TempDir, fmt.Sprintf("%s_%d_video.m4s", info.BVID, page.CID))
	tempAudio := filepath.Join(p.cfg.TempDir, fmt.Sprintf("%s_%d_audio.m4s", info.BVID, page.CID))
	defer func() {
		_ = os.Remove(tempVideo)
		_ = os.Remove(tempAudio)
	}()

	if err := p.fetcher.Fetch(ctx, videoURL, tempVideo); err != nil {
		return fmt.Errorf("video track: %w", err)
	}
	if err := p.fetcher.Fetch(ctx, audioURL, tempAudio); err != nil {
		return fmt.Errorf("audio track: %w", err)
	}
	if err := p.mux.Merge(ctx, tempVideo, tempAudio, outputPath); err != nil {
		return err
	}

	return p.ledger.Record(history.Record{
		BVID:     info.BVID,
		CID:      page.CID,
		Quality:  qn,
		Title:    base,
		Uploader: uploader,
		FolderID: folderID,
	})
}

// resolveCollision appends _1, _2, ... until the composed name is free
// in dir.
func resolveCollision(dir, base, ext string) string {
	path := filepath.Join(dir, base+ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); err != nil {
			return path
		}
		path = filepath.Join(dir, base+"_"+strconv.Itoa(counter)+ext)
	}
}
