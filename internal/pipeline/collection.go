package pipeline

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/kevinlinvk/bilifavdown/internal/biliapi"
	"github.com/kevinlinvk/bilifavdown/internal/filename"
	"github.com/kevinlinvk/bilifavdown/internal/retry"
)

// ProcessFolder downloads every member of one favorites folder into a
// directory named after the folder (its id when the sanitized title is
// empty). Members without a resolvable video id are skipped; a failing
// member never aborts the rest.
func (p *Pipeline) ProcessFolder(ctx context.Context, folder biliapi.Folder) {
	folderID := strconv.FormatInt(folder.ID, 10)
	dirName := filename.SanitizeDir(folder.Title, folderID)
	destDir := filepath.Join(p.cfg.SavePath, dirName)

	p.log.Infof("processing collection: %s (id %s, %d entries)", dirName, folderID, folder.MediaCount)
	p.resetInfoCache()

	medias := p.api.FolderMedias(ctx, folder.ID, p.cfg.RequestDelay)
	for _, media := range medias {
		if ctx.Err() != nil {
			return
		}
		if media.BVID == "" {
			p.log.Warnf("skipping entry without video id in collection %s", folderID)
			continue
		}
		p.ProcessVideo(ctx, media.BVID, destDir, folderID)
		if err := retry.Sleep(ctx, p.cfg.RequestDelay); err != nil {
			return
		}
	}
}
