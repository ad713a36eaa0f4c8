package biliapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kevinlinvk/bilifavdown/internal/cookies"
	"github.com/kevinlinvk/bilifavdown/internal/types"
)

const (
	createdFoldersPath   = "/x/v3/fav/folder/created/list"
	collectedFoldersPath = "/x/v3/fav/folder/collected/list"
	folderMediasPath     = "/medialist/gateway/base/spaceDetail"
	videoInfoPath        = "/x/web-interface/view"
	playURLPath          = "/x/player/playurl"
)

// hiResAudioID is the DASH track id of the Hi-Res audio stream,
// preferred over plain highest-bandwidth audio when present.
const hiResAudioID = 30251

// UserFolders lists the account's favorites folders, created first,
// then collected. The account id comes from the session cookie.
func (s *Session) UserFolders(ctx context.Context, delay time.Duration) ([]Folder, error) {
	mid, err := cookies.UserID(s.rawCookies)
	if err != nil {
		return nil, err
	}

	base := url.Values{
		"up_mid":   {mid},
		"platform": {"web"},
		"ts":       {nowMillis()},
	}

	createdParams := url.Values{}
	for k, v := range base {
		createdParams[k] = v
	}
	createdParams.Set("type", "1")

	created := s.Paginate(ctx, createdFoldersPath, createdParams, "list", delay)
	collected := s.Paginate(ctx, collectedFoldersPath, base, "list", delay)

	folders := make([]Folder, 0, len(created)+len(collected))
	for _, raw := range append(created, collected...) {
		var f Folder
		if err := json.Unmarshal(raw, &f); err != nil {
			s.log.Warnf("skipping malformed folder entry: %v", err)
			continue
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// FolderMedias lists the members of one favorites folder, most
// recently favorited first.
func (s *Session) FolderMedias(ctx context.Context, folderID int64, delay time.Duration) []Media {
	params := url.Values{
		"media_id": {strconv.FormatInt(folderID, 10)},
		"platform": {"web"},
		"ts":       {nowMillis()},
		"keyword":  {""},
		"order":    {"mtime"},
		"type":     {"0"},
		"tid":      {"0"},
		"jsonp":    {"jsonp"},
	}

	raws := s.Paginate(ctx, folderMediasPath, params, "medias", delay)
	medias := make([]Media, 0, len(raws))
	for _, raw := range raws {
		var m Media
		if err := json.Unmarshal(raw, &m); err != nil {
			s.log.Warnf("skipping malformed media entry in folder %d: %v", folderID, err)
			continue
		}
		medias = append(medias, m)
	}
	return medias
}

// GetVideoInfo fetches full metadata for one video, including its part
// list and uploader.
func (s *Session) GetVideoInfo(ctx context.Context, bvid string) (*VideoInfo, error) {
	var info VideoInfo
	if err := s.GetJSON(ctx, videoInfoPath, url.Values{"bvid": {bvid}}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// playURLParams are the fixed play-url parameters requesting the full
// DASH manifest with 4K/HDR/8K variants enabled.
func playURLParams(bvid string, cid int64, quality int) url.Values {
	return url.Values{
		"bvid":  {bvid},
		"cid":   {strconv.FormatInt(cid, 10)},
		"qn":    {strconv.Itoa(quality)},
		"fnval": {"4048"},
		"fourk": {"1"},
		"fnver": {"0"},
	}
}

// GetQualities fetches the quality catalog for one part: quality code
// to human-readable label. Labels of the form "group:detail" keep only
// the detail half.
func (s *Session) GetQualities(ctx context.Context, bvid string, cid int64) (map[int]string, error) {
	var data playURLData
	if err := s.GetJSON(ctx, playURLPath, playURLParams(bvid, cid, 0), &data); err != nil {
		return nil, err
	}

	qualities := make(map[int]string, len(data.AcceptQuality))
	for i, qn := range data.AcceptQuality {
		if i >= len(data.AcceptDescription) {
			break
		}
		desc := data.AcceptDescription[i]
		if _, detail, found := strings.Cut(desc, ":"); found {
			desc = detail
		}
		qualities[qn] = strings.TrimSpace(desc)
	}
	return qualities, nil
}

// GetMediaURLs resolves the direct download URL pair for one part at
// the requested quality: the highest-bandwidth video track matching the
// quality code exactly, and the Hi-Res audio track when present, else
// the highest-bandwidth audio track.
func (s *Session) GetMediaURLs(ctx context.Context, bvid string, cid int64, quality int) (videoURL, audioURL string, err error) {
	var data playURLData
	if err := s.GetJSON(ctx, playURLPath, playURLParams(bvid, cid, quality), &data); err != nil {
		return "", "", err
	}
	if data.Dash == nil {
		return "", "", fmt.Errorf("%w: no dash manifest for %s cid=%d", types.ErrUnavailable, bvid, cid)
	}

	var video *DashStream
	for i := range data.Dash.Video {
		v := &data.Dash.Video[i]
		if v.ID != quality {
			continue
		}
		if video == nil || v.Bandwidth > video.Bandwidth {
			video = v
		}
	}

	var audio *DashStream
	for i := range data.Dash.Audio {
		a := &data.Dash.Audio[i]
		if a.ID == hiResAudioID {
			audio = a
			break
		}
		if audio == nil || a.Bandwidth > audio.Bandwidth {
			audio = a
		}
	}

	if video == nil || audio == nil {
		return "", "", fmt.Errorf("%w: stream missing for %s cid=%d qn=%d", types.ErrUnavailable, bvid, cid, quality)
	}
	return video.URL(), audio.URL(), nil
}
