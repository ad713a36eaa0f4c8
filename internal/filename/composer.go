// Package filename composes sanitized, length-bounded output file
// names from video metadata. Collision handling against the
// destination directory lives in the pipeline, not here; composition
// itself is deterministic and pure.
package filename

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// hardTitleCap bounds the title portion regardless of config, to
	// leave room for suffixes and path overhead.
	hardTitleCap = 150
	// hardFilenameCap bounds the whole name regardless of config.
	hardFilenameCap = 240
	// partPrefixLen is how much of a part title survives as a suffix.
	partPrefixLen = 20
	// UnknownUploader is the sentinel for a missing uploader name; it
	// suppresses the uploader suffix.
	UnknownUploader = "unknown"
)

var (
	// titleStrip removes path-illegal characters, bracket runs, and
	// everything outside the basic multilingual plane (emoji).
	titleStrip = regexp.MustCompile(`[\\/:*?"<>|【】()\[\]《》\s\x{10000}-\x{10FFFF}]+`)
	// pathIllegal removes only the characters a filesystem rejects.
	pathIllegal = regexp.MustCompile(`[\\/:*?"<>|]`)
	// uploaderKeep keeps ASCII alphanumerics and CJK ideographs.
	uploaderKeep = regexp.MustCompile(`[^a-zA-Z0-9\x{4e00}-\x{9fa5}]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	underscores  = regexp.MustCompile(`_{2,}`)
)

// Limits bounds the composed name. Zero fields fall back to defaults.
type Limits struct {
	MaxTitle    int // title portion, default 80
	MaxFilename int // whole name, default 240
	MaxUploader int // uploader suffix, default 10
}

func (l Limits) normalized() Limits {
	if l.MaxTitle <= 0 {
		l.MaxTitle = 80
	}
	if l.MaxTitle > hardTitleCap {
		l.MaxTitle = hardTitleCap
	}
	if l.MaxFilename <= 0 || l.MaxFilename > hardFilenameCap {
		l.MaxFilename = hardFilenameCap
	}
	if l.MaxUploader <= 0 {
		l.MaxUploader = 10
	}
	return l
}

// Compose builds a file name (without extension) from the raw title,
// the part metadata, the uploader, and a variant suffix such as
// "-hdr". Multi-part videos get a disambiguating suffix: the page
// number when the part title already appears in the title, else a
// prefix of the part title itself.
func Compose(rawTitle, partTitle string, pageNum, totalParts int, uploader, suffix string, lim Limits) string {
	lim = lim.normalized()

	title := strings.TrimSpace(titleStrip.ReplaceAllString(rawTitle, " "))
	title = truncateRunes(spaceRuns.ReplaceAllString(title, " "), lim.MaxTitle)

	var pagePart string
	if totalParts > 1 {
		part := strings.TrimSpace(pathIllegal.ReplaceAllString(partTitle, ""))
		if part != "" && strings.Contains(strings.ToLower(rawTitle), strings.ToLower(part)) {
			pagePart = "_P" + strconv.Itoa(pageNum)
		} else {
			pagePart = "_" + truncateRunes(part, partPrefixLen)
		}
	}

	var upPart string
	if uploader != "" && uploader != UnknownUploader {
		cleaned := uploaderKeep.ReplaceAllString(uploader, "")
		if cleaned != "" {
			upPart = "-" + truncateRunes(cleaned, lim.MaxUploader)
		}
	}

	name := underscores.ReplaceAllString(title+pagePart+upPart+suffix, "_")
	return truncateRunes(name, lim.MaxFilename)
}

// SanitizeDir strips path-illegal characters from a collection title
// for use as a directory name, falling back when nothing survives.
func SanitizeDir(name, fallback string) string {
	cleaned := strings.TrimSpace(pathIllegal.ReplaceAllString(name, ""))
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
