// Package history tracks completed downloads in a flat JSON record
// store plus a derived in-memory key set for O(1) dedup checks.
//
// The key keeps the quality code: re-running with a different target
// quality must not be silently skipped as already downloaded. Records
// are never mutated or deleted; each new success rewrites the whole
// file atomically.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Record is one persisted download. Field names match the on-disk
// contract and must stay stable across releases.
type Record struct {
	BVID      string `json:"bvid"`
	CID       int64  `json:"cid"`
	Quality   int    `json:"quality"`
	Title     string `json:"title"`
	Uploader  string `json:"up"`
	FolderID  string `json:"folder_id"`
	Timestamp int64  `json:"timestamp"`
}

// Key is the composite dedup identity of one download.
type Key struct {
	BVID     string
	CID      int64
	Quality  int
	FolderID string
}

// Key projects the record onto its dedup identity.
func (r Record) Key() Key {
	return Key{BVID: r.BVID, CID: r.CID, Quality: r.Quality, FolderID: r.FolderID}
}

// Ledger owns the record store and its derived key set. It is not safe
// for concurrent use; a parallel caller must serialize appends because
// persistence is a whole-file rewrite.
type Ledger struct {
	path    string
	records []Record
	seen    map[Key]struct{}
}

// Load reads the store at path, creating an empty one if the file does
// not exist yet. An empty file is treated as an empty store.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, seen: make(map[Key]struct{})}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := l.persist(); err != nil {
			return nil, fmt.Errorf("initialize history at %s: %w", path, err)
		}
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("read history at %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, &l.records); err != nil {
		return nil, fmt.Errorf("decode history at %s: %w", path, err)
	}
	for _, rec := range l.records {
		l.seen[rec.Key()] = struct{}{}
	}
	return l, nil
}

// Has reports whether the key is already recorded.
func (l *Ledger) Has(k Key) bool {
	_, ok := l.seen[k]
	return ok
}

// Len returns the number of persisted records.
func (l *Ledger) Len() int { return len(l.records) }

// Record appends one completed download and rewrites the store. The
// timestamp is filled in when the caller left it zero. On a persist
// failure the in-memory state is rolled back so memory and disk stay
// in agreement.
func (l *Ledger) Record(rec Record) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	l.records = append(l.records, rec)
	l.seen[rec.Key()] = struct{}{}

	if err := l.persist(); err != nil {
		l.records = l.records[:len(l.records)-1]
		delete(l.seen, rec.Key())
		return fmt.Errorf("persist history at %s: %w", l.path, err)
	}
	return nil
}

// persist rewrites the whole store via temp file and rename so a crash
// mid-write never truncates existing history.
func (l *Ledger) persist() error {
	records := l.records
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Chmod(l.path, 0o644)
}
