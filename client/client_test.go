package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type recordingMuxer struct {
	mu     sync.Mutex
	merges []string
}

func (m *recordingMuxer) Available() bool { return true }

func (m *recordingMuxer) Merge(_ context.Context, videoPath, audioPath, outputPath string) error {
	m.mu.Lock()
	m.merges = append(m.merges, outputPath)
	m.mu.Unlock()
	return os.WriteFile(outputPath, []byte("merged"), 0o644)
}

func writeEnvelope(w http.ResponseWriter, data any) {
	payload, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    0,
		"message": "0",
		"data":    json.RawMessage(payload),
	})
}

// newFavServer serves one account with two folders; only folder 11 has
// a member. It records which folders had their contents requested.
func newFavServer(t *testing.T, requestedFolders *[]string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/x/v3/fav/folder/created/list", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("up_mid"); got != "123" {
			t.Errorf("created list up_mid = %q, want 123", got)
		}
		writeEnvelope(w, map[string]any{"list": []map[string]any{
			{"id": 11, "title": "Fav A", "media_count": 1},
			{"id": 22, "title": "Fav B", "media_count": 1},
		}})
	})
	mux.HandleFunc("/x/v3/fav/folder/collected/list", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{"list": nil})
	})
	mux.HandleFunc("/medialist/gateway/base/spaceDetail", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("media_id")
		*requestedFolders = append(*requestedFolders, id)
		if id != "11" {
			writeEnvelope(w, map[string]any{"medias": nil})
			return
		}
		writeEnvelope(w, map[string]any{"medias": []map[string]any{
			{"id": 1, "bvid": "BV1x", "title": "Cool Video"},
		}})
	})
	mux.HandleFunc("/x/web-interface/view", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{
			"bvid":  "BV1x",
			"title": "Cool Video",
			"owner": map[string]any{"mid": 9, "name": "up"},
			"pages": []map[string]any{{"cid": 500, "page": 1, "part": ""}},
		})
	})
	mux.HandleFunc("/x/player/playurl", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{
			"accept_quality":     []int{80, 32},
			"accept_description": []string{"高清 1080P", "清晰 480P"},
			"dash": map[string]any{
				"video": []map[string]any{
					{"id": 80, "bandwidth": 100, "baseUrl": srv.URL + "/media/video.m4s"},
				},
				"audio": []map[string]any{
					{"id": 30280, "bandwidth": 100, "base_url": srv.URL + "/media/audio.m4s"},
				},
			},
		})
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("track-bytes"))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunDownloadsTargetFolderOnly(t *testing.T) {
	var requestedFolders []string
	srv := newFavServer(t, &requestedFolders)

	root := t.TempDir()
	hdr := false
	cfg := &Config{
		Cookies:         "DedeUserID=123; SESSDATA=abc",
		SavePath:        filepath.Join(root, "downloads"),
		TempDir:         filepath.Join(root, "temp"),
		HistoryFile:     filepath.Join(root, "history.json"),
		RequestInterval: 0.001,
		MaxRetries:      1,
		Retry412Max:     1,
		Retry412Delay:   1,
		DownloadHDR:     &hdr,
		TargetFolders:   []string{"11"},
	}

	mux := &recordingMuxer{}
	c, err := New(cfg, Options{
		HTTPClient: srv.Client(),
		APIBase:    srv.URL,
		Muxer:      mux,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, id := range requestedFolders {
		if id != "11" {
			t.Errorf("folder %s was enumerated despite target filter", id)
		}
	}
	want := filepath.Join(cfg.SavePath, "Fav A", "Cool Video-up.mp4")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("merged output missing: %v", err)
	}
	if len(mux.merges) != 1 || mux.merges[0] != want {
		t.Fatalf("merges = %v, want exactly %q", mux.merges, want)
	}
	if c.Ledger().Len() != 1 {
		t.Fatalf("ledger length = %d, want 1", c.Ledger().Len())
	}
}

func TestRunSecondInvocationSkipsCompletedWork(t *testing.T) {
	var requestedFolders []string
	srv := newFavServer(t, &requestedFolders)

	root := t.TempDir()
	hdr := false
	cfg := &Config{
		Cookies:         "DedeUserID=123; SESSDATA=abc",
		SavePath:        filepath.Join(root, "downloads"),
		TempDir:         filepath.Join(root, "temp"),
		HistoryFile:     filepath.Join(root, "history.json"),
		RequestInterval: 0.001,
		MaxRetries:      1,
		Retry412Max:     1,
		Retry412Delay:   1,
		DownloadHDR:     &hdr,
		TargetFolders:   []string{"11"},
	}
	mux := &recordingMuxer{}
	opts := Options{HTTPClient: srv.Client(), APIBase: srv.URL, Muxer: mux}

	c, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// Fresh client, same history file: the ledger must carry over.
	c2, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New() second error = %v", err)
	}
	if err := c2.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if len(mux.merges) != 1 {
		t.Fatalf("merges across two runs = %d, want 1", len(mux.merges))
	}
	entries, err := os.ReadDir(filepath.Join(cfg.SavePath, "Fav A"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("output entries = %v (err %v), want exactly one file", entries, err)
	}
	if !strings.HasSuffix(entries[0].Name(), ".mp4") {
		t.Fatalf("unexpected output name %q", entries[0].Name())
	}
	if c2.Ledger().Len() != 1 {
		t.Fatalf("ledger length after second run = %d, want 1", c2.Ledger().Len())
	}
}

func TestRunFailsWithoutCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{"list": nil})
	}))
	defer srv.Close()

	root := t.TempDir()
	hdr := false
	cfg := &Config{
		Cookies:         "DedeUserID=123; SESSDATA=abc",
		SavePath:        filepath.Join(root, "downloads"),
		TempDir:         filepath.Join(root, "temp"),
		HistoryFile:     filepath.Join(root, "history.json"),
		RequestInterval: 0.001,
		MaxRetries:      1,
		Retry412Max:     1,
		Retry412Delay:   1,
		DownloadHDR:     &hdr,
	}
	c, err := New(cfg, Options{HTTPClient: srv.Client(), APIBase: srv.URL, Muxer: &recordingMuxer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Run(context.Background()); err == nil {
		t.Fatalf("Run() = nil error with no collections")
	}
}
