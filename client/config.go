package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the file-backed configuration. JSON keys are the external
// contract; unknown keys are ignored, missing keys fall back to
// defaults. Relative paths resolve against the config file's
// directory.
type Config struct {
	// Cookies is the raw Cookie header of an authenticated web
	// session. Required.
	Cookies string `json:"cookies"`

	SavePath   string `json:"save_path"`
	FFmpegPath string `json:"ffmpeg_path"`

	// RequestInterval is the inter-request delay in seconds.
	RequestInterval float64 `json:"request_interval"`

	// MaxRetries bounds media download attempts per track.
	MaxRetries int `json:"max_retries"`

	HistoryFile string `json:"history_file"`
	TempDir     string `json:"temp_dir"`

	MaxTitleLength    int `json:"max_title_length"`
	MaxFilenameLength int `json:"max_filename_length"`
	UpnameMaxLength   int `json:"upname_max_length"`

	AutoDownload  bool `json:"auto_download"`
	IntervalHours int  `json:"interval_hours"`

	// FolderHistory is recognized for config-file compatibility but
	// unused: history is always keyed per folder.
	FolderHistory bool `json:"folder_history"`

	// Retry412Max is the number of cooldown retries after the first
	// 412 response; Retry412Delay is the cooldown in seconds.
	Retry412Max   int `json:"retry_412_max"`
	Retry412Delay int `json:"retry_412_delay"`

	DownloadHDR *bool `json:"download_hdr"`

	// TargetFolders restricts processing to the listed collection ids.
	// Empty means all collections.
	TargetFolders []string `json:"target_folders"`
}

// Config errors are the only fatal startup failures.
var (
	ErrMissingCookies = errors.New("config: cookies is required")
)

// LoadConfig reads and validates the config file at path. The
// BILIFAVDOWN_COOKIES environment variable overrides the file's
// cookies value when set.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if env := os.Getenv("BILIFAVDOWN_COOKIES"); env != "" {
		cfg.Cookies = env
	}
	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(path))

	if cfg.Cookies == "" {
		return nil, ErrMissingCookies
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SavePath == "" {
		c.SavePath = "./downloads"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.RequestInterval <= 0 {
		c.RequestInterval = 1.5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.HistoryFile == "" {
		c.HistoryFile = "./config/download_history.json"
	}
	if c.TempDir == "" {
		c.TempDir = "./temp"
	}
	if c.MaxTitleLength <= 0 {
		c.MaxTitleLength = 80
	}
	if c.MaxFilenameLength <= 0 {
		c.MaxFilenameLength = 240
	}
	if c.UpnameMaxLength <= 0 {
		c.UpnameMaxLength = 10
	}
	if c.IntervalHours <= 0 {
		c.IntervalHours = 6
	}
	if c.Retry412Max <= 0 {
		c.Retry412Max = 3
	}
	if c.Retry412Delay <= 0 {
		c.Retry412Delay = 120
	}
	if c.DownloadHDR == nil {
		enabled := true
		c.DownloadHDR = &enabled
	}
}

func (c *Config) resolvePaths(baseDir string) {
	c.SavePath = resolvePath(baseDir, c.SavePath)
	c.HistoryFile = resolvePath(baseDir, c.HistoryFile)
	c.TempDir = resolvePath(baseDir, c.TempDir)
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// RequestDelay returns the inter-request delay as a duration.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestInterval * float64(time.Second))
}

// CooldownDelay returns the 412 cooldown as a duration.
func (c *Config) CooldownDelay() time.Duration {
	return time.Duration(c.Retry412Delay) * time.Second
}

// HDREnabled reports whether HDR variants should be downloaded.
func (c *Config) HDREnabled() bool {
	return c.DownloadHDR == nil || *c.DownloadHDR
}
