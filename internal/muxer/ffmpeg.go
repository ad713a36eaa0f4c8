// Package muxer combines separately downloaded video-only and
// audio-only tracks into one container via the external ffmpeg tool,
// stream copy only.
package muxer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Muxer defines the media merge operation.
type Muxer interface {
	Available() bool
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FFmpegMuxer implements Muxer using the ffmpeg command line tool.
type FFmpegMuxer struct {
	Path string
}

// NewFFmpegMuxer returns a new FFmpegMuxer.
// If path is empty, it looks for "ffmpeg" in PATH.
func NewFFmpegMuxer(path string) *FFmpegMuxer {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegMuxer{Path: path}
}

// Available checks if ffmpeg is executable.
func (f *FFmpegMuxer) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// Merge muxes videoPath and audioPath into outputPath with stream
// copy. Both inputs must exist and be non-empty before ffmpeg is
// invoked; an empty or missing output despite a zero exit code is a
// failure. There is no internal retry; the caller decides whether to
// retry the whole variant.
func (f *FFmpegMuxer) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	for _, input := range []string{videoPath, audioPath} {
		if err := requireNonEmpty(input); err != nil {
			return fmt.Errorf("mux precondition: %w", err)
		}
	}

	// ffmpeg -y -loglevel error -i video.m4s -i audio.m4s -c copy out.mp4
	cmd := exec.CommandContext(ctx, f.Path,
		"-y",
		"-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		outputPath,
	)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg merge failed: %w", err)
	}

	if err := requireNonEmpty(outputPath); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("mux postcondition: %w", err)
	}
	return nil
}

func requireNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}
