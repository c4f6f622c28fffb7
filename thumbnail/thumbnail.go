// Package thumbnail captures a small JPEG either from a running feed's
// most recent HLS segment or, failing that, a short-lived connection to
// the source itself, grounded on original_source/core/thumbnail.py.
package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	fromSourceTimeout = 10 * time.Second
	fromHLSTimeout    = 5 * time.Second
	width             = 320
	height            = 180
	quality           = 5
)

// Capturer spawns the external transcoder binary in single-frame mode.
type Capturer struct {
	TranscoderPath string
}

func New(transcoderPath string) *Capturer {
	return &Capturer{TranscoderPath: transcoderPath}
}

// CaptureFromHLS seeks the newest .ts segment under dir and extracts one
// frame from it — the preferred, cheap path since it costs no RTSP
// round-trip.
func (c *Capturer) CaptureFromHLS(ctx context.Context, dir string) (string, error) {
	segment, err := latestSegment(dir)
	if err != nil {
		return "", fmt.Errorf("thumbnail: find latest segment: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, fromHLSTimeout)
	defer cancel()
	return c.captureFrame(ctx, segment)
}

// Capture falls back to a fresh, short-lived connection to sourceURL
// when no running feed directory is available yet.
func (c *Capturer) Capture(ctx context.Context, sourceURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fromSourceTimeout)
	defer cancel()

	args := []string{
		"-rtsp_transport", "tcp",
		"-stimeout", "5000000",
		"-i", sourceURL,
	}
	return c.captureFrameWithArgs(ctx, args)
}

func (c *Capturer) captureFrame(ctx context.Context, inputPath string) (string, error) {
	return c.captureFrameWithArgs(ctx, []string{"-i", inputPath})
}

func (c *Capturer) captureFrameWithArgs(ctx context.Context, inputArgs []string) (string, error) {
	args := append([]string{}, inputArgs...)
	args = append(args,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-q:v", fmt.Sprintf("%d", quality),
		"-f", "mjpeg",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, c.TranscoderPath, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("thumbnail: capture frame: %w", err)
	}
	if stdout.Len() == 0 {
		return "", fmt.Errorf("thumbnail: empty frame output")
	}

	encoded := base64.StdEncoding.EncodeToString(stdout.Bytes())
	return "data:image/jpeg;base64," + encoded, nil
}

// latestSegment returns the most-recently-modified .ts file in dir,
// whatever its name, the way thumbnail.py's capture_thumbnail_from_hls picks its seek
// target.
func latestSegment(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ts") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no segments found in %s", dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	return candidates[0].path, nil
}
