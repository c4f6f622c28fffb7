// Package planner assembles the transcoder's argv from a feed row, an
// optional probe result, and user overrides, grounded line-for-line on
// original_source/core/ffmpeg_builder.py's four-segment structure.
package planner

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"rtspgateway/catalog"
	"rtspgateway/probe"
)

// Overrides is the JSON override bag stored on Feed.Overrides. Nested
// *_args arrays are appended verbatim at their segment's tail; the
// scalar fields steer the segment-building logic itself.
type Overrides struct {
	RTSPTransport   string   `json:"rtsp_transport,omitempty"`
	TranscodeVideo  bool     `json:"transcode_video,omitempty"`
	TranscodeAudio  bool     `json:"transcode_audio,omitempty"`
	NoAudio         bool     `json:"no_audio,omitempty"`
	VideoBitrate    string   `json:"video_bitrate,omitempty"`
	Scale           string   `json:"scale,omitempty"`
	InputArgs       []string `json:"input_args,omitempty"`
	VideoArgs       []string `json:"video_args,omitempty"`
	AudioArgs       []string `json:"audio_args,omitempty"`
	OutputArgs      []string `json:"output_args,omitempty"`
}

// ParseOverrides decodes a feed's stored override JSON, tolerating an
// empty string (no overrides set).
func ParseOverrides(raw string) (Overrides, error) {
	var o Overrides
	if raw == "" {
		return o, nil
	}
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return o, fmt.Errorf("planner: parse overrides: %w", err)
	}
	return o, nil
}

// Runtime carries the settings-derived tunables the planner needs that
// are not stored on the feed row itself.
type Runtime struct {
	HLSTime     int
	HLSListSize int
}

// Plan is the planner's output: a ready-to-exec argv and the playlist
// path the transcoder is expected to produce.
type Plan struct {
	Argv         []string
	PlaylistPath string
}

// DefaultOverrides are exposed so operators can discover accepted
// override keys without reading source.
func DefaultOverrides() Overrides {
	return Overrides{
		RTSPTransport: "tcp",
	}
}

// Build produces a deterministic argv: input args, "-i url", video
// args, audio args, output args, output path.
func Build(feed *catalog.Feed, result *probe.Result, overrides Overrides, outDir string, runtime Runtime) Plan {
	lowLatency := feed.LatencyMode == catalog.LatencyLow

	argv := make([]string, 0, 32)
	argv = append(argv, buildInputArgs(lowLatency, overrides)...)
	argv = append(argv, "-i", feed.SourceURL)
	argv = append(argv, buildVideoArgs(feed, result, overrides, lowLatency)...)
	argv = append(argv, buildAudioArgs(result, overrides)...)

	playlistPath := filepath.Join(outDir, "stream.m3u8")
	argv = append(argv, buildOutputArgs(lowLatency, overrides, runtime, outDir)...)
	argv = append(argv, playlistPath)

	return Plan{Argv: argv, PlaylistPath: playlistPath}
}

func buildInputArgs(lowLatency bool, overrides Overrides) []string {
	transport := overrides.RTSPTransport
	if transport == "" {
		transport = "tcp"
	}

	bufferSize := "1048576"
	if lowLatency {
		bufferSize = "524288"
	}

	args := []string{
		"-rtsp_transport", transport,
		"-rtsp_flags", "prefer_tcp",
		"-stimeout", "5000000",
		"-buffer_size", bufferSize,
		"-y",
	}

	if lowLatency {
		args = append(args, "-fflags", "nobuffer", "-flags", "low_delay", "-avioflags", "direct")
	}

	args = append(args, overrides.InputArgs...)
	return args
}

func buildVideoArgs(feed *catalog.Feed, result *probe.Result, overrides Overrides, lowLatency bool) []string {
	needsTranscode := feed.UseTranscode || overrides.TranscodeVideo
	if result != nil && !result.CanCopyVideo {
		needsTranscode = true
	}

	var args []string
	if needsTranscode {
		keyframeInterval := 3
		if lowLatency {
			keyframeInterval = 1
		}
		args = []string{
			"-c:v", "libx264",
			"-preset", "ultrafast",
			"-tune", "zerolatency",
			"-profile:v", "baseline",
			"-crf", "23",
			"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", keyframeInterval),
		}
		if overrides.VideoBitrate != "" {
			args = append(args, "-b:v", overrides.VideoBitrate)
		}
		if overrides.Scale != "" {
			args = append(args, "-vf", "scale="+overrides.Scale)
		}
	} else {
		args = []string{"-c:v", "copy"}
	}

	args = append(args, overrides.VideoArgs...)
	return args
}

func buildAudioArgs(result *probe.Result, overrides Overrides) []string {
	noAudio := overrides.NoAudio || (result != nil && !result.HasAudio)

	var args []string
	switch {
	case noAudio:
		args = []string{"-an"}
	case overrides.TranscodeAudio || (result != nil && !result.CanCopyAudio):
		args = []string{"-c:a", "aac", "-b:a", "128k", "-ac", "2"}
	default:
		args = []string{"-c:a", "copy"}
	}

	args = append(args, overrides.AudioArgs...)
	return args
}

func buildOutputArgs(lowLatency bool, overrides Overrides, runtime Runtime, outDir string) []string {
	hlsTime := runtime.HLSTime
	hlsListSize := runtime.HLSListSize
	flags := "delete_segments+append_list+omit_endlist"

	if lowLatency {
		if hlsTime == 0 {
			hlsTime = 1
		}
		if hlsListSize == 0 {
			hlsListSize = 4
		}
		flags += "+split_by_time"
	} else {
		if hlsTime == 0 {
			hlsTime = 3
		}
		if hlsListSize == 0 {
			hlsListSize = 8
		}
	}

	args := []string{
		"-f", "hls",
		"-hls_time", strconv.Itoa(hlsTime),
		"-hls_list_size", strconv.Itoa(hlsListSize),
		"-hls_flags", flags,
		"-hls_segment_filename", filepath.Join(outDir, "segment_%03d.ts"),
		"-start_number", "0",
	}

	args = append(args, overrides.OutputArgs...)
	return args
}
