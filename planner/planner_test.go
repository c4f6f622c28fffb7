package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtspgateway/catalog"
	"rtspgateway/probe"
)

func containsSeq(argv []string, seq ...string) bool {
	joined := strings.Join(argv, " ")
	return strings.Contains(joined, strings.Join(seq, " "))
}

func TestBuild_CopyPath_StableLatency(t *testing.T) {
	feed := &catalog.Feed{
		SourceURL:   "rtsp://example.invalid/stream",
		LatencyMode: catalog.LatencyStable,
	}
	result := &probe.Result{IsValid: true, VideoCodec: "h264", HasAudio: true, AudioCodec: "aac", CanCopyVideo: true, CanCopyAudio: true}

	plan := Build(feed, result, Overrides{}, "/tmp/out", Runtime{})

	assert.True(t, containsSeq(plan.Argv, "-c:v", "copy"))
	assert.True(t, containsSeq(plan.Argv, "-c:a", "copy"))
	assert.True(t, containsSeq(plan.Argv, "-hls_time", "3"))
	assert.True(t, containsSeq(plan.Argv, "-hls_list_size", "8"))
	assert.Equal(t, "/tmp/out/stream.m3u8", plan.PlaylistPath)
}

func TestBuild_InputBufferSize(t *testing.T) {
	feed := &catalog.Feed{SourceURL: "rtsp://example.invalid/stream", LatencyMode: catalog.LatencyStable}
	plan := Build(feed, nil, Overrides{}, "/tmp/out", Runtime{})

	assert.True(t, containsSeq(plan.Argv, "-buffer_size", "1048576"), "stable latency must set the RTSP demuxer's socket buffer size")
	assert.False(t, containsSeq(plan.Argv, "-bufsize", "1048576"), "-bufsize is an encoder rate-control option, not the demuxer buffer flag")

	lowFeed := &catalog.Feed{SourceURL: "rtsp://example.invalid/stream", LatencyMode: catalog.LatencyLow}
	lowPlan := Build(lowFeed, nil, Overrides{}, "/tmp/out", Runtime{})
	assert.True(t, containsSeq(lowPlan.Argv, "-buffer_size", "524288"), "low latency must halve the socket buffer size")
}

func TestBuild_TranscodeNeeded_LowLatency(t *testing.T) {
	feed := &catalog.Feed{
		SourceURL:   "rtsp://example.invalid/stream",
		LatencyMode: catalog.LatencyLow,
	}
	result := &probe.Result{IsValid: true, VideoCodec: "mpeg4", CanCopyVideo: false, CanCopyAudio: true}

	plan := Build(feed, result, Overrides{}, "/tmp/out", Runtime{})

	assert.True(t, containsSeq(plan.Argv, "-c:v", "libx264"))
	assert.True(t, containsSeq(plan.Argv, "-preset", "ultrafast"))
	assert.True(t, containsSeq(plan.Argv, "-hls_time", "1"))
	assert.True(t, containsSeq(plan.Argv, "-hls_list_size", "4"))
	assert.Contains(t, strings.Join(plan.Argv, " "), "split_by_time")
	require.True(t, containsSeq(plan.Argv, "expr:gte(t,n_forced*1)"))
}

func TestBuild_NoAudioOverride(t *testing.T) {
	feed := &catalog.Feed{SourceURL: "rtsp://x", LatencyMode: catalog.LatencyStable}
	plan := Build(feed, nil, Overrides{NoAudio: true}, "/tmp/out", Runtime{})

	assert.True(t, containsSeq(plan.Argv, "-an"))
}

func TestBuild_OverridesAppendedAtSegmentTail(t *testing.T) {
	feed := &catalog.Feed{SourceURL: "rtsp://x", LatencyMode: catalog.LatencyStable}
	overrides := Overrides{
		InputArgs:  []string{"-extra-input"},
		VideoArgs:  []string{"-extra-video"},
		AudioArgs:  []string{"-extra-audio"},
		OutputArgs: []string{"-extra-output"},
	}

	plan := Build(feed, nil, overrides, "/tmp/out", Runtime{})

	for _, want := range []string{"-extra-input", "-extra-video", "-extra-audio", "-extra-output"} {
		assert.Contains(t, plan.Argv, want)
	}
}

func TestBuild_RuntimeOverridesDefaultSegmentSizes(t *testing.T) {
	feed := &catalog.Feed{SourceURL: "rtsp://x", LatencyMode: catalog.LatencyStable}
	plan := Build(feed, nil, Overrides{}, "/tmp/out", Runtime{HLSTime: 6, HLSListSize: 12})

	assert.True(t, containsSeq(plan.Argv, "-hls_time", "6"))
	assert.True(t, containsSeq(plan.Argv, "-hls_list_size", "12"))
}
