package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFramerate(t *testing.T) {
	cases := []struct {
		raw      string
		expected *float64
	}{
		{"25/1", ptr(25.0)},
		{"30000/1001", ptr(29.97002997002997)},
		{"0/0", nil},
		{"not-a-rate", nil},
	}

	for _, tc := range cases {
		got := parseFramerate(tc.raw)
		if tc.expected == nil {
			assert.Nil(t, got)
			continue
		}
		require.NotNil(t, got)
		assert.InDelta(t, *tc.expected, *got, 1e-9)
	}
}

func TestApplyVerdict_CopyPath(t *testing.T) {
	r := &Result{IsValid: true, VideoCodec: "h264", HasAudio: true, AudioCodec: "aac"}
	applyVerdict(r)

	assert.True(t, r.CanCopyVideo)
	assert.True(t, r.CanCopyAudio)
	assert.False(t, r.NeedsTranscode)
	assert.Empty(t, r.TranscodeReason)
}

func TestApplyVerdict_TranscodeNeeded(t *testing.T) {
	r := &Result{IsValid: true, VideoCodec: "mpeg4", HasAudio: true, AudioCodec: "pcm_alaw"}
	applyVerdict(r)

	assert.False(t, r.CanCopyVideo)
	assert.False(t, r.CanCopyAudio)
	assert.True(t, r.NeedsTranscode)
	assert.NotEmpty(t, r.TranscodeReason)
}

func TestApplyVerdict_NoAudioStreamIsCopyable(t *testing.T) {
	r := &Result{IsValid: true, VideoCodec: "hevc", HasAudio: false}
	applyVerdict(r)

	assert.True(t, r.CanCopyVideo)
	assert.True(t, r.CanCopyAudio, "absence of audio must count as copyable")
}

func TestClassifyFFmpegError(t *testing.T) {
	cases := map[string]string{
		"Connection refused":                  "connection-refused",
		"HTTP error 401 Unauthorized":          "unauthorized",
		"404 Not Found":                        "not-found",
		"Connection timed out":                 "timeout",
		"No route to host":                     "no-route",
		"Name or service not known":            "dns-fail",
		"Invalid data found when processing":   "invalid-data",
		"":                                     "generic-truncated",
		"some completely unrelated stderr text": "generic-truncated",
	}

	for stderr, want := range cases {
		assert.Equal(t, want, ClassifyFFmpegError(stderr), "stderr=%q", stderr)
	}
}

func ptr(f float64) *float64 { return &f }
