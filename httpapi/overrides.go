package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rtspgateway/planner"
)

// handleDefaultOverrides documents the override keys the planner
// accepts, grounded on original_source/core/ffmpeg_builder.py:
// get_default_overrides, so operators can discover
// transcode_video/scale/video_bitrate/etc. without reading source.
// Every key is written out explicitly because planner.Overrides' json
// tags are omitempty, which would drop all keys whose default is zero.
func (s *Server) handleDefaultOverrides(c *gin.Context) {
	d := planner.DefaultOverrides()
	c.JSON(http.StatusOK, gin.H{
		"rtsp_transport":  d.RTSPTransport,
		"transcode_video": d.TranscodeVideo,
		"transcode_audio": d.TranscodeAudio,
		"no_audio":        d.NoAudio,
		"video_bitrate":   d.VideoBitrate,
		"scale":           d.Scale,
		"input_args":      append([]string{}, d.InputArgs...),
		"video_args":      append([]string{}, d.VideoArgs...),
		"audio_args":      append([]string{}, d.AudioArgs...),
		"output_args":     append([]string{}, d.OutputArgs...),
	})
}
