// Package catalog is the persisted source of truth for feed rows and
// runtime settings. The registry and supervisor treat it as eventually
// consistent with in-memory state; it is never the authority on whether
// a transcoder is actually alive (see registry.Registry for that).
package catalog

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// Mode controls when the supervisor should keep a feed running.
type Mode string

const (
	ModeAlwaysOn Mode = "always_on"
	ModeOnDemand Mode = "on_demand"
	ModeSmart    Mode = "smart"
)

// Status reflects the supervisor's last known intent for a feed, not
// guaranteed live truth — the registry is authoritative for liveness.
type Status string

const (
	StatusStopped      Status = "stopped"
	StatusStarting     Status = "starting"
	StatusRunning      Status = "running"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// LatencyMode selects the HLS segmentation profile the planner uses.
type LatencyMode string

const (
	LatencyLow    LatencyMode = "low"
	LatencyStable LatencyMode = "stable"
)

// Feed is the persisted catalog row for one remote video source.
type Feed struct {
	ID              string      `gorm:"primaryKey;size:16"`
	Name            string      `gorm:"size:255"`
	SourceURL       string      `gorm:"uniqueIndex;size:1024;column:source_url"`
	Mode            Mode        `gorm:"size:16;default:on_demand"`
	Status          Status      `gorm:"size:16;default:stopped"`
	VideoCodec      string      `gorm:"size:32"`
	Resolution      string      `gorm:"size:32"`
	Framerate       *float64
	Bitrate         *int
	Overrides       string `gorm:"type:text"` // JSON bag, see planner.Overrides
	KeepAliveSeconds int    `gorm:"default:60"`
	UseTranscode    bool
	LatencyMode     LatencyMode `gorm:"size:16;default:stable"`
	ViewerCount     int
	LastViewerTime  *time.Time
	LastError       string `gorm:"type:text"`
	PID             int
	Thumbnail       string `gorm:"type:text"` // data: URL JPEG, refreshed by the thumbnailer

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Feed) TableName() string { return "feeds" }

// NewFeedID generates the url-safe, 16-character feed identifier:
// base64 URL encoding (no padding) of 12 random bytes.
func NewFeedID() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
