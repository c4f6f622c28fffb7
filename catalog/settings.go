package catalog

// Setting is a persisted key/value runtime-tunable. Keys consumed by the
// core: max_concurrent_streams, keep_alive_seconds, segment_max_age_minutes,
// hls_time, hls_list_size.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text"`
}

func (Setting) TableName() string { return "settings" }

const (
	SettingMaxConcurrentStreams  = "max_concurrent_streams"
	SettingKeepAliveSeconds      = "keep_alive_seconds"
	SettingSegmentMaxAgeMinutes  = "segment_max_age_minutes"
	SettingHLSTime               = "hls_time"
	SettingHLSListSize           = "hls_list_size"
)
