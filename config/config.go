// Package config loads the gateway's configuration from environment
// variables, with an optional YAML overlay file for settings operators
// want to check into version control instead of exporting as env vars.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Token      TokenConfig      `yaml:"token"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type TokenConfig struct {
	SecretKey          string `yaml:"secret_key"`
	DefaultExpiryHours int    `yaml:"token_expiry_hours"`
}

// SupervisorConfig holds the runtime-tunable supervisor options.
// MaxConcurrentStreams, KeepAliveSeconds, SegmentMaxAgeMinutes, HLSTime
// and HLSListSize can also be stored per-key in the catalog's Settings
// table; a value found there wins over the one here, which is the
// fallback when the key is absent. KeepAliveSeconds (from either source)
// applies only to feeds whose own keep-alive value is unset. Nothing
// writes these defaults into the table.
type SupervisorConfig struct {
	StreamsDir             string `yaml:"streams_dir"`
	TranscoderPath         string `yaml:"transcoder_path"`
	ProbePath              string `yaml:"probe_path"`
	MaxStreams             int    `yaml:"max_streams"`
	MaxConcurrentStreams   int    `yaml:"max_concurrent_streams"`
	KeepAliveSeconds       int    `yaml:"keep_alive_seconds"`
	StartupTimeoutSeconds  int    `yaml:"startup_timeout"`
	ReconnectDelaySeconds  int    `yaml:"reconnect_delay"`
	MaxReconnectAttempts   int    `yaml:"max_reconnect_attempts"`
	SegmentCleanupInterval int    `yaml:"segment_cleanup_interval"`
	SegmentMaxAgeMinutes   int    `yaml:"segment_max_age_minutes"`
	HLSTime                int    `yaml:"hls_time"`
	HLSListSize            int    `yaml:"hls_list_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load builds configuration from defaults, then an optional YAML settings
// file (path from RTSP_CONFIG_FILE), then environment variables — each
// layer overriding the previous one. A `.env` file, if present, is loaded
// into the environment first (without replacing variables already set),
// so its values take part in the last layer and win over the YAML file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("RTSP_CONFIG_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	applyEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "rtspgateway",
			SSLMode: "disable",
		},
		Token: TokenConfig{
			SecretKey:          "change-this-in-production",
			DefaultExpiryHours: 24,
		},
		Supervisor: SupervisorConfig{
			StreamsDir:             "./streams",
			TranscoderPath:         "ffmpeg",
			ProbePath:              "ffprobe",
			MaxStreams:             50,
			MaxConcurrentStreams:   30,
			KeepAliveSeconds:       60,
			StartupTimeoutSeconds:  15,
			ReconnectDelaySeconds:  5,
			MaxReconnectAttempts:   3,
			SegmentCleanupInterval: 30,
			SegmentMaxAgeMinutes:   5,
			HLSTime:                3,
			HLSListSize:            8,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func applyEnv(cfg *Config) {
	str(&cfg.Server.Host, "RTSP_HOST")
	str(&cfg.Server.Port, "RTSP_PORT")

	str(&cfg.Database.Host, "RTSP_DB_HOST")
	str(&cfg.Database.Port, "RTSP_DB_PORT")
	str(&cfg.Database.User, "RTSP_DB_USER")
	str(&cfg.Database.Password, "RTSP_DB_PASSWORD")
	str(&cfg.Database.DBName, "RTSP_DB_NAME")
	str(&cfg.Database.SSLMode, "RTSP_DB_SSLMODE")

	str(&cfg.Token.SecretKey, "RTSP_SECRET_KEY")
	intv(&cfg.Token.DefaultExpiryHours, "RTSP_TOKEN_EXPIRY_HOURS")

	str(&cfg.Supervisor.StreamsDir, "RTSP_STREAMS_DIR")
	str(&cfg.Supervisor.TranscoderPath, "RTSP_TRANSCODER_PATH")
	str(&cfg.Supervisor.ProbePath, "RTSP_PROBE_PATH")
	intv(&cfg.Supervisor.MaxStreams, "RTSP_MAX_STREAMS")
	intv(&cfg.Supervisor.MaxConcurrentStreams, "RTSP_MAX_CONCURRENT_STREAMS")
	intv(&cfg.Supervisor.KeepAliveSeconds, "RTSP_KEEP_ALIVE_SECONDS")
	intv(&cfg.Supervisor.StartupTimeoutSeconds, "RTSP_STARTUP_TIMEOUT")
	intv(&cfg.Supervisor.ReconnectDelaySeconds, "RTSP_RECONNECT_DELAY")
	intv(&cfg.Supervisor.MaxReconnectAttempts, "RTSP_MAX_RECONNECT_ATTEMPTS")
	intv(&cfg.Supervisor.SegmentCleanupInterval, "RTSP_SEGMENT_CLEANUP_INTERVAL")
	intv(&cfg.Supervisor.SegmentMaxAgeMinutes, "RTSP_SEGMENT_MAX_AGE_MINUTES")
	intv(&cfg.Supervisor.HLSTime, "RTSP_HLS_TIME")
	intv(&cfg.Supervisor.HLSListSize, "RTSP_HLS_LIST_SIZE")

	str(&cfg.Log.Level, "RTSP_LOG_LEVEL")
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
