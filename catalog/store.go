package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by Store lookups that find no matching row.
var ErrNotFound = errors.New("catalog: not found")

// Store is the catalog's contract, narrow enough that its users (the
// supervisor, the GC sweep, the HTTP layer) can be tested against an
// in-memory fake instead of a real database.
type Store interface {
	GetFeed(id string) (*Feed, error)
	UpdateFeedStatus(id string, status Status, lastError string) error
	UpdateFeedRuntime(id string, pid int, videoCodec, resolution string, framerate *float64, bitrate *int) error
	UpdateFeedViewerCount(id string, count int, lastViewerTime time.Time) error
	UpdateFeedThumbnail(id string, dataURL string) error
	FeedExists(id string) (bool, error)
	CountFeeds() (int, error)
	ListFeedsByMode(mode Mode) ([]*Feed, error)

	GetSettingInt(key string, fallback int) int
}

// GormStore is the production Store, backed by gorm.io/gorm. It follows
// the same connect-then-AutoMigrate shape used elsewhere in this
// codebase, with the Feed/Setting tables the catalog needs in place of
// a User/Camera schema.
type GormStore struct {
	db *gorm.DB
}

// Config mirrors the DSN fields config.Config.Database carries; callers
// typically pass that struct straight in.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Open connects to Postgres and runs AutoMigrate for the catalog's
// tables.
func Open(cfg Config) (*GormStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: connect: %w", err)
	}

	if err := db.AutoMigrate(&Feed{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("catalog: automigrate: %w", err)
	}

	return &GormStore{db: db}, nil
}

// NewGormStore wraps an already-open *gorm.DB (for a connection the
// caller opened itself, with any gorm driver) and runs AutoMigrate on it.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Feed{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("catalog: automigrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetFeed(id string) (*Feed, error) {
	var feed Feed
	if err := s.db.First(&feed, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get feed %s: %w", id, err)
	}
	return &feed, nil
}

func (s *GormStore) UpdateFeedStatus(id string, status Status, lastError string) error {
	err := s.db.Model(&Feed{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"last_error": lastError,
	}).Error
	if err != nil {
		return fmt.Errorf("catalog: update status %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) UpdateFeedRuntime(id string, pid int, videoCodec, resolution string, framerate *float64, bitrate *int) error {
	err := s.db.Model(&Feed{}).Where("id = ?", id).Updates(map[string]any{
		"pid":         pid,
		"video_codec": videoCodec,
		"resolution":  resolution,
		"framerate":   framerate,
		"bitrate":     bitrate,
	}).Error
	if err != nil {
		return fmt.Errorf("catalog: update runtime %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) UpdateFeedViewerCount(id string, count int, lastViewerTime time.Time) error {
	err := s.db.Model(&Feed{}).Where("id = ?", id).Updates(map[string]any{
		"viewer_count":     count,
		"last_viewer_time": lastViewerTime,
	}).Error
	if err != nil {
		return fmt.Errorf("catalog: update viewer count %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) UpdateFeedThumbnail(id string, dataURL string) error {
	err := s.db.Model(&Feed{}).Where("id = ?", id).Update("thumbnail", dataURL).Error
	if err != nil {
		return fmt.Errorf("catalog: update thumbnail %s: %w", id, err)
	}
	return nil
}

func (s *GormStore) FeedExists(id string) (bool, error) {
	var count int64
	if err := s.db.Model(&Feed{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("catalog: feed exists %s: %w", id, err)
	}
	return count > 0, nil
}

func (s *GormStore) CountFeeds() (int, error) {
	var count int64
	if err := s.db.Model(&Feed{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("catalog: count feeds: %w", err)
	}
	return int(count), nil
}

// ListFeedsByMode returns every feed row in the given Mode, used at
// boot to start always_on feeds before the server accepts traffic.
func (s *GormStore) ListFeedsByMode(mode Mode) ([]*Feed, error) {
	var feeds []*Feed
	if err := s.db.Where("mode = ?", mode).Find(&feeds).Error; err != nil {
		return nil, fmt.Errorf("catalog: list feeds by mode %s: %w", mode, err)
	}
	return feeds, nil
}

// GetSettingInt reads a runtime setting, falling back to the supplied
// default when the key is absent or not parseable as an int — settings
// are free-form strings so operators can store anything, but the core
// only ever asks for a handful of known tunables.
func (s *GormStore) GetSettingInt(key string, fallback int) int {
	var setting Setting
	if err := s.db.First(&setting, "key = ?", key).Error; err != nil {
		return fallback
	}
	n, err := strconv.Atoi(setting.Value)
	if err != nil {
		return fallback
	}
	return n
}
