package gc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtspgateway/catalog"
	"rtspgateway/metrics"
	"rtspgateway/registry"
)

// fakeStore is a minimal catalog.Store for exercising the sweeper
// without a database — the catalog's narrow interface exists precisely
// so tests can fake it.
type fakeStore struct {
	existing map[string]bool
}

func (f *fakeStore) GetFeed(id string) (*catalog.Feed, error) { return nil, catalog.ErrNotFound }
func (f *fakeStore) UpdateFeedStatus(id string, status catalog.Status, lastError string) error {
	return nil
}
func (f *fakeStore) UpdateFeedRuntime(id string, pid int, videoCodec, resolution string, framerate *float64, bitrate *int) error {
	return nil
}
func (f *fakeStore) UpdateFeedViewerCount(id string, count int, lastViewerTime time.Time) error {
	return nil
}
func (f *fakeStore) UpdateFeedThumbnail(id string, dataURL string) error { return nil }
func (f *fakeStore) FeedExists(id string) (bool, error) { return f.existing[id], nil }
func (f *fakeStore) CountFeeds() (int, error)           { return len(f.existing), nil }
func (f *fakeStore) ListFeedsByMode(mode catalog.Mode) ([]*catalog.Feed, error) {
	return nil, nil
}
func (f *fakeStore) GetSettingInt(key string, fallback int) int         { return fallback }

func touchSegment(t *testing.T, dir, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func newSweeper(t *testing.T, streamsDir string, existing map[string]bool) *Sweeper {
	t.Helper()
	reg := registry.New()
	store := &fakeStore{existing: existing}
	m := metrics.New(prometheus.NewRegistry())
	return New(Config{StreamsDir: streamsDir, SegmentMaxAge: time.Minute}, reg, store, m, zerolog.Nop())
}

func TestDeleteStaleSegments_OnlyRemovesOldTSFiles(t *testing.T) {
	dir := t.TempDir()
	touchSegment(t, dir, "old.ts", 10*time.Minute)
	touchSegment(t, dir, "fresh.ts", 5*time.Second)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stream.m3u8"), []byte("x"), 0o644))

	s := newSweeper(t, filepath.Dir(dir), nil)
	s.deleteStaleSegments(dir)

	_, err := os.Stat(filepath.Join(dir, "old.ts"))
	assert.True(t, os.IsNotExist(err), "stale segment must be removed")

	_, err = os.Stat(filepath.Join(dir, "fresh.ts"))
	assert.NoError(t, err, "fresh segment must survive")

	_, err = os.Stat(filepath.Join(dir, "stream.m3u8"))
	assert.NoError(t, err, "non-.ts files must never be touched")
}

func TestSweepDirectory_RemovesOrphanDirNotInCatalog(t *testing.T) {
	streamsDir := t.TempDir()
	feedDir := filepath.Join(streamsDir, "orphan-feed")
	require.NoError(t, os.Mkdir(feedDir, 0o755))
	touchSegment(t, feedDir, "seg.ts", time.Second)

	s := newSweeper(t, streamsDir, map[string]bool{})
	s.sweepDirectory("orphan-feed", map[string]struct{}{})

	_, err := os.Stat(feedDir)
	assert.True(t, os.IsNotExist(err), "directory for a feed absent from the catalog must be removed")
}

func TestSweepDirectory_KeepsDirForKnownFeed(t *testing.T) {
	streamsDir := t.TempDir()
	feedDir := filepath.Join(streamsDir, "known-feed")
	require.NoError(t, os.Mkdir(feedDir, 0o755))

	s := newSweeper(t, streamsDir, map[string]bool{"known-feed": true})
	s.sweepDirectory("known-feed", map[string]struct{}{})

	_, err := os.Stat(feedDir)
	assert.NoError(t, err, "directory for a feed still present in the catalog must survive")
}

func TestSweepDirectory_KeepsDirForLiveFeedEvenIfNotInCatalog(t *testing.T) {
	streamsDir := t.TempDir()
	feedDir := filepath.Join(streamsDir, "live-feed")
	require.NoError(t, os.Mkdir(feedDir, 0o755))

	s := newSweeper(t, streamsDir, map[string]bool{})
	s.sweepDirectory("live-feed", map[string]struct{}{"live-feed": {}})

	_, err := os.Stat(feedDir)
	assert.NoError(t, err, "a feed the registry reports as live must never be garbage collected")
}
