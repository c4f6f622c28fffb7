package supervisor

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// playlistCleanupInterval matches the 10s health-check cadence the
// playlist-aware sweep was originally tied to.
const playlistCleanupInterval = 10 * time.Second

// runPlaylistCleanupLoop is a safety net alongside the age-based GC
// sweep: ffmpeg's own -hls_flags delete_segments usually prunes
// .ts files as they roll off the playlist, but when it misses one
// (a crash mid-write, a reconnect that rewrites the playlist before the
// old process's last segment is flushed) this pass parses the live
// playlist and removes any .ts file it does not reference, grounded on
// an existing cleanupOldSegments health-check pass.
func (s *Supervisor) runPlaylistCleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(playlistCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCtx.Done():
			return
		case <-ticker.C:
			s.cleanupUnreferencedSegments()
		}
	}
}

func (s *Supervisor) cleanupUnreferencedSegments() {
	for _, feedID := range s.reg.IDs() {
		s.cleanupUnreferencedSegmentsForFeed(feedID)
	}
}

// cleanupUnreferencedSegmentsForFeed deletes .ts files in feedID's
// output directory that the current playlist does not reference. It
// never touches the playlist itself, and skips entirely when the
// playlist cannot be read (feed not yet producing segments, or torn
// down mid-scan).
func (s *Supervisor) cleanupUnreferencedSegmentsForFeed(feedID string) {
	dir := s.outDirFor(feedID)

	playlistData, err := os.ReadFile(s.PlaylistPath(feedID))
	if err != nil {
		return
	}

	referenced := make(map[string]bool)
	for _, line := range strings.Split(string(playlistData), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ".ts") {
			referenced[filepath.Base(line)] = true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".ts") {
			continue
		}
		if referenced[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			deleted++
		}
	}

	if deleted > 0 && s.metrics != nil {
		s.metrics.SegmentsDeleted.Add(float64(deleted))
	}
}
