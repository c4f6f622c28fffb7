// Package registry holds the in-memory map of feed_id to FeedProcess,
// guarded by a single mutex, with FIFO eviction. It generalizes a
// sync.RWMutex + map[uint]*StreamInfo pattern to the string feed ids
// and richer FeedProcess shape this gateway needs.
//
// Critical deadlock rule: callers must never await another task's
// termination while holding the Registry's mutex. Every method here
// only observes or mutates membership/fields; it never blocks on a
// subprocess or goroutine exit. Supervisor is responsible for
// capturing references under a short lock and tearing them down
// outside it.
package registry

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"rtspgateway/probe"
)

// FeedProcess is the in-memory record for one live (or reconnecting)
// feed. It is created at start and destroyed at stop.
type FeedProcess struct {
	FeedID         string
	Cmd            *exec.Cmd
	StartTime      time.Time
	LastViewerTime time.Time
	Viewers        map[string]struct{}
	ProbeResult    *probe.Result
	ReconnectCount int

	// CancelMonitor/CancelKeepAlive stop the corresponding background
	// task; Done channels close when each task actually returns, so
	// stop_feed can await termination without racing a still-running
	// goroutine.
	CancelMonitor   context.CancelFunc
	MonitorDone     chan struct{}
	CancelKeepAlive context.CancelFunc
	KeepAliveDone   chan struct{}
}

// ViewerCount returns the number of distinct viewers currently attached.
// Safe to call without the Registry's lock: readers may read
// pointer-level fields without it, but callers that need a
// point-in-time-consistent view alongside other fields should go through
// Registry's locked accessors instead.
func (fp *FeedProcess) ViewerCount() int {
	return len(fp.Viewers)
}

// Registry is the mutex-guarded feed_id -> FeedProcess map.
type Registry struct {
	mu    sync.Mutex
	feeds map[string]*FeedProcess
}

func New() *Registry {
	return &Registry{feeds: make(map[string]*FeedProcess)}
}

// Size returns the current number of tracked feeds.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

// Contains reports whether feedID is currently tracked.
func (r *Registry) Contains(feedID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.feeds[feedID]
	return ok
}

// Get returns the FeedProcess for feedID without removing it. The
// returned pointer's Cmd/task fields must only be acted on (waited,
// cancelled) after releasing any lock the caller holds around this call.
func (r *Registry) Get(feedID string) (*FeedProcess, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.feeds[feedID]
	return fp, ok
}

// Insert adds a new FeedProcess, used once by start_feed before the
// transcoder is spawned. Callers must ensure feedID is not already present
// (re-check under the same critical section that decided to insert).
func (r *Registry) Insert(fp *FeedProcess) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[fp.FeedID] = fp
}

// Pop removes and returns feedID's entry atomically, so no concurrent
// starter can observe it mid-teardown.
func (r *Registry) Pop(feedID string) (*FeedProcess, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.feeds[feedID]
	if ok {
		delete(r.feeds, feedID)
	}
	return fp, ok
}

// Oldest returns the feed_id with the minimum StartTime, for FIFO
// eviction in make_room. Ties break arbitrarily.
func (r *Registry) Oldest() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldestID string
	var oldestTime time.Time
	found := false

	for id, fp := range r.feeds {
		if !found || fp.StartTime.Before(oldestTime) {
			oldestID = id
			oldestTime = fp.StartTime
			found = true
		}
	}
	return oldestID, found
}

// AttachViewer implements the start_feed fast path: if feedID is
// present, add viewerID to its set and refresh last_viewer_time.
// Returns ok=false if the feed is not tracked, in which case the caller
// must fall through to the slow start path.
func (r *Registry) AttachViewer(feedID, viewerID string) (ok bool, viewerCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, present := r.feeds[feedID]
	if !present {
		return false, 0
	}
	if fp.Viewers == nil {
		fp.Viewers = make(map[string]struct{})
	}
	fp.Viewers[viewerID] = struct{}{}
	fp.LastViewerTime = time.Now()
	return true, len(fp.Viewers)
}

// DetachViewer removes viewerID from feedID's set and refreshes
// last_viewer_time so the keep-alive watchdog's idle clock starts
// counting from the disconnect instant.
func (r *Registry) DetachViewer(feedID, viewerID string) (ok bool, viewerCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, present := r.feeds[feedID]
	if !present {
		return false, 0
	}
	delete(fp.Viewers, viewerID)
	fp.LastViewerTime = time.Now()
	return true, len(fp.Viewers)
}

// ViewerSnapshot returns the viewer count and last_viewer_time for
// feedID, used by the keep-alive watchdog's 10s poll to compute idleness.
func (r *Registry) ViewerSnapshot(feedID string) (viewerCount int, lastViewerTime time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, present := r.feeds[feedID]
	if !present {
		return 0, time.Time{}, false
	}
	return len(fp.Viewers), fp.LastViewerTime, true
}

// IncrementReconnect bumps feedID's reconnect_count and returns the new
// value. It is never reset within a monitor task's lifetime.
func (r *Registry) IncrementReconnect(feedID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, present := r.feeds[feedID]
	if !present {
		return 0, false
	}
	fp.ReconnectCount++
	return fp.ReconnectCount, true
}

// UpdateCmd swaps in a fresh subprocess handle after a reconnect
// re-spawn, keeping the same Registry entry so the feed does not jump
// to the front of the eviction queue.
func (r *Registry) UpdateCmd(feedID string, cmd *exec.Cmd) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, present := r.feeds[feedID]
	if !present {
		return false
	}
	fp.Cmd = cmd
	return true
}

// IDs returns a snapshot of currently tracked feed ids, used by the GC
// sweep to decide which directories belong to live feeds.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.feeds))
	for id := range r.feeds {
		ids = append(ids, id)
	}
	return ids
}
