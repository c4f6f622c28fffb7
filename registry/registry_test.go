package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertPopContains(t *testing.T) {
	r := New()
	fp := &FeedProcess{FeedID: "f1", StartTime: time.Now()}
	r.Insert(fp)

	assert.True(t, r.Contains("f1"))
	assert.Equal(t, 1, r.Size())

	popped, ok := r.Pop("f1")
	require.True(t, ok)
	assert.Equal(t, "f1", popped.FeedID)
	assert.False(t, r.Contains("f1"))

	_, ok = r.Pop("f1")
	assert.False(t, ok, "a second pop must be a no-op, per stop_feed's idempotence contract")
}

func TestOldest_FIFO(t *testing.T) {
	r := New()
	base := time.Now()
	r.Insert(&FeedProcess{FeedID: "a", StartTime: base})
	r.Insert(&FeedProcess{FeedID: "b", StartTime: base.Add(1 * time.Second)})
	r.Insert(&FeedProcess{FeedID: "c", StartTime: base.Add(2 * time.Second)})

	oldest, ok := r.Oldest()
	require.True(t, ok)
	assert.Equal(t, "a", oldest)

	r.Pop("a")
	oldest, ok = r.Oldest()
	require.True(t, ok)
	assert.Equal(t, "b", oldest)
}

func TestOldest_EmptyRegistry(t *testing.T) {
	r := New()
	_, ok := r.Oldest()
	assert.False(t, ok)
}

func TestAttachViewer_FastPath(t *testing.T) {
	r := New()
	r.Insert(&FeedProcess{FeedID: "f1", StartTime: time.Now()})

	ok, count := r.AttachViewer("f1", "viewer-a")
	require.True(t, ok)
	assert.Equal(t, 1, count)

	ok, count = r.AttachViewer("f1", "viewer-b")
	require.True(t, ok)
	assert.Equal(t, 2, count)

	ok, _ = r.AttachViewer("unknown", "viewer-c")
	assert.False(t, ok)
}

func TestDetachViewer(t *testing.T) {
	r := New()
	r.Insert(&FeedProcess{FeedID: "f1", StartTime: time.Now()})
	r.AttachViewer("f1", "viewer-a")
	r.AttachViewer("f1", "viewer-b")

	ok, count := r.DetachViewer("f1", "viewer-a")
	require.True(t, ok)
	assert.Equal(t, 1, count)

	_, lastViewerTime, ok := r.ViewerSnapshot("f1")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), lastViewerTime, time.Second)
}

func TestIncrementReconnect_NeverResetWithinLifetime(t *testing.T) {
	r := New()
	r.Insert(&FeedProcess{FeedID: "f1", StartTime: time.Now()})

	count, ok := r.IncrementReconnect("f1")
	require.True(t, ok)
	assert.Equal(t, 1, count)

	count, ok = r.IncrementReconnect("f1")
	require.True(t, ok)
	assert.Equal(t, 2, count)
}
