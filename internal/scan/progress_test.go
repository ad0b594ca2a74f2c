package scan

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_Fraction(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{Completed: 0, Total: 0}, 0},
		{Progress{Completed: 3, Total: 0}, 0},
		{Progress{Completed: 1, Total: 4}, 0.25},
		{Progress{Completed: 4, Total: 4}, 1},
		{Progress{Completed: 5, Total: 4}, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.p.Fraction(), 1e-9, "%+v", tt.p)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	tr.SetTotal(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.Increment()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Progress{Completed: 100, Total: 100}, tr.Snapshot())
}

type renderLog struct {
	mu    sync.Mutex
	calls []Progress
}

func (r *renderLog) render(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, p)
}

func (r *renderLog) snapshot() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Progress(nil), r.calls...)
}

func TestReporter_RendersChangesAndFinalSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.SetTotal(2)
	log := &renderLog{}

	r := StartReporter(tr, time.Millisecond, log.render)
	tr.Increment()
	require.Eventually(t, func() bool {
		calls := log.snapshot()
		return len(calls) > 0 && calls[len(calls)-1].Completed == 1
	}, time.Second, time.Millisecond)

	tr.Increment()
	r.Stop()

	calls := log.snapshot()
	assert.Equal(t, Progress{Completed: 2, Total: 2}, calls[len(calls)-1])

	// Unchanged snapshots are not re-rendered.
	for i := 1; i < len(calls)-1; i++ {
		assert.NotEqual(t, calls[i-1], calls[i])
	}
}

func TestReporter_StopIsIdempotent(t *testing.T) {
	tr := NewTracker()
	log := &renderLog{}

	r := StartReporter(tr, time.Hour, log.render)
	r.Stop()
	r.Stop()

	assert.Len(t, log.snapshot(), 1)
}
