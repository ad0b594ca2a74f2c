package scan

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a point-in-time view of a match run.
type Progress struct {
	Completed int64
	Total     int64
}

// Fraction returns Completed/Total clamped to [0, 1]. An unknown total
// reports 0.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Completed) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Tracker counts completed candidates. It is shared by all workers.
type Tracker struct {
	completed atomic.Int64
	total     atomic.Int64
}

// NewTracker creates a tracker with an unknown total.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetTotal records the expected number of candidates.
func (t *Tracker) SetTotal(n int) {
	t.total.Store(int64(n))
}

// Increment marks one candidate as done.
func (t *Tracker) Increment() {
	t.completed.Add(1)
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Progress {
	return Progress{Completed: t.completed.Load(), Total: t.total.Load()}
}

// RenderFunc draws a progress snapshot.
type RenderFunc func(Progress)

// Reporter samples a Tracker on a fixed interval and hands each snapshot to
// a render function. Rendering happens on the reporter goroutine, so a slow
// terminal never holds up the workers.
type Reporter struct {
	tracker  *Tracker
	interval time.Duration
	render   RenderFunc

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartReporter begins sampling tracker every interval.
func StartReporter(tracker *Tracker, interval time.Duration, render RenderFunc) *Reporter {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	r := &Reporter{
		tracker:  tracker,
		interval: interval,
		render:   render,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Reporter) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	last := Progress{Completed: -1}
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if p := r.tracker.Snapshot(); p != last {
				r.render(p)
				last = p
			}
		}
	}
}

// Stop ends sampling and renders one final snapshot. It is safe to call
// more than once; only the first call renders.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
		r.render(r.tracker.Snapshot())
	})
}
