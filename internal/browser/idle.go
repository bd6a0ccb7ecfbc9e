package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// pollInterval is how often a chromedp watch re-checks its tracker.
const pollInterval = 50 * time.Millisecond

// requestTracker counts in-flight requests from CDP network events.
type requestTracker struct {
	mu       sync.Mutex
	now      func() time.Time
	inflight map[network.RequestID]struct{}
	lastSeen time.Time
}

func newRequestTracker(now func() time.Time) *requestTracker {
	return &requestTracker{
		now:      now,
		inflight: make(map[network.RequestID]struct{}),
		lastSeen: now(),
	}
}

func (t *requestTracker) observe(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[ev.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, ev.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, ev.RequestID)
	default:
		return
	}
	t.lastSeen = t.now()
}

// idle reports whether nothing is pending and nothing has moved for idleWindow.
func (t *requestTracker) idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastSeen) >= idleWindow
}

type chromeIdleWatch struct {
	tracker *requestTracker
	cancel  context.CancelFunc
}

func (w *chromeIdleWatch) Wait(ctx context.Context, timeout time.Duration) error {
	return pollIdle(ctx, timeout, w.tracker.idle)
}

func (w *chromeIdleWatch) Stop() { w.cancel() }

// pollIdle checks idle every pollInterval until it holds, timeout passes or
// ctx ends.
func pollIdle(ctx context.Context, timeout time.Duration, idle func() bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrIdleTimeout
		case <-ticker.C:
		}
	}
}

type rodIdleWatch struct {
	wait   func()
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func (w *rodIdleWatch) Wait(ctx context.Context, timeout time.Duration) error {
	timer := time.AfterFunc(timeout, func() { w.cancel(ErrIdleTimeout) })
	stop := context.AfterFunc(ctx, func() { w.cancel(context.Cause(ctx)) })

	w.wait()
	timer.Stop()
	stop()
	if w.ctx.Err() != nil {
		return context.Cause(w.ctx)
	}
	return nil
}

func (w *rodIdleWatch) Stop() { w.cancel(context.Canceled) }
