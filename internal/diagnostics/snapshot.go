// Package diagnostics saves what the browser showed when a run failed.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Screenshotter is the part of a browser page a snapshot needs.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Snapshotter writes failure screenshots into Dir.
type Snapshotter struct {
	Dir string
	Now func() time.Time
}

// NewSnapshotter creates a Snapshotter writing into dir.
func NewSnapshotter(dir string) *Snapshotter {
	return &Snapshotter{Dir: dir, Now: time.Now}
}

// FileName returns the snapshot name for a failure at t: error-<unix-millis>.jpg.
func FileName(t time.Time) string {
	return fmt.Sprintf("error-%d.jpg", t.UnixMilli())
}

// Capture screenshots page and returns the written path. It ignores ctx
// cancellation so an interrupted run still leaves a snapshot behind.
func (s *Snapshotter) Capture(ctx context.Context, page Screenshotter) (string, error) {
	failedAt := s.Now()

	img, err := page.Screenshot(context.WithoutCancel(ctx))
	if err != nil {
		return "", fmt.Errorf("taking failure screenshot: %w", err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshots dir: %w", err)
	}
	path := filepath.Join(s.Dir, FileName(failedAt))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("writing failure screenshot: %w", err)
	}
	return path, nil
}
