package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPage struct {
	img []byte
	err error
	ctx context.Context
}

func (p *stubPage) Screenshot(ctx context.Context) ([]byte, error) {
	p.ctx = ctx
	return p.img, p.err
}

func TestFileName(t *testing.T) {
	at := time.UnixMilli(1735689600123)
	assert.Equal(t, "error-1735689600123.jpg", FileName(at))
}

func TestCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	s := NewSnapshotter(dir)
	s.Now = func() time.Time { return time.UnixMilli(42) }

	path, err := s.Capture(context.Background(), &stubPage{img: []byte("jpeg-bytes")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "error-42.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestCapture_CanceledContextStillSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &stubPage{img: []byte("x")}
	_, err := NewSnapshotter(t.TempDir()).Capture(ctx, page)
	require.NoError(t, err)
	assert.NoError(t, page.ctx.Err())
}

func TestCapture_ScreenshotError(t *testing.T) {
	dir := t.TempDir()
	_, err := NewSnapshotter(dir).Capture(context.Background(), &stubPage{err: errors.New("target closed")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target closed")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
