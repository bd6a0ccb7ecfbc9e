package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movements-dev/triodos-movements/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.Headless = true
	cfg.Browser.ExecPath = "/usr/bin/chromium"
	cfg.Timeouts.Step = 12 * time.Second

	opts := OptionsFromConfig(cfg)
	assert.True(t, opts.Headless)
	assert.Equal(t, "/usr/bin/chromium", opts.ExecPath)
	assert.Equal(t, "./browser_data", opts.UserDataDir)
	assert.Equal(t, 1920, opts.WindowWidth)
	assert.Equal(t, 1080, opts.WindowHeight)
	assert.Equal(t, 12*time.Second, opts.StepTimeout)
	assert.Contains(t, opts.UserAgent, "Mozilla/5.0")
}

func TestLaunch_UnknownDriver(t *testing.T) {
	_, err := Launch(context.Background(), "selenium", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown browser driver "selenium"`)
}
