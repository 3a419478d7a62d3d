// Package capture renders the dashboard page to a PNG with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "dietcal/internal/log"
)

// Default viewport, sized for a month grid plus the weight chart.
const (
	DefaultWidth      = 1024
	DefaultHeight     = 1400
	DefaultTimeoutSec = 30
)

// readySelector matches the page root once the dashboard has rendered.
const readySelector = `[data-ready="true"]`

var (
	ErrNoURL    = errors.New("capture: URL is required")
	ErrNoOutput = errors.New("capture: OutputPath is required")
)

// Options defines parameters for a dashboard screenshot.
type Options struct {
	// URL of the dashboard, e.g. "http://127.0.0.1:8080/?month=2024-10".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport in pixels. Zero means the default.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero means DefaultTimeoutSec.
	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return ErrNoURL
	}
	if o.OutputPath == "" {
		return ErrNoOutput
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeoutSec * time.Second
	}
	return nil
}

// CaptureDashboardPNG opens opts.URL in headless Chromium, waits until the
// page marks itself data-ready="true" and writes a full-page PNG.
func CaptureDashboardPNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	start := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// Let the chart finish painting.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if dir := filepath.Dir(opts.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("capture: create output dir: %w", err)
		}
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("dashboard captured",
		"path", opts.OutputPath,
		"bytes", len(png),
		"width", opts.Width,
		"height", opts.Height,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
