// Package capture snapshots the wall page to a PNG with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "daycal/internal/log"
)

const (
	DefaultWidth   = 800
	DefaultHeight  = 480
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the board root once it is rendered.
	ReadySelector = `[data-ready="true"]`
)

var (
	ErrNoURL    = errors.New("capture: URL is required")
	ErrNoOutput = errors.New("capture: output path is required")
)

type Options struct {
	// URL of the board, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath receives the PNG. It is replaced atomically so a
	// concurrent /preview.png never sees a partial file.
	OutputPath string

	Width  int
	Height int

	Timeout time.Duration

	// ExecPath points at a Chromium binary; empty lets chromedp search.
	ExecPath string

	// BasicAuth credentials, if the board is protected.
	Username string
	Password string
}

func (o *Options) applyDefaults() error {
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
		o.Timeout = DefaultTimeout
	}
	return nil
}

// Snapshot navigates to opts.URL, waits for ReadySelector and writes a
// viewport-sized PNG to opts.OutputPath.
func Snapshot(parentCtx context.Context, opts Options) error {
	if err := opts.applyDefaults(); err != nil {
		return err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	url, err := withCredentials(opts.URL, opts.Username, opts.Password)
	if err != nil {
		return err
	}

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(url),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// let web fonts settle
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.CaptureScreenshot(&png),
	}

	started := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := writeAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	appLog.Info("snapshot written",
		"path", opts.OutputPath,
		"bytes", len(png),
		"width", opts.Width,
		"height", opts.Height,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
