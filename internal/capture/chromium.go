// Package capture takes PNG snapshots of the calendar page with headless
// Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	"tmscal/internal/config"
	appLog "tmscal/internal/log"
)

// Defaults match the month grid of the /calendar page.
const (
	DefaultWidth   = 1400
	DefaultHeight  = 1000
	DefaultTimeout = 30 * time.Second
)

// Options defines one snapshot.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?year=2025&month=1".
	URL string
	// OutputPath is where the PNG is written.
	OutputPath string
	// Width and Height are the viewport in pixels.
	Width  int
	Height int
	// Timeout bounds the whole capture.
	Timeout time.Duration
}

// OptionsFromConfig points a snapshot at the local server's /calendar page
// for the given month. A zero year or month leaves the server's default.
func OptionsFromConfig(cfg *config.Config, year int, month time.Month) Options {
	u := url.URL{Scheme: "http", Host: localHost(cfg.Listen), Path: "/calendar"}
	if year > 0 && month > 0 {
		q := url.Values{}
		q.Set("year", strconv.Itoa(year))
		q.Set("month", strconv.Itoa(int(month)))
		u.RawQuery = q.Encode()
	}
	return Options{
		URL:        u.String(),
		OutputPath: cfg.Snapshot.Output,
		Width:      cfg.Snapshot.Width,
		Height:     cfg.Snapshot.Height,
	}
}

// localHost turns a listen address into a dialable host; ":8080" and
// "0.0.0.0:8080" become "127.0.0.1:8080".
func localHost(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func (o *Options) validate() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
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

// CalendarPNG navigates headless Chromium to opts.URL, waits until the page
// marks itself `[data-ready="true"]`, and writes a full-page PNG to
// opts.OutputPath. The file is replaced atomically.
func CalendarPNG(parentCtx context.Context, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Let web fonts settle before the shot.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := writeAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("snapshot written", "path", opts.OutputPath, "bytes", len(png))
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
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
