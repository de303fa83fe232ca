// browser.go drives one shared headless Chrome with chromedp.
package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// BrowserOptions configures the shared browser.
type BrowserOptions struct {
	Headless      bool
	ScreenshotDir string
}

// Browser is a Fetcher backed by a single Chrome process. Every fetch uses
// its own tab, which is closed when the fetch returns.
type Browser struct {
	ctx           context.Context
	cancel        func()
	screenshotDir string
}

// NewBrowser starts Chrome. Close must be called to stop it.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Debugf), chromedp.WithErrorf(log.Debugf))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		screenshotDir: opts.ScreenshotDir,
	}, nil
}

// Close stops Chrome.
func (b *Browser) Close() {
	b.cancel()
}

// Fetch implements Fetcher.
func (b *Browser) Fetch(ctx context.Context, req PageRequest) (*goquery.Document, error) {
	tab, closeTab := chromedp.NewContext(b.ctx)
	defer closeTab()

	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	if err := chromedp.Run(tab); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	logger := log.WithFields(log.Fields{"page": req.Name, "url": req.URL})
	logger.Debug("Loading page")

	if err := runWithTimeout(tab, NavigationTimeout, chromedp.Navigate(req.URL)); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", req.URL, err)
	}

	if req.ReadySelector != "" {
		err := runWithTimeout(tab, ReadyTimeout, chromedp.WaitVisible(req.ReadySelector, chromedp.ByQuery))
		if err != nil {
			path := b.screenshot(tab, req.Name)
			logger.WithFields(log.Fields{"selector": req.ReadySelector, "screenshot": path}).
				Warn("Page did not become ready")
			return nil, common.ErrPageNotReady
		}
	}

	if len(req.Hooks) > 0 {
		if err := runWithTimeout(tab, NavigationTimeout, chromedp.Tasks(req.Hooks)); err != nil {
			logger.WithError(err).Warn("Page hook failed")
		}
	}

	var html string
	if err := runWithTimeout(tab, ReadyTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func runWithTimeout(tab context.Context, timeout time.Duration, action chromedp.Action) error {
	ctx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()
	return chromedp.Run(ctx, action)
}

// screenshot stores a full page PNG for later inspection and returns its path.
func (b *Browser) screenshot(tab context.Context, name string) string {
	if b.screenshotDir == "" {
		return ""
	}
	var buf []byte
	if err := runWithTimeout(tab, ReadyTimeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		log.WithError(err).Warn("Screenshot failed")
		return ""
	}
	if err := os.MkdirAll(b.screenshotDir, 0o755); err != nil {
		log.WithError(err).Warn("Screenshot directory unavailable")
		return ""
	}
	path := filepath.Join(b.screenshotDir, ScreenshotName(name, time.Now()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		log.WithError(err).Warn("Screenshot could not be written")
		return ""
	}
	return path
}

// ScreenshotName is "<name>_<UTC stamp>.png".
func ScreenshotName(name string, at time.Time) string {
	return fmt.Sprintf("%s_%s.png", name, at.UTC().Format("20060102T150405Z"))
}
