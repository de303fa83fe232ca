// Package scraper loads storefront pages and turns them into offers.
// fetcher.go defines how pages are requested.
package scraper

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

const (
	NavigationTimeout = 30 * time.Second
	ReadyTimeout      = 10 * time.Second
)

// PageRequest describes one page load.
type PageRequest struct {
	// Name identifies the page in logs and screenshot file names.
	Name          string
	URL           string
	ReadySelector string
	// Hooks run after the page is ready and before the HTML is read,
	// e.g. scrolling to load lazy content.
	Hooks []chromedp.Action
}

// Fetcher loads a rendered page. It returns common.ErrPageNotReady when the
// ready selector does not show up in time.
type Fetcher interface {
	Fetch(ctx context.Context, req PageRequest) (*goquery.Document, error)
}

// ScrollToBottom scrolls down in steps so lazily loaded rows get rendered.
func ScrollToBottom(steps int) chromedp.Action {
	tasks := chromedp.Tasks{}
	for range steps {
		tasks = append(tasks,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(500*time.Millisecond),
		)
	}
	return tasks
}

// ClickIfPresent clicks the first element matching sel when there is one.
func ClickIfPresent(sel string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var present bool
		js := `document.querySelector(` + quoteJS(sel) + `) !== null`
		if err := chromedp.Evaluate(js, &present).Do(ctx); err != nil || !present {
			return err
		}
		if err := chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible).Do(ctx); err != nil {
			return err
		}
		return chromedp.Sleep(time.Second).Do(ctx)
	})
}

func quoteJS(s string) string {
	out := []byte{'"'}
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(append(out, '"'))
}
