// Package jobs runs the scraping loop.
// scheduler.go decides which scrapers are due, runs them one after another
// on a shared browser, stores their offers and signals the delivery engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/db/postgres"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/logging"
	"freeloot.dev/lootscraper/internal/metrics"
	"freeloot.dev/lootscraper/internal/scraper"
)

// DefaultScrapeTimeout bounds one scraper run, page timeouts included.
const DefaultScrapeTimeout = 15 * time.Minute

// OfferSink stores one scraped offer.
type OfferSink interface {
	Upsert(ctx context.Context, fresh *offers.Offer) (bool, error)
}

// Publisher regenerates derived output (the feeds) after a pass.
type Publisher interface {
	Publish(ctx context.Context) error
}

// Browser is a fetcher that has to be released after a pass.
type Browser interface {
	scraper.Fetcher
	Close()
}

// OpenBrowser starts the shared browser for one pass.
type OpenBrowser func(ctx context.Context) (Browser, error)

type job struct {
	scraper   scraper.Scraper
	schedules []cron.Schedule
}

// Scheduler runs due scrapers in passes.
type Scheduler struct {
	jobs      []job
	open      OpenBrowser
	sink      OfferSink
	publisher Publisher
	queue     *RunQueue
	wait      time.Duration
	timeout   time.Duration
	now       func() time.Time

	lastRun map[string]time.Time
	runID   int64
}

// Options configure a Scheduler. Publisher and Queue may be nil.
type Options struct {
	Scrapers  []scraper.Scraper
	Open      OpenBrowser
	Sink      OfferSink
	Publisher Publisher
	Queue     *RunQueue
	// Zero means a single pass.
	WaitBetweenRuns time.Duration
	// Zero means DefaultScrapeTimeout.
	ScrapeTimeout time.Duration
}

// NewScheduler parses the scraper schedules.
func NewScheduler(opts Options) (*Scheduler, error) {
	s := &Scheduler{
		open:      opts.Open,
		sink:      opts.Sink,
		publisher: opts.Publisher,
		queue:     opts.Queue,
		wait:      opts.WaitBetweenRuns,
		timeout:   opts.ScrapeTimeout,
		now:       time.Now,
		lastRun:   make(map[string]time.Time),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultScrapeTimeout
	}
	for _, sc := range opts.Scrapers {
		j := job{scraper: sc}
		for _, spec := range sc.Schedule() {
			sched, err := cron.ParseStandard(spec)
			if err != nil {
				return nil, fmt.Errorf("schedule %q of %s: %w", spec, sc.Name(), err)
			}
			j.schedules = append(j.schedules, sched)
		}
		s.jobs = append(s.jobs, j)
	}
	return s, nil
}

// Run executes passes until ctx is cancelled, or once in batch mode.
// Only fatal database errors are returned.
func (s *Scheduler) Run(ctx context.Context) error {
	log.WithFields(log.Fields{"scrapers": len(s.jobs), "wait": s.wait}).Info("Scheduler started")
	for {
		if err := s.RunPass(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		if s.wait <= 0 || ctx.Err() != nil {
			break
		}
		timer := time.NewTimer(s.wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
			continue
		}
		break
	}
	log.Info("Scheduler stopped")
	return nil
}

// RunPass runs every due scraper, publishes the feeds and signals the queue.
func (s *Scheduler) RunPass(ctx context.Context) error {
	now := s.now()
	due := s.due(now)

	if len(due) > 0 {
		if err := s.scrapeAll(ctx, due, now); err != nil {
			return err
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx); err != nil {
			if postgres.IsOperational(err) {
				return fmt.Errorf("publish feeds: %w", err)
			}
			log.WithError(err).Error("Could not publish feeds")
		}
	}

	s.runID++
	if s.queue != nil {
		s.queue.Push(s.runID)
	}
	return nil
}

// due returns the scrapers that never ran or whose next slot after the last run has come.
func (s *Scheduler) due(now time.Time) []scraper.Scraper {
	var out []scraper.Scraper
	for _, j := range s.jobs {
		last, ran := s.lastRun[j.scraper.Name()]
		if !ran {
			out = append(out, j.scraper)
			continue
		}
		for _, sched := range j.schedules {
			if !sched.Next(last).After(now) {
				out = append(out, j.scraper)
				break
			}
		}
	}
	return out
}

// scrapeAll stops between scrapers once ctx is cancelled. The browser and the
// scrapers run on a context detached from ctx, so a started scraper finishes.
func (s *Scheduler) scrapeAll(ctx context.Context, due []scraper.Scraper, now time.Time) error {
	detached := context.WithoutCancel(ctx)
	browser, err := s.open(detached)
	if err != nil {
		logging.Critical().WithError(err).Error("Could not start the browser")
		return nil
	}
	defer browser.Close()

	for _, sc := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.lastRun[sc.Name()] = now
		if err := s.runScraper(detached, browser, sc); err != nil {
			return err
		}
	}
	return nil
}

// runScraper recovers from panics so one broken adapter cannot stop the loop.
func (s *Scheduler) runScraper(ctx context.Context, f scraper.Fetcher, sc scraper.Scraper) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := sc.Name()
	logger := log.WithField("scraper", name)

	defer func() {
		if r := recover(); r != nil {
			logging.Critical().WithField("scraper", name).
				Errorf("Scraper panicked: %v\n%s", r, debug.Stack())
			metrics.ScrapeRuns.WithLabelValues(name, "panic").Inc()
			err = nil
		}
	}()

	start := time.Now()
	found, err := sc.Scrape(ctx, f)
	metrics.ScrapeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		logging.Critical().WithError(err).WithField("scraper", name).Error("Scraper failed")
		metrics.ScrapeRuns.WithLabelValues(name, "error").Inc()
		return nil
	}
	metrics.OffersFound.WithLabelValues(name).Add(float64(len(found)))

	created := 0
	for i := range found {
		isNew, err := s.sink.Upsert(ctx, &found[i])
		switch {
		case err == nil:
		case postgres.IsOperational(err):
			return fmt.Errorf("store offer of %s: %w", name, err)
		case errors.Is(err, context.DeadlineExceeded):
			logger.WithError(err).Error("Scraper timed out while storing offers")
			metrics.ScrapeRuns.WithLabelValues(name, "error").Inc()
			return nil
		default:
			logger.WithError(err).WithField("title", found[i].Title).Error("Could not store offer")
			continue
		}
		if isNew {
			created++
		}
	}
	metrics.OffersNew.WithLabelValues(name).Add(float64(created))
	metrics.ScrapeRuns.WithLabelValues(name, "ok").Inc()

	logger.WithFields(log.Fields{"offers": len(found), "new": created}).Info("Scraper run stored")
	return nil
}
