// Package metrics exposes Prometheus counters for scraping, enrichment and delivery.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	ScrapeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lootscraper_scrape_runs_total",
		Help: "Scraper runs by scraper and outcome",
	}, []string{"scraper", "outcome"})

	ScrapeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lootscraper_scrape_duration_seconds",
		Help:    "Duration of a single scraper run",
		Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"scraper"})

	OffersFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lootscraper_offers_found_total",
		Help: "Offers returned by scrapers after filtering",
	}, []string{"scraper"})

	OffersNew = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lootscraper_offers_new_total",
		Help: "Offers that were not stored before",
	}, []string{"scraper"})

	Enrichments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lootscraper_enrichments_total",
		Help: "Game lookups by provider and result",
	}, []string{"provider", "result"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lootscraper_telegram_messages_sent_total",
		Help: "Telegram messages delivered",
	})

	MessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lootscraper_telegram_messages_failed_total",
		Help: "Telegram messages that could not be delivered",
	}, []string{"reason"})

	FeedsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lootscraper_feeds_written_total",
		Help: "Feed files written because their content changed",
	})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("address", addr).Info("Metrics endpoint started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
