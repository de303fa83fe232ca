// Package app wires the components together.
// app.go creates the pool, the repositories, the enrichment clients, the
// scheduler, the feed publisher and the Telegram bot from the configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"freeloot.dev/lootscraper/internal/bot"
	"freeloot.dev/lootscraper/internal/cleanup"
	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/config"
	"freeloot.dev/lootscraper/internal/db/postgres"
	"freeloot.dev/lootscraper/internal/features/announcements"
	"freeloot.dev/lootscraper/internal/features/chats"
	"freeloot.dev/lootscraper/internal/features/enrichment"
	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/feed"
	"freeloot.dev/lootscraper/internal/jobs"
	"freeloot.dev/lootscraper/internal/logging"
	"freeloot.dev/lootscraper/internal/metrics"
	"freeloot.dev/lootscraper/internal/scraper"
)

// Steam asks for about one request per second from crawlers.
const steamRequestsPerSecond = 1

// App holds all components of the application.
type App struct {
	cfg       *config.Config
	DB        *pgxpool.Pool
	Scheduler *jobs.Scheduler
	// Bot is nil when actions.telegram_bot is off.
	Bot     *bot.Bot
	Cleanup *cleanup.Tools

	queue *jobs.RunQueue
}

// New creates the application. hook receives the bot as the sender of
// critical log records once the bot exists.
// The order matters: components depend on each other.
func New(ctx context.Context, cfg *config.Config, hook *logging.TelegramHook) (*App, error) {
	// === 1. Database ===
	pool, err := postgres.NewPool(ctx, postgres.Options{
		URL:      cfg.Common.DatabaseURL,
		MaxConns: cfg.Expert.DBMaxConns,
		MinConns: cfg.Expert.DBMinConns,
		Echo:     cfg.Expert.DBEcho,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := postgres.Migrate(ctx, pool, postgres.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// === 2. Repositories ===
	offerRepo := offers.NewRepository(pool)
	gameRepo := games.NewRepository(pool)
	chatRepo := chats.NewRepository(pool)
	announcementRepo := announcements.NewRepository(pool)

	// === 3. Enrichment ===
	var (
		enricher offers.Enricher
		igdb     enrichment.IgdbProvider
		steam    enrichment.SteamProvider
	)
	if cfg.Actions.ScrapeInfo {
		igdb, steam = newProviders(ctx, cfg)
		enricher = enrichment.NewResolver(gameRepo, igdb, steam)
	}
	offerService := offers.NewService(offerRepo, enricher)

	// === 4. Scrapers ===
	enabled := scraper.Enabled(cfg)
	streams := streamsOf(enabled)

	a := &App{
		cfg: cfg,
		DB:  pool,
		Cleanup: cleanup.New(cleanup.Options{
			Games:         gameRepo,
			Offers:        offerRepo,
			Subscriptions: chatRepo,
			Enricher:      enricher,
			Igdb:          igdb,
			Steam:         steam,
			Streams:       streams,
		}),
	}

	// === 5. Telegram bot ===
	if cfg.Actions.TelegramBot {
		api, err := newBotAPI(cfg.Telegram)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.queue = jobs.NewRunQueue()
		a.Bot = bot.New(bot.Options{
			API:           api,
			Config:        cfg.Telegram,
			Offers:        offerRepo,
			Games:         gameRepo,
			Chats:         chatRepo,
			Announcements: announcementRepo,
			Streams:       streams,
			Signals:       a.queue,
			BotName:       api.Self.UserName,
		})
		if hook != nil {
			hook.SetSender(a.Bot.SendDeveloperMessage)
		}
	}

	// === 6. Feeds ===
	var publisher jobs.Publisher
	if cfg.Actions.GenerateFeed {
		var uploader feed.Uploader
		if cfg.Actions.UploadToFTP {
			uploader = feed.NewFTPUploader(cfg.FTP.Host, cfg.FTP.User, cfg.FTP.Password, cfg.WebTimeout())
		}
		gen := feed.NewGenerator(cfg.Feed, cfg.Common.FeedFilePrefix)
		publisher = feed.NewPublisher(offerRepo, gameRepo, gen, cfg.DataDir, uploader)
	}

	// === 7. Scheduler ===
	screenshots := cfg.DataPath("screenshots")
	scheduler, err := jobs.NewScheduler(jobs.Options{
		Scrapers: enabled,
		Open: func(ctx context.Context) (jobs.Browser, error) {
			b, err := scraper.NewBrowser(ctx, scraper.BrowserOptions{
				Headless:      cfg.Expert.BrowserHeadless,
				ScreenshotDir: screenshots,
			})
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		Sink:            offerService,
		Publisher:       publisher,
		Queue:           a.queue,
		WaitBetweenRuns: cfg.WaitBetweenRuns(),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	a.Scheduler = scheduler

	log.WithFields(log.Fields{
		"scrapers":      len(enabled),
		"scrape_info":   cfg.Actions.ScrapeInfo,
		"generate_feed": cfg.Actions.GenerateFeed,
		"upload_to_ftp": cfg.Actions.GenerateFeed && cfg.Actions.UploadToFTP,
		"telegram_bot":  a.Bot != nil,
	}).Info("Application initialised")
	return a, nil
}

// Run starts the scheduler, the bot and the metrics endpoint and blocks until
// ctx is cancelled or, in batch mode, until the single pass has been delivered.
// Only fatal errors are returned.
func (a *App) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := a.cfg.Expert.MetricsAddress; addr != "" {
		go func() {
			if err := metrics.Serve(gctx, addr); err != nil {
				log.WithError(err).Error("Metrics endpoint failed")
			}
		}()
	}

	if a.Bot != nil {
		g.Go(func() error {
			err := a.Bot.Start(gctx)
			if errors.Is(err, common.ErrPollerConflict) {
				// scraping and feeds go on without the bot
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		if a.queue != nil {
			defer a.queue.Close()
		}
		return a.Scheduler.Run(gctx)
	})

	return g.Wait()
}

// Close releases the database pool.
func (a *App) Close() {
	a.DB.Close()
}

// newProviders creates the clients of the info sources that are enabled.
// A disabled source stays a nil interface.
func newProviders(ctx context.Context, cfg *config.Config) (igdb enrichment.IgdbProvider, steam enrichment.SteamProvider) {
	if cfg.InfoSourceEnabled(common.InfoSourceIGDB) {
		if cfg.IGDB.ClientID == "" || cfg.IGDB.ClientSecret == "" {
			log.Warn("IGDB is enabled but client_id or client_secret is missing, skipping it")
		} else {
			igdb = enrichment.NewIGDBClient(ctx, enrichment.IGDBOptions{
				ClientID:     cfg.IGDB.ClientID,
				ClientSecret: cfg.IGDB.ClientSecret,
				Timeout:      cfg.WebTimeout(),
			})
		}
	}
	if cfg.InfoSourceEnabled(common.InfoSourceSteam) {
		steam = enrichment.NewSteamClient(enrichment.SteamOptions{
			Timeout:           cfg.WebTimeout(),
			RequestsPerSecond: steamRequestsPerSecond,
		})
	}
	return igdb, steam
}

// newBotAPI authorises against Telegram and routes the library log into logrus.
func newBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	libLog := log.New()
	libLog.SetOutput(log.StandardLogger().Out)
	libLog.SetFormatter(log.StandardLogger().Formatter)
	libLog.SetLevel(level)
	if err := tgbotapi.SetLogger(libLog.WithField("component", "telegram")); err != nil {
		return nil, fmt.Errorf("set telegram logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram api: %w", err)
	}
	api.Debug = level >= log.DebugLevel
	log.Infof("Authorised as @%s", api.Self.UserName)
	return api, nil
}

// streamsOf returns the distinct streams of the scrapers.
func streamsOf(list []scraper.Scraper) []offers.Key {
	seen := make(map[offers.Key]bool, len(list))
	var out []offers.Key
	for _, s := range list {
		k := s.Key()
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
