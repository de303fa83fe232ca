// Package cleanup holds the one-shot maintenance tools started with --cleanup.
package cleanup

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
)

// GameStore removes game rows nothing points at and rewrites the cached metadata.
type GameStore interface {
	DeleteUnreferencedGames(ctx context.Context) (int64, error)
	DeleteUnreferencedInfo(ctx context.Context) (int64, error)
	IgdbInfoIDs(ctx context.Context) ([]int64, error)
	SteamInfoIDs(ctx context.Context) ([]int64, error)
	SaveIgdbInfo(ctx context.Context, info *games.IgdbInfo) error
	SaveSteamInfo(ctx context.Context, info *games.SteamInfo) error
}

// IgdbSource fetches current IGDB metadata.
type IgdbSource interface {
	Details(ctx context.Context, id int64) (*games.IgdbInfo, error)
}

// SteamSource fetches current Steam metadata.
type SteamSource interface {
	Details(ctx context.Context, id int64) (*games.SteamInfo, error)
}

// OfferStore lists and links offers that have no game yet.
type OfferStore interface {
	WithoutGame(ctx context.Context) ([]offers.Offer, error)
	SetGame(ctx context.Context, offerID, gameID int64) error
}

// SubscriptionStore counts subscriptions per stream.
type SubscriptionStore interface {
	SubscribedKeys(ctx context.Context) (map[offers.Key]int, error)
}

// Options are the collaborators of the tools. Enricher may be nil, then
// offers without a game are left alone. A nil Igdb or Steam source leaves
// the stored records of that provider as they are.
type Options struct {
	Games         GameStore
	Offers        OfferStore
	Subscriptions SubscriptionStore
	Enricher      offers.Enricher
	Igdb          IgdbSource
	Steam         SteamSource
	// Streams are the streams the enabled scrapers produce.
	Streams []offers.Key
}

// Report sums up a cleanup run.
type Report struct {
	GamesDeleted   int64
	InfosDeleted   int64
	InfosRefreshed int
	InfosFailed    int
	OffersChecked  int
	OffersEnriched int
	// Orphaned are subscribed streams no enabled scraper produces, with their subscriber count.
	Orphaned map[offers.Key]int
}

type Tools struct {
	opts Options
}

func New(opts Options) *Tools {
	return &Tools{opts: opts}
}

// Run executes every tool in order and stops at the first storage error.
func (t *Tools) Run(ctx context.Context) (*Report, error) {
	r := &Report{}

	var err error
	if r.GamesDeleted, err = t.opts.Games.DeleteUnreferencedGames(ctx); err != nil {
		return r, fmt.Errorf("delete unreferenced games: %w", err)
	}
	log.WithField("deleted", r.GamesDeleted).Info("Unreferenced games removed")

	if r.InfosDeleted, err = t.opts.Games.DeleteUnreferencedInfo(ctx); err != nil {
		return r, fmt.Errorf("delete unreferenced game info: %w", err)
	}
	log.WithField("deleted", r.InfosDeleted).Info("Unreferenced game info removed")

	if err := t.refreshInfo(ctx, r); err != nil {
		return r, err
	}

	if t.opts.Enricher != nil {
		if err := t.enrichMissing(ctx, r); err != nil {
			return r, err
		}
	} else {
		log.Info("Enrichment disabled, offers without a game are kept as they are")
	}

	if r.Orphaned, err = t.orphanedSubscriptions(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// refreshInfo fetches every stored IGDB and Steam record again so ratings and
// prices stay current. A record the provider cannot deliver keeps its old data.
func (t *Tools) refreshInfo(ctx context.Context, r *Report) error {
	if t.opts.Igdb != nil {
		ids, err := t.opts.Games.IgdbInfoIDs(ctx)
		if err != nil {
			return fmt.Errorf("list igdb info: %w", err)
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			info, err := t.opts.Igdb.Details(ctx, id)
			if err != nil {
				if ferr := t.refreshFailed(ctx, r, "igdb", id, err); ferr != nil {
					return ferr
				}
				continue
			}
			if err := t.opts.Games.SaveIgdbInfo(ctx, info); err != nil {
				return err
			}
			r.InfosRefreshed++
		}
	}

	if t.opts.Steam != nil {
		ids, err := t.opts.Games.SteamInfoIDs(ctx)
		if err != nil {
			return fmt.Errorf("list steam info: %w", err)
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			info, err := t.opts.Steam.Details(ctx, id)
			if err != nil {
				if ferr := t.refreshFailed(ctx, r, "steam", id, err); ferr != nil {
					return ferr
				}
				continue
			}
			if err := t.opts.Games.SaveSteamInfo(ctx, info); err != nil {
				return err
			}
			r.InfosRefreshed++
		}
	}

	log.WithFields(log.Fields{
		"refreshed": r.InfosRefreshed,
		"failed":    r.InfosFailed,
	}).Info("Game info refreshed")
	return nil
}

func (t *Tools) refreshFailed(ctx context.Context, r *Report, provider string, id int64, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.InfosFailed++
	log.WithError(err).WithFields(log.Fields{"provider": provider, "id": id}).Warn("Could not refresh game info")
	return nil
}

// enrichMissing looks up a game for every offer that has none.
func (t *Tools) enrichMissing(ctx context.Context, r *Report) error {
	list, err := t.opts.Offers.WithoutGame(ctx)
	if err != nil {
		return fmt.Errorf("list offers without game: %w", err)
	}

	for i := range list {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o := &list[i]
		r.OffersChecked++

		t.opts.Enricher.Enrich(ctx, o)
		if o.GameID == nil {
			continue
		}
		if err := t.opts.Offers.SetGame(ctx, o.ID, *o.GameID); err != nil {
			return fmt.Errorf("link offer %d: %w", o.ID, err)
		}
		r.OffersEnriched++
	}

	log.WithFields(log.Fields{
		"checked":  r.OffersChecked,
		"enriched": r.OffersEnriched,
	}).Info("Offers without a game looked up again")
	return nil
}

// orphanedSubscriptions reports subscriptions no enabled scraper feeds. They are kept.
func (t *Tools) orphanedSubscriptions(ctx context.Context) (map[offers.Key]int, error) {
	counts, err := t.opts.Subscriptions.SubscribedKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}

	covered := make(map[offers.Key]bool, len(t.opts.Streams))
	for _, k := range t.opts.Streams {
		covered[k] = true
	}

	orphaned := make(map[offers.Key]int)
	for k, n := range counts {
		if !covered[k] {
			orphaned[k] = n
		}
	}

	keys := make([]offers.Key, 0, len(orphaned))
	for k := range orphaned {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		log.WithFields(log.Fields{
			"stream":      k.String(),
			"subscribers": orphaned[k],
		}).Warn("Subscription without an enabled scraper")
	}
	log.WithField("streams", len(orphaned)).Info("Subscription check finished")
	return orphaned, nil
}
