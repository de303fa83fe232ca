// Package enrichment links offers to canonical games using cached metadata,
// IGDB and the Steam store.
package enrichment

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/metrics"
)

// GameStore is the part of the game repository the resolver uses.
type GameStore interface {
	IgdbIDByName(ctx context.Context, name string) (int64, error)
	SteamIDByName(ctx context.Context, name string) (int64, error)
	GameByIgdbID(ctx context.Context, igdbID int64) (*games.Game, error)
	GameBySteamID(ctx context.Context, steamID int64) (*games.Game, error)
	SaveIgdbInfo(ctx context.Context, info *games.IgdbInfo) error
	SaveSteamInfo(ctx context.Context, info *games.SteamInfo) error
	CreateGame(ctx context.Context, g *games.Game) error
}

// IgdbProvider searches IGDB. Search returns 0 when nothing matches.
type IgdbProvider interface {
	Search(ctx context.Context, name string) (int64, error)
	Details(ctx context.Context, id int64) (*games.IgdbInfo, error)
}

// SteamProvider searches the Steam store. Search returns 0 when nothing matches.
type SteamProvider interface {
	Search(ctx context.Context, name string) (int64, error)
	Details(ctx context.Context, id int64) (*games.SteamInfo, error)
}

// Resolver attaches games to offers. A nil provider is skipped.
type Resolver struct {
	store GameStore
	igdb  IgdbProvider
	steam SteamProvider
}

// NewResolver creates the resolver.
func NewResolver(store GameStore, igdb IgdbProvider, steam SteamProvider) *Resolver {
	return &Resolver{store: store, igdb: igdb, steam: steam}
}

// Enrich sets o.GameID when a game can be found or created. Failures are
// logged and leave the offer without a game.
func (r *Resolver) Enrich(ctx context.Context, o *offers.Offer) {
	if o.GameID != nil || o.ProbableGameName == "" {
		return
	}
	logger := log.WithFields(log.Fields{
		"offer": o.ID,
		"name":  o.ProbableGameName,
	})

	gameID, err := r.resolve(ctx, o.ProbableGameName)
	if err != nil {
		logger.WithError(err).Warn("Game lookup failed")
		metrics.Enrichments.WithLabelValues("all", "error").Inc()
		return
	}
	if gameID == 0 {
		logger.Debug("No game found")
		metrics.Enrichments.WithLabelValues("all", "miss").Inc()
		return
	}
	o.GameID = &gameID
}

func (r *Resolver) resolve(ctx context.Context, name string) (int64, error) {
	igdbID := r.lookup(ctx, "igdb", name, r.store.IgdbIDByName, r.igdbSearch())
	if igdbID != 0 {
		g, err := r.store.GameByIgdbID(ctx, igdbID)
		if err == nil {
			return g.ID, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return 0, err
		}
	}

	steamID := r.lookup(ctx, "steam", name, r.store.SteamIDByName, r.steamSearch())
	if steamID != 0 {
		g, err := r.store.GameBySteamID(ctx, steamID)
		if err == nil {
			return g.ID, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return 0, err
		}
	}

	if igdbID == 0 && steamID == 0 {
		return 0, nil
	}
	return r.create(ctx, igdbID, steamID)
}

type searchFunc func(ctx context.Context, name string) (int64, error)

// lookup tries the local cache by exact name, then the provider search.
func (r *Resolver) lookup(ctx context.Context, provider, name string, local, remote searchFunc) int64 {
	id, err := local(ctx, name)
	if err == nil {
		metrics.Enrichments.WithLabelValues(provider, "cached").Inc()
		return id
	}
	if !errors.Is(err, common.ErrNotFound) {
		log.WithError(err).WithField("provider", provider).Warn("Local game info lookup failed")
	}
	if remote == nil {
		return 0
	}

	id, err = remote(ctx, name)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"provider": provider, "name": name}).Warn("Game search failed")
		metrics.Enrichments.WithLabelValues(provider, "error").Inc()
		return 0
	}
	if id != 0 {
		metrics.Enrichments.WithLabelValues(provider, "found").Inc()
	}
	return id
}

func (r *Resolver) igdbSearch() searchFunc {
	if r.igdb == nil {
		return nil
	}
	return r.igdb.Search
}

func (r *Resolver) steamSearch() searchFunc {
	if r.steam == nil {
		return nil
	}
	return r.steam.Search
}

// create fetches provider details, caches them and creates the game.
// A provider whose details cannot be fetched is left out of the game.
func (r *Resolver) create(ctx context.Context, igdbID, steamID int64) (int64, error) {
	var game games.Game

	if igdbID != 0 && r.igdb != nil {
		info, err := r.igdb.Details(ctx, igdbID)
		if err != nil {
			log.WithError(err).WithField("igdb_id", igdbID).Warn("IGDB details unavailable")
		} else if err := r.store.SaveIgdbInfo(ctx, info); err != nil {
			return 0, err
		} else {
			game.IgdbID = &info.ID
		}
	}

	if steamID != 0 && r.steam != nil {
		info, err := r.steam.Details(ctx, steamID)
		if err != nil {
			log.WithError(err).WithField("steam_id", steamID).Warn("Steam details unavailable")
		} else if err := r.store.SaveSteamInfo(ctx, info); err != nil {
			return 0, err
		} else {
			game.SteamID = &info.ID
		}
	}

	if game.IgdbID == nil && game.SteamID == nil {
		return 0, nil
	}
	if err := r.store.CreateGame(ctx, &game); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"game":     game.ID,
		"igdb_id":  igdbID,
		"steam_id": steamID,
	}).Info("New game")
	return game.ID, nil
}
