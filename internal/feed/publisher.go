package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
	"freeloot.dev/lootscraper/internal/metrics"
)

// OfferSource reads what the feeds show.
type OfferSource interface {
	Streams(ctx context.Context) ([]offers.Key, error)
	ReadActive(ctx context.Context, now time.Time) ([]offers.Offer, error)
	ReadActiveFor(ctx context.Context, key offers.Key, now time.Time) ([]offers.Offer, error)
}

// GameSource resolves the game linked to an offer.
type GameSource interface {
	Details(ctx context.Context, gameID int64) (*games.Details, error)
}

// Uploader copies one feed file to the public location.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// unsentSuffix marks a feed file whose last upload failed.
const unsentSuffix = ".unsent"

// Publisher regenerates the feed files and uploads the ones that changed.
// A feed whose upload failed is uploaded again on the next pass.
type Publisher struct {
	offers   OfferSource
	games    GameSource
	gen      *Generator
	dir      string
	uploader Uploader
	now      func() time.Time
}

// NewPublisher creates a publisher writing into dir. uploader may be nil.
func NewPublisher(offerSource OfferSource, gameSource GameSource, gen *Generator, dir string, uploader Uploader) *Publisher {
	return &Publisher{
		offers:   offerSource,
		games:    gameSource,
		gen:      gen,
		dir:      dir,
		uploader: uploader,
		now:      time.Now,
	}
}

// Publish writes one feed per stream and, when any of them changed, the combined feed.
func (p *Publisher) Publish(ctx context.Context) error {
	now := p.now().UTC()
	keys, err := p.offers.Streams(ctx)
	if err != nil {
		return err
	}
	details := map[int64]*games.Details{}

	anyChanged := false
	for _, key := range keys {
		list, err := p.offers.ReadActiveFor(ctx, key, now)
		if err != nil {
			return err
		}
		changed, err := p.write(ctx, &key, list, details)
		if err != nil {
			return err
		}
		anyChanged = anyChanged || changed
	}

	combined := filepath.Join(p.dir, p.gen.FileName(nil))
	if !anyChanged && fileExists(combined) && !fileExists(combined+unsentSuffix) {
		return nil
	}
	list, err := p.offers.ReadActive(ctx, now)
	if err != nil {
		return err
	}
	_, err = p.write(ctx, nil, list, details)
	return err
}

// write renders a feed and stores it if its content differs from the file on disk.
// It reports whether the file changed.
func (p *Publisher) write(ctx context.Context, key *offers.Key, list []offers.Offer, details map[int64]*games.Details) (bool, error) {
	items := make([]Item, 0, len(list))
	for _, o := range list {
		d, err := p.details(ctx, o.GameID, details)
		if err != nil {
			return false, err
		}
		items = append(items, Item{Offer: o, Game: d})
	}

	data, err := p.gen.Build(key, items)
	if err != nil {
		return false, err
	}

	name := p.gen.FileName(key)
	path := filepath.Join(p.dir, name)
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		if fileExists(path + unsentSuffix) {
			p.upload(ctx, path, data)
		}
		return false, nil
	}
	if err := writeAtomic(path, data); err != nil {
		return false, err
	}
	metrics.FeedsPublished.Inc()
	log.WithFields(log.Fields{"file": name, "entries": len(items)}).Info("Feed updated")

	p.upload(ctx, path, data)
	return true, nil
}

// upload copies a feed file and keeps the unsent marker in line with the outcome.
func (p *Publisher) upload(ctx context.Context, path string, data []byte) {
	if p.uploader == nil {
		return
	}
	name := filepath.Base(path)
	marker := path + unsentSuffix
	if err := p.uploader.Upload(ctx, name, data); err != nil {
		log.WithError(err).WithField("file", name).Warn("Feed upload failed, retrying next pass")
		if err := os.WriteFile(marker, nil, 0o644); err != nil {
			log.WithError(err).WithField("file", name).Error("Could not mark feed as unsent")
		}
		return
	}
	if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("file", name).Warn("Could not clear unsent marker")
	}
}

func (p *Publisher) details(ctx context.Context, gameID *int64, cache map[int64]*games.Details) (*games.Details, error) {
	if gameID == nil || p.games == nil {
		return nil, nil
	}
	if d, ok := cache[*gameID]; ok {
		return d, nil
	}
	d, err := p.games.Details(ctx, *gameID)
	if errors.Is(err, common.ErrNotFound) {
		d, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", *gameID, err)
	}
	cache[*gameID] = d
	return d, nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create feed directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
