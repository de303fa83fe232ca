// service.go holds the offer identity rules and the upsert pipeline.
package offers

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Store is the persistence the offer service needs.
type Store interface {
	FindCandidates(ctx context.Context, key Key, title string, validTo *time.Time) ([]Offer, error)
	Insert(ctx context.Context, o *Offer) error
	Touch(ctx context.Context, id int64, now time.Time) error
	Update(ctx context.Context, o *Offer) error
}

// Enricher attaches a game to a new offer. It must not fail the upsert.
type Enricher interface {
	Enrich(ctx context.Context, o *Offer)
}

// Service keeps a single row per observed promotion.
type Service struct {
	store    Store
	enricher Enricher
	now      func() time.Time
}

// NewService creates the offer service. A nil enricher disables enrichment.
func NewService(store Store, enricher Enricher) *Service {
	return &Service{store: store, enricher: enricher, now: time.Now}
}

// FindOffer returns the stored offer the fresh observation belongs to, or nil.
// Among several candidates an exact valid_to match wins, otherwise the newest.
func (s *Service) FindOffer(ctx context.Context, fresh *Offer) (*Offer, error) {
	candidates, err := s.store.FindCandidates(ctx, fresh.KeyOf(), fresh.Title, fresh.ValidTo)
	if err != nil {
		return nil, err
	}
	return choose(candidates, fresh), nil
}

func choose(candidates []Offer, fresh *Offer) *Offer {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return &candidates[0]
	}

	for i := range candidates {
		c := &candidates[i]
		if sameTime(c.ValidTo, fresh.ValidTo) {
			return c
		}
	}

	newest := &candidates[0]
	for i := range candidates {
		if candidates[i].ID > newest.ID {
			newest = &candidates[i]
		}
	}
	log.WithFields(log.Fields{
		"title":      fresh.Title,
		"stream":     fresh.KeyOf().String(),
		"candidates": len(candidates),
		"chosen":     newest.ID,
	}).Warn("Several stored offers match, using the newest")
	return newest
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Upsert stores a freshly scraped offer. A new offer is enriched and inserted;
// a known one gets the fresh fields merged in and its seen_last moved to now.
// It reports whether a new row was created.
func (s *Service) Upsert(ctx context.Context, fresh *Offer) (bool, error) {
	now := s.now().UTC()

	existing, err := s.FindOffer(ctx, fresh)
	if err != nil {
		return false, err
	}

	if existing == nil {
		fresh.SeenFirst = now
		fresh.SeenLast = now
		if s.enricher != nil {
			s.enricher.Enrich(ctx, fresh)
		}
		if err := s.store.Insert(ctx, fresh); err != nil {
			return false, err
		}
		log.WithFields(log.Fields{
			"offer":  fresh.ID,
			"title":  fresh.Title,
			"stream": fresh.KeyOf().String(),
		}).Info("New offer")
		return true, nil
	}

	before := *existing
	existing.Merge(fresh)
	if changed(&before, existing) {
		if err := s.store.Update(ctx, existing); err != nil {
			return false, err
		}
	}
	if err := s.store.Touch(ctx, existing.ID, now); err != nil {
		return false, err
	}
	existing.SeenLast = now
	*fresh = *existing
	return false, nil
}

func changed(a, b *Offer) bool {
	if a.Source != b.Source || a.Type != b.Type || a.Duration != b.Duration ||
		a.Category != b.Category || a.Title != b.Title || a.ProbableGameName != b.ProbableGameName ||
		a.URL != b.URL || a.ImgURL != b.ImgURL {
		return true
	}
	if !sameTime(a.ValidFrom, b.ValidFrom) || !sameTime(a.ValidTo, b.ValidTo) {
		return true
	}
	if (a.GameID == nil) != (b.GameID == nil) || (a.GameID != nil && *a.GameID != *b.GameID) {
		return true
	}
	if len(a.RawText) != len(b.RawText) {
		return true
	}
	for k, v := range a.RawText {
		if b.RawText[k] != v {
			return true
		}
	}
	return false
}
