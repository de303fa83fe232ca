package offers

import "time"

const (
	outageWindow = 24 * time.Hour
	expiredGrace = time.Hour
)

// RealValidTo estimates when an offer actually ends from its advertised end
// and the last time it was seen on the site. Nil means the end is unknown.
func RealValidTo(seenLast time.Time, validTo *time.Time, now time.Time) *time.Time {
	seenLast = seenLast.UTC()
	if validTo == nil {
		if now.After(seenLast.Add(outageWindow)) {
			return &seenLast
		}
		return nil
	}

	end := validTo.UTC()
	switch {
	case end.After(seenLast.Add(expiredGrace)):
		if now.Before(seenLast.Add(outageWindow)) {
			return &end
		}
		return &seenLast
	case end.Before(seenLast):
		t := seenLast.Add(expiredGrace)
		return &t
	default:
		return &end
	}
}

// RealValidTo is the estimated end of o at now.
func (o *Offer) RealValidTo(now time.Time) *time.Time {
	return RealValidTo(o.SeenLast, o.ValidTo, now)
}

// Started reports whether the offer has begun at now.
func (o *Offer) Started(now time.Time) bool {
	return o.ValidFrom == nil || !o.ValidFrom.After(now)
}

// MaybeLive is the cheap part of IsActive that the store can evaluate in SQL.
func (o *Offer) MaybeLive(now time.Time) bool {
	if o.ValidTo == nil || !o.ValidTo.Before(now) {
		return true
	}
	return !o.SeenLast.Before(now.Add(-outageWindow))
}

// IsActive reports whether o can still be claimed at now.
// An unknown real end counts as not expired.
func (o *Offer) IsActive(now time.Time) bool {
	if !o.Started(now) || !o.MaybeLive(now) {
		return false
	}
	end := o.RealValidTo(now)
	return end == nil || end.After(now)
}

// FilterActive keeps the offers that are active at now, preserving order.
func FilterActive(list []Offer, now time.Time) []Offer {
	out := make([]Offer, 0, len(list))
	for _, o := range list {
		if o.IsActive(now) {
			out = append(out, o)
		}
	}
	return out
}
