package layout

import "tmscal/internal/model"

// Overlaps reports whether a and b share at least one calendar day. It is
// symmetric and only decides whether two events may share a track.
func Overlaps(a, b model.ScheduleEvent) bool {
	switch sa := a.Span.(type) {
	case model.Range:
		switch sb := b.Span.(type) {
		case model.Range:
			return rangesOverlap(sa, sb)
		case model.DateSet:
			return rangeHitsSet(sa, sb)
		}
	case model.DateSet:
		switch sb := b.Span.(type) {
		case model.Range:
			return rangeHitsSet(sb, sa)
		case model.DateSet:
			return setsIntersect(sa, sb)
		}
	}
	return false
}

// rangesOverlap is the O(1) interval test used for the common long-running
// course case.
func rangesOverlap(a, b model.Range) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}

func rangeHitsSet(r model.Range, s model.DateSet) bool {
	if !r.Valid() {
		return false
	}
	for _, d := range s.Dates {
		if d.Between(r.Start, r.End) {
			return true
		}
	}
	return false
}

func setsIntersect(a, b model.DateSet) bool {
	if len(a.Dates) > len(b.Dates) {
		a, b = b, a
	}
	seen := make(map[model.Day]struct{}, len(a.Dates))
	for _, d := range a.Dates {
		seen[d] = struct{}{}
	}
	for _, d := range b.Dates {
		if _, ok := seen[d]; ok {
			return true
		}
	}
	return false
}
