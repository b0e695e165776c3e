package pins

import (
	"sort"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// MissingDate sorts undated pins as if they were in the far future.
const MissingDate = "9999-12-31"

const dateLayout = "2006-01-02"

// Group is the pins of one continent.
type Group struct {
	Continent string      `json:"continent"`
	Pins      []types.Pin `json:"pins"`
}

// SortKey returns the time a pin sorts by. Missing and malformed dates sort
// as MissingDate.
func SortKey(p types.Pin) time.Time {
	d := p.Date
	if d == "" {
		d = MissingDate
	}
	t, err := time.Parse(dateLayout, d)
	if err != nil {
		if len(d) > len(dateLayout) {
			if t, err = time.Parse(dateLayout, d[:len(dateLayout)]); err == nil {
				return t
			}
		}
		t, _ = time.Parse(dateLayout, MissingDate)
	}
	return t
}

// GroupByContinent buckets pins by the continent of their flag code and
// sorts each bucket by date (newest first when desc). Groups follow
// ContinentOrder; empty groups are omitted.
func GroupByContinent(pins []types.Pin, desc bool) []Group {
	buckets := make(map[string][]types.Pin)
	for _, p := range pins {
		c := Continent(p.FlagCode)
		buckets[c] = append(buckets[c], p)
	}

	groups := make([]Group, 0, len(buckets))
	for _, c := range ContinentOrder {
		list, ok := buckets[c]
		if !ok {
			continue
		}
		sort.SliceStable(list, func(i, j int) bool {
			a, b := SortKey(list[i]), SortKey(list[j])
			if desc {
				return a.After(b)
			}
			return a.Before(b)
		})
		groups = append(groups, Group{Continent: c, Pins: list})
	}
	return groups
}
