package geodata

import (
	"strings"
	"unicode"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Decomposition replaces a country with its subdivisions.
type Decomposition struct {
	Country string `mapstructure:"country" json:"country"` // id of the country region to drop, e.g. "USA"
	ISO2    string `mapstructure:"iso2" json:"iso2"`       // key prefix for subdivision ids, e.g. "US"
	Label   string `mapstructure:"label" json:"label"`      // display suffix, e.g. "USA"
}

// SubdivisionSet is the subdivision regions of one decomposed country.
type SubdivisionSet struct {
	Decomposition Decomposition
	Regions       []types.Region
}

// MergeOptions control how country and subdivision sets are combined.
type MergeOptions struct {
	Exclude []string          // country ids to drop
	Renames map[string]string // display name replacements, old -> new
}

// DefaultMergeOptions drops Antarctica and fixes the Eswatini name.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		Exclude: []string{"ATA"},
		Renames: map[string]string{"Swaziland": "Eswatini"},
	}
}

// USDecomposition splits the United States into states.
var USDecomposition = Decomposition{Country: "USA", ISO2: "US", Label: "USA"}

// SubdivisionID builds the key of a subdivision: "<ISO2>_<NameWithoutSpaces>".
func SubdivisionID(iso2, name string) string {
	return iso2 + "_" + strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}

// Merge drops excluded and decomposed countries, applies renames and
// appends every subdivision set after the countries. Country order and
// subdivision order are preserved. Inputs are not modified.
func Merge(opts MergeOptions, countries []types.Region, sets ...SubdivisionSet) []types.Region {
	drop := make(map[string]bool, len(opts.Exclude)+len(sets))
	for _, id := range opts.Exclude {
		drop[id] = true
	}
	for _, s := range sets {
		if s.Decomposition.Country != "" {
			drop[s.Decomposition.Country] = true
		}
	}

	out := make([]types.Region, 0, len(countries))
	for _, r := range countries {
		if drop[r.ID] {
			continue
		}
		if n, ok := opts.Renames[r.Name]; ok {
			r.Name = n
		}
		r.Kind = types.RegionCountry
		out = append(out, r)
	}

	for _, s := range sets {
		d := s.Decomposition
		for _, r := range s.Regions {
			name := r.Name
			if n, ok := opts.Renames[name]; ok {
				name = n
			}
			r.ID = SubdivisionID(d.ISO2, name)
			if d.Label != "" {
				r.Name = name + " (" + d.Label + ")"
			} else {
				r.Name = name
			}
			r.Kind = types.RegionSubdivision
			out = append(out, r)
		}
	}
	return out
}
