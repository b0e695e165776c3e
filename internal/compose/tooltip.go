package compose

import (
	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Tooltip is the hover card content.
type Tooltip struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Date     string `json:"date,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	FlagURL  string `json:"flagUrl,omitempty"`
}

// RegionTooltip describes a region; the flag only shows once visited.
func RegionTooltip(r types.Region, visited bool) Tooltip {
	tt := Tooltip{Title: r.Name}
	if visited {
		tt.Title += " ✅"
		tt.FlagURL = pins.FlagURL(pins.ISO3ToISO2(r.ID))
	}
	return tt
}

// PinTooltip describes a pin with its video preview.
func PinTooltip(p types.Pin) Tooltip {
	return Tooltip{
		Title:    p.Title,
		Subtitle: "Stream",
		Date:     p.Date,
		ImageURL: pins.ThumbnailURL(p.VideoLink, false),
		FlagURL:  pins.FlagURL(p.FlagCode),
	}
}

// TooltipFor resolves the tooltip for the current hover target. A hovered
// pin wins over a hovered region. No tooltip shows while dragging.
func TooltipFor(ui UIState, regions types.RegionSet, list []types.Pin) (Tooltip, bool) {
	if ui.Dragging {
		return Tooltip{}, false
	}
	if ui.HoveredPin != "" {
		for _, p := range list {
			if p.ID == ui.HoveredPin {
				return PinTooltip(p), true
			}
		}
	}
	if ui.HoveredRegion != "" {
		if r, ok := regions.ByID(ui.HoveredRegion); ok {
			return RegionTooltip(r, pins.Visited(list)[r.ID]), true
		}
	}
	return Tooltip{}, false
}
