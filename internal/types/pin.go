package types

import (
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Pin is a user-placed marker with video metadata.
type Pin struct {
	ID         string  `json:"id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Title      string  `json:"title"`
	VideoLink  string  `json:"videoLink"`
	Date       string  `json:"date"`
	Emoji      string  `json:"emoji"`
	FlagCode   string  `json:"flagCode"`
	LocationID string  `json:"locationId"`
}

// Point returns the pin location as an orb point (lon, lat).
func (p Pin) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// NewPinID derives a pin id from a timestamp (milliseconds since epoch).
func NewPinID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DefaultEmoji is used for new pins.
const DefaultEmoji = "📍"
