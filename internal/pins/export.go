package pins

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Export is the downloadable backup document.
type Export struct {
	Pins       []types.Pin `json:"pins"`
	ExportedAt string      `json:"exportedAt"`
}

// ExportFilename is the suggested download name for an export.
const ExportFilename = "map_config.json"

// WriteExport writes an indented export document for list.
func WriteExport(w io.Writer, list []types.Pin, now time.Time) error {
	if list == nil {
		list = []types.Pin{}
	}
	doc := Export{Pins: list, ExportedAt: now.UTC().Format("2006-01-02T15:04:05.000Z")}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
