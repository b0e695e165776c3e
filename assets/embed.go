package assets

import _ "embed"

// FallbackPins is the pin collection used when no store or remote source
// can be read.
//
// NOTE: go:embed patterns must be relative to this file, so the JSON lives
// next to it in the repo-root assets/ directory.
//
//go:embed fallback_pins.json
var FallbackPins []byte
