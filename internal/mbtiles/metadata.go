// Package mbtiles stores rendered pin-map tiles in an MBTiles (sqlite) file.
package mbtiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Metadata is the MBTiles metadata table.
type Metadata struct {
	Name        string
	Format      string // png
	Attribution string
	Description string
	Type        string // baselayer or overlay
	Version     string
	Bounds      orb.Bound
	Center      orb.Point
	CenterZoom  int
	MinZoom     int
	MaxZoom     int
	Theme       string // palette the tiles were rendered with
	VisitedOnly bool
}

// Rows converts metadata to name/value rows. Zero values are omitted,
// except minzoom and maxzoom which are always present.
func (m Metadata) Rows() map[string]string {
	rows := map[string]string{
		"minzoom": strconv.Itoa(m.MinZoom),
		"maxzoom": strconv.Itoa(m.MaxZoom),
	}
	set := func(k, v string) {
		if v != "" {
			rows[k] = v
		}
	}
	set("name", m.Name)
	set("format", m.Format)
	set("attribution", m.Attribution)
	set("description", m.Description)
	set("type", m.Type)
	set("version", m.Version)
	set("pinmap_theme", m.Theme)
	if m.VisitedOnly {
		rows["pinmap_visited_only"] = "true"
	}
	if m.Bounds != (orb.Bound{}) {
		rows["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds.Min.Lon(), m.Bounds.Min.Lat(), m.Bounds.Max.Lon(), m.Bounds.Max.Lat())
	}
	if m.Center != (orb.Point{}) || m.CenterZoom != 0 {
		rows["center"] = fmt.Sprintf("%.6f,%.6f,%d", m.Center.Lon(), m.Center.Lat(), m.CenterZoom)
	}
	return rows
}

// ParseMetadata is the inverse of Rows. Malformed numbers are ignored.
func ParseMetadata(rows map[string]string) Metadata {
	m := Metadata{
		Name:        rows["name"],
		Format:      rows["format"],
		Attribution: rows["attribution"],
		Description: rows["description"],
		Type:        rows["type"],
		Version:     rows["version"],
		Theme:       rows["pinmap_theme"],
		VisitedOnly: rows["pinmap_visited_only"] == "true",
	}
	m.MinZoom, _ = strconv.Atoi(rows["minzoom"])
	m.MaxZoom, _ = strconv.Atoi(rows["maxzoom"])

	if f, ok := floats(rows["bounds"], 4); ok {
		m.Bounds = orb.Bound{Min: orb.Point{f[0], f[1]}, Max: orb.Point{f[2], f[3]}}
	}
	if f, ok := floats(rows["center"], 3); ok {
		m.Center = orb.Point{f[0], f[1]}
		m.CenterZoom = int(f[2])
	}
	return m
}

func floats(s string, n int) ([]float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
