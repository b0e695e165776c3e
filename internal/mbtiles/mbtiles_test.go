package mbtiles

import (
	"bytes"
	"compress/gzip"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/MeKo-Tech/pinmap/internal/tile"
	"github.com/paulmach/orb"
)

func testMetadata() Metadata {
	return Metadata{
		Name:        "Pin map",
		Format:      "png",
		Description: "Visited regions",
		Type:        "overlay",
		Version:     "1.0",
		Bounds:      orb.Bound{Min: orb.Point{-180, -85.0511}, Max: orb.Point{180, 85.0511}},
		Center:      orb.Point{10, 50},
		CenterZoom:  2,
		MinZoom:     0,
		MaxZoom:     3,
		Theme:       "dark",
		VisitedOnly: true,
	}
}

func TestMetadataRowsRoundTrip(t *testing.T) {
	m := testMetadata()
	got := ParseMetadata(m.Rows())
	if got != m {
		t.Errorf("ParseMetadata(Rows()) = %+v, want %+v", got, m)
	}

	rows := Metadata{Name: "x"}.Rows()
	if rows["minzoom"] != "0" || rows["maxzoom"] != "0" {
		t.Errorf("zoom rows missing: %v", rows)
	}
	if _, ok := rows["bounds"]; ok {
		t.Error("empty bounds should be omitted")
	}
}

func TestParseMetadataIgnoresMalformed(t *testing.T) {
	m := ParseMetadata(map[string]string{"bounds": "1,2,x,4", "center": "1,2", "minzoom": "z"})
	if m.Bounds != (orb.Bound{}) || m.Center != (orb.Point{}) || m.MinZoom != 0 {
		t.Errorf("unexpected %+v", m)
	}
}

func TestWriteAndReadTiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins.mbtiles")

	w, err := Create(path, testMetadata())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tiles := tile.TilesInBBox(tile.WorldBBox, 0, 2)
	for _, c := range tiles {
		if err := w.Put(c, []byte("png:"+c.String())); err != nil {
			t.Fatalf("Put(%s) error = %v", c, err)
		}
	}
	if err := w.Put(tile.Coords{Z: 1, X: 5}, nil); err == nil {
		t.Error("expected error for out-of-range tile")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.Written() != len(tiles) {
		t.Errorf("Written() = %d, want %d", w.Written(), len(tiles))
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	n, err := r.Count()
	if err != nil || n != len(tiles) {
		t.Fatalf("Count() = %d, %v; want %d", n, err, len(tiles))
	}
	for _, c := range tiles {
		data, err := r.Get(c)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", c, err)
		}
		if string(data) != "png:"+c.String() {
			t.Errorf("Get(%s) = %q", c, data)
		}
	}

	_, err = r.Get(tile.Coords{Z: 3, X: 1, Y: 1})
	if !errors.Is(err, ErrTileNotFound) {
		t.Errorf("missing tile error = %v, want ErrTileNotFound", err)
	}

	meta, err := r.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta != testMetadata() {
		t.Errorf("Metadata() = %+v", meta)
	}
}

func TestTMSRowIsFlipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flip.mbtiles")
	w, err := Create(path, Metadata{Format: "png"})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Put(tile.Coords{Z: 2, X: 1, Y: 0}, []byte("north")); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	var row int
	if err := w.db.QueryRow("SELECT tile_row FROM tiles WHERE zoom_level=2 AND tile_column=1").Scan(&row); err != nil {
		t.Fatal(err)
	}
	if row != 3 {
		t.Errorf("tile_row = %d, want 3", row)
	}
	w.Close()
}

func TestReaderInflatesGzipTiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gz.mbtiles")
	w, err := Create(path, Metadata{Format: "png"})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("inflated"))
	gw.Close()

	c := tile.Coords{Z: 1, X: 1, Y: 1}
	if err := w.Put(c, buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, err := r.Get(c)
	if err != nil || string(data) != "inflated" {
		t.Errorf("Get() = %q, %v", data, err)
	}
}

func TestConcurrentPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.mbtiles")
	w, err := Create(path, Metadata{Format: "png", MaxZoom: 6})
	if err != nil {
		t.Fatal(err)
	}

	tiles := tile.TilesInBBox(tile.WorldBBox, 5, 5)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for j := offset; j < len(tiles); j += 4 {
				if err := w.Put(tiles[j], []byte{byte(j)}); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Written() != len(tiles) {
		t.Errorf("Written() = %d, want %d", w.Written(), len(tiles))
	}
}

func TestOpenRejectsNonMBTiles(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mbtiles")); err == nil {
		t.Error("expected error for file without tiles table")
	}
}
