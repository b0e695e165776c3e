package geodata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Source produces a list of regions.
type Source interface {
	Load(ctx context.Context) ([]types.Region, error)
	Name() string
}

// maxGeoJSONSize caps remote downloads.
const maxGeoJSONSize = 256 << 20

// FileSource reads GeoJSON from a local path or an http(s) URL.
type FileSource struct {
	Location string
	Client   *http.Client
	Timeout  time.Duration
}

// NewFileSource creates a GeoJSON source.
func NewFileSource(location string) *FileSource {
	return &FileSource{Location: location, Client: http.DefaultClient, Timeout: 60 * time.Second}
}

// Name implements Source.
func (s *FileSource) Name() string { return s.Location }

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) ([]types.Region, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeGeoJSON(data)
}

func (s *FileSource) read(ctx context.Context) ([]byte, error) {
	if !isURL(s.Location) {
		data, err := os.ReadFile(s.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", s.Location, err)
		}
		return data, nil
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.Location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", s.Location, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGeoJSONSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Location, err)
	}
	return data, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// StaticSource returns a fixed region list.
type StaticSource struct {
	Label   string
	Regions []types.Region
}

// Name implements Source.
func (s StaticSource) Name() string { return s.Label }

// Load implements Source.
func (s StaticSource) Load(context.Context) ([]types.Region, error) {
	return s.Regions, nil
}

// OpenSource picks a source implementation from a location string:
// "overpass:<ISO2>" queries Overpass, "*.shp" reads a shapefile and
// anything else is GeoJSON.
func OpenSource(location, overpassEndpoint string) Source {
	switch {
	case strings.HasPrefix(location, "overpass:"):
		return NewOverpassSource(overpassEndpoint, strings.TrimPrefix(location, "overpass:"))
	case strings.HasSuffix(strings.ToLower(location), ".shp"):
		return NewShapefileSource(location)
	default:
		return NewFileSource(location)
	}
}
