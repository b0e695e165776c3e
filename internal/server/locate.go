package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrNoLocation is returned when an address has no known coordinates.
var ErrNoLocation = errors.New("no location for address")

// Locator resolves an IP address to a geographic point.
type Locator interface {
	Locate(ip net.IP) (lon, lat float64, err error)
}

// GeoIPLocator reads a MaxMind GeoLite2/GeoIP2 City database.
type GeoIPLocator struct {
	db *geoip2.Reader
}

// OpenGeoIP opens a City database file.
func OpenGeoIP(path string) (*GeoIPLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &GeoIPLocator{db: db}, nil
}

// Locate implements Locator.
func (g *GeoIPLocator) Locate(ip net.IP) (float64, float64, error) {
	city, err := g.db.City(ip)
	if err != nil {
		return 0, 0, fmt.Errorf("geoip lookup failed: %w", err)
	}
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
		return 0, 0, ErrNoLocation
	}
	return city.Location.Longitude, city.Location.Latitude, nil
}

// Close closes the database.
func (g *GeoIPLocator) Close() error {
	return g.db.Close()
}

// clientIP takes the first X-Forwarded-For hop, else the remote address.
func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
