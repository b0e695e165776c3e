package pins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// maxRemoteSize caps the body read from a remote pin list.
const maxRemoteSize = 8 << 20

// RemoteSource fetches a pin list from an HTTP(S) JSON resource.
type RemoteSource struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewRemoteSource creates a remote source with the given timeout.
func NewRemoteSource(url string, timeout time.Duration) *RemoteSource {
	return &RemoteSource{URL: url, Client: http.DefaultClient, Timeout: timeout}
}

// Load fetches and decodes the list.
func (s *RemoteSource) Load(ctx context.Context) ([]types.Pin, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pins: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch pins: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read pins: %w", err)
	}
	list, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pins: %w", err)
	}
	return list, nil
}

// LoadOrFallback tries each source in order and returns the first
// collection that loads. When every source fails the embedded fallback is
// returned and fromFallback is true.
func LoadOrFallback(ctx context.Context, logger *slog.Logger, sources ...Source) (list []types.Pin, fromFallback bool) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		l, err := src.Load(ctx)
		if err == nil {
			return l, false
		}
		if errors.Is(err, ErrNotFound) {
			logger.Debug("Pin source empty", "source", fmt.Sprintf("%T", src))
			continue
		}
		logger.Warn("Pin source failed", "source", fmt.Sprintf("%T", src), "error", err)
	}
	logger.Info("Using fallback pins")
	return Fallback(), true
}
