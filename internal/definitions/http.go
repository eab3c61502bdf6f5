package definitions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/miradorstack/mirador-bsm/internal/cache"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

var lastGoodKey = cache.Key(cache.KeyPrefix, "definitions", "last-good")

// HTTPSource fetches definitions as JSON from a catalog endpoint. When a cache is supplied
// the last document the engine accepted is kept there and served if the endpoint fails.
// A fetched document only becomes the last good copy once Commit is called.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	cache      cache.Provider
	logger     *slog.Logger

	mu      sync.Mutex
	pending []byte
}

// NewHTTPSource constructs a source targeting url.
func NewHTTPSource(url string, timeout time.Duration, provider cache.Provider, logger *slog.Logger) *HTTPSource {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{
		url: strings.TrimSpace(url),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:  provider,
		logger: logger,
	}
}

// Load fetches the current definition set.
func (s *HTTPSource) Load(ctx context.Context) ([]models.BusinessServiceDefinition, error) {
	if s.url == "" {
		return nil, errors.New("definitions url not configured")
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	body, err := s.fetch(ctx)
	fetched := err == nil
	if err != nil {
		cached, cacheErr := s.cache.Get(ctx, lastGoodKey)
		if cacheErr != nil {
			return nil, fmt.Errorf("definitions request failed: %w", err)
		}
		s.logger.Warn("definitions endpoint unavailable, using last good copy", slog.Any("error", err))
		body = cached
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	if fetched {
		s.mu.Lock()
		s.pending = body
		s.mu.Unlock()
	}
	return doc.BusinessServices, nil
}

// Commit stores the document returned by the latest Load as the last good copy.
// It is a no-op when that Load failed or was served from the cache.
func (s *HTTPSource) Commit(ctx context.Context) error {
	s.mu.Lock()
	body := s.pending
	s.pending = nil
	s.mu.Unlock()
	if body == nil {
		return nil
	}
	if err := s.cache.Set(ctx, lastGoodKey, body, 0); err != nil {
		return fmt.Errorf("store last good definitions: %w", err)
	}
	return nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("definitions endpoint returned %s", resp.Status)
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}
