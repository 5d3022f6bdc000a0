package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/config"
)

// Geocoder resolves coordinates to a human-readable address. Implementations
// must degrade to the raw coordinates instead of failing: address resolution
// is cosmetic and must never block case creation.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) string
}

// MapboxGeocoder calls the Mapbox places API. With no token configured every
// lookup falls back to the coordinate string.
type MapboxGeocoder struct {
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewMapboxGeocoder constructs the geocoder.
func NewMapboxGeocoder(cfg config.GeocodingConfig, logger *zap.Logger) *MapboxGeocoder {
	return &MapboxGeocoder{
		token:  cfg.MapboxToken,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

type mapboxResponse struct {
	Features []struct {
		PlaceName string `json:"place_name"`
	} `json:"features"`
}

// ReverseGeocode returns the best-matching place name, or "lat, lng" when the
// token is missing or the lookup fails.
func (g *MapboxGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	fallback := fmt.Sprintf("%g, %g", lat, lng)
	if g.token == "" {
		return fallback
	}

	endpoint := fmt.Sprintf(
		"https://api.mapbox.com/geocoding/v5/mapbox.places/%g,%g.json?access_token=%s",
		lng, lat, url.QueryEscape(g.token),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fallback
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("reverse geocode failed", zap.Error(err))
		return fallback
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("reverse geocode failed", zap.Int("status", resp.StatusCode))
		return fallback
	}

	var parsed mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		g.logger.Warn("reverse geocode decode failed", zap.Error(err))
		return fallback
	}
	if len(parsed.Features) == 0 || parsed.Features[0].PlaceName == "" {
		return fallback
	}
	return parsed.Features[0].PlaceName
}
