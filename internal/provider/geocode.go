package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ---- OpenTripMap geoname ----

// GeocodeClient resolves place names through OpenTripMap's geoname lookup.
type GeocodeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

const otmGeoDefault = "https://api.opentripmap.com/0.1/ko/places/geoname"

// NewGeocodeClient constructs a GeocodeClient with the given API key.
func NewGeocodeClient(apiKey string) *GeocodeClient {
	return &GeocodeClient{apiKey: apiKey, baseURL: otmGeoDefault, client: newHTTPClient()}
}

// NewGeocodeClientWithURL constructs a GeocodeClient pointing at a custom base URL (for tests).
func NewGeocodeClientWithURL(baseURL, apiKey string) *GeocodeClient {
	return &GeocodeClient{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

type otmGeoResponse struct {
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Resolve returns the coordinates of address, or nil when the service
// knows no such place.
func (c *GeocodeClient) Resolve(ctx context.Context, address string) (*Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}

	endpoint := c.baseURL + "?name=" + url.QueryEscape(address) + "&apikey=" + url.QueryEscape(c.apiKey)

	var raw otmGeoResponse
	if err := doGet(ctx, c.client, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("opentripmap geocode for %s: %w", address, err)
	}
	if raw.Status != "OK" {
		return nil, nil
	}

	return &Coordinates{Latitude: raw.Lat, Longitude: raw.Lon}, nil
}
