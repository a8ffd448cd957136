package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---- Naver local search ----

// NaverClient searches places through the Naver local search API.
type NaverClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *http.Client
}

const naverDefaultURL = "https://openapi.naver.com/v1/search/local.json"

// NewNaverClient constructs a NaverClient with the given application credentials.
func NewNaverClient(clientID, clientSecret string) *NaverClient {
	return &NaverClient{clientID: clientID, clientSecret: clientSecret, baseURL: naverDefaultURL, client: newHTTPClient()}
}

// NewNaverClientWithURL constructs a NaverClient pointing at a custom base URL (for tests).
func NewNaverClientWithURL(baseURL, clientID, clientSecret string) *NaverClient {
	return &NaverClient{clientID: clientID, clientSecret: clientSecret, baseURL: baseURL, client: newHTTPClient()}
}

type naverResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Category    string `json:"category"`
		Address     string `json:"address"`
		RoadAddress string `json:"roadAddress"`
		MapX        string `json:"mapx"`
		MapY        string `json:"mapy"`
	} `json:"items"`
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Name identifies the provider in logs and results.
func (c *NaverClient) Name() string { return "naver" }

// Search returns up to five places matching the region and keywords.
func (c *NaverClient) Search(ctx context.Context, region string, keywords []string) ([]Place, error) {
	query := strings.TrimSpace(region + " " + strings.Join(keywords, " "))
	endpoint := c.baseURL + "?query=" + url.QueryEscape(query) + "&display=5&sort=random"

	header := http.Header{}
	header.Set("X-Naver-Client-Id", c.clientID)
	header.Set("X-Naver-Client-Secret", c.clientSecret)

	var raw naverResponse
	if err := doGet(ctx, c.client, endpoint, header, &raw); err != nil {
		return nil, fmt.Errorf("naver search for %s: %w", query, err)
	}

	places := make([]Place, 0, len(raw.Items))
	for _, it := range raw.Items {
		name := strings.TrimSpace(htmlTag.ReplaceAllString(it.Title, ""))
		if name == "" {
			continue
		}
		address := it.RoadAddress
		if address == "" {
			address = it.Address
		}
		p := Place{Name: name, Category: it.Category, Address: address, Source: c.Name()}
		// mapx/mapy are WGS84 degrees scaled by 1e7.
		if lng, err := strconv.ParseFloat(it.MapX, 64); err == nil {
			if lat, err := strconv.ParseFloat(it.MapY, 64); err == nil {
				lat, lng = lat/1e7, lng/1e7
				p.Latitude, p.Longitude = &lat, &lng
			}
		}
		places = append(places, p)
	}

	return places, nil
}

// ---- OpenTripMap ----

// OpenTripMapClient finds notable places around a region via OpenTripMap.
type OpenTripMapClient struct {
	apiKey  string
	geo     *GeocodeClient
	baseURL string
	client  *http.Client
}

const otmRadiusDefault = "https://api.opentripmap.com/0.1/ko/places/radius"

// NewOpenTripMapClient constructs an OpenTripMapClient with the given API key.
func NewOpenTripMapClient(apiKey string) *OpenTripMapClient {
	return &OpenTripMapClient{
		apiKey:  apiKey,
		geo:     NewGeocodeClient(apiKey),
		baseURL: otmRadiusDefault,
		client:  newHTTPClient(),
	}
}

// NewOpenTripMapClientWithURLs constructs an OpenTripMapClient pointing at custom URLs (for tests).
func NewOpenTripMapClientWithURLs(geoBaseURL, radiusBaseURL, apiKey string) *OpenTripMapClient {
	return &OpenTripMapClient{
		apiKey:  apiKey,
		geo:     NewGeocodeClientWithURL(geoBaseURL, apiKey),
		baseURL: radiusBaseURL,
		client:  newHTTPClient(),
	}
}

type otmRadiusResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Name  string `json:"name"`
			Kinds string `json:"kinds"`
			Rate  int    `json:"rate"`
		} `json:"properties"`
	} `json:"features"`
}

// Name identifies the provider in logs and results.
func (c *OpenTripMapClient) Name() string { return "opentripmap" }

// Search returns up to ten rated places within 5 km of region. The service
// only supports prefix search on names, so the first keyword of three or
// more characters narrows the result.
func (c *OpenTripMapClient) Search(ctx context.Context, region string, keywords []string) ([]Place, error) {
	center, err := c.geo.Resolve(ctx, region)
	if err != nil {
		return nil, err
	}
	if center == nil {
		return []Place{}, nil
	}

	q := url.Values{}
	q.Set("radius", "5000")
	q.Set("lon", strconv.FormatFloat(center.Longitude, 'f', 6, 64))
	q.Set("lat", strconv.FormatFloat(center.Latitude, 'f', 6, 64))
	q.Set("rate", "2")
	q.Set("limit", "10")
	q.Set("format", "geojson")
	for _, k := range keywords {
		if utf8.RuneCountInString(strings.TrimSpace(k)) >= 3 {
			q.Set("name", strings.TrimSpace(k))
			break
		}
	}
	q.Set("apikey", c.apiKey)

	var raw otmRadiusResponse
	if err := doGet(ctx, c.client, c.baseURL+"?"+q.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("opentripmap radius for %s: %w", region, err)
	}

	places := make([]Place, 0, len(raw.Features))
	for _, f := range raw.Features {
		if f.Properties.Name == "" {
			continue
		}
		p := Place{Name: f.Properties.Name, Category: f.Properties.Kinds, Source: c.Name()}
		if len(f.Geometry.Coordinates) == 2 {
			lng, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
			p.Latitude, p.Longitude = &lat, &lng
		}
		places = append(places, p)
	}

	return places, nil
}
