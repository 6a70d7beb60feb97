// Package overpass implements ports.GeoQueryService against an Overpass API
// endpoint, querying OpenStreetMap protected-area features.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/geospatial"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/httpx"
)

// protectionSelectors are the OSM tag classes recognized as protected land.
var protectionSelectors = []string{
	`["boundary"="protected_area"]`,
	`["leisure"="nature_reserve"]`,
	`["boundary"="national_park"]`,
	`["protect_class"]`,
}

// Client queries an Overpass API endpoint.
type Client struct {
	http *httpx.Client
	url  string
}

// New creates a Client for the given Overpass interpreter URL.
func New(endpoint string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		http: httpx.New(timeout, maxRetries),
		url:  endpoint,
	}
}

// ContainingAreas runs a point-in-polygon query: which protected-area
// polygons contain the point.
func (c *Client) ContainingAreas(ctx context.Context, point domain.GeoPoint) ([]domain.GeoFeature, error) {
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n")
	fmt.Fprintf(&b, "is_in(%.6f,%.6f)->.a;\n(\n", point.Lat, point.Lon)
	for _, sel := range protectionSelectors {
		fmt.Fprintf(&b, "  area.a%s;\n", sel)
	}
	b.WriteString(");\nout tags;")

	return c.query(ctx, b.String())
}

// NearbyAreas runs a radius query for the same tag classes, nearest first.
func (c *Client) NearbyAreas(ctx context.Context, point domain.GeoPoint, radiusKm float64) ([]domain.GeoFeature, error) {
	radiusM := int(radiusKm * 1000)

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, sel := range protectionSelectors {
		fmt.Fprintf(&b, "  nwr%s(around:%d,%.6f,%.6f);\n", sel, radiusM, point.Lat, point.Lon)
	}
	b.WriteString(");\nout tags center;")

	features, err := c.query(ctx, b.String())
	if err != nil {
		return nil, err
	}

	// Nearest first; features without a representative point sort last.
	sort.SliceStable(features, func(i, j int) bool {
		return distanceTo(point, features[i]) < distanceTo(point, features[j])
	})
	return features, nil
}

func (c *Client) query(ctx context.Context, ql string) ([]domain.GeoFeature, error) {
	resp, err := c.http.Do(ctx, httpx.Request{
		Method:  http.MethodPost,
		URL:     c.url,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte("data=" + url.QueryEscape(ql)),
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Elements []struct {
			Type   string   `json:"type"`
			ID     int64    `json:"id"`
			Lat    *float64 `json:"lat"`
			Lon    *float64 `json:"lon"`
			Center *struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"center"`
			Tags map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	features := make([]domain.GeoFeature, 0, len(payload.Elements))
	for _, el := range payload.Elements {
		f := domain.GeoFeature{Type: el.Type, ID: el.ID, Tags: el.Tags}
		switch {
		case el.Lat != nil && el.Lon != nil:
			f.Location = &domain.GeoPoint{Lat: *el.Lat, Lon: *el.Lon}
		case el.Center != nil:
			f.Location = &domain.GeoPoint{Lat: el.Center.Lat, Lon: el.Center.Lon}
		}
		features = append(features, f)
	}
	return features, nil
}

func distanceTo(point domain.GeoPoint, f domain.GeoFeature) float64 {
	if f.Location == nil {
		return 1 << 30
	}
	return geospatial.DistanceKm(point.Lat, point.Lon, f.Location.Lat, f.Location.Lon)
}
