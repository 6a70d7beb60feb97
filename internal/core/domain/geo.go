package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point is finite and within WGS 84 bounds.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return false
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// GeoFeature is a raw feature returned by the geospatial query service.
// Location is nil for features the source returns without a representative
// point (e.g. containment matches on areas).
type GeoFeature struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Location *GeoPoint         `json:"location,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}
