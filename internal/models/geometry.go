package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// Coordinate bounds for WGS84 points.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Point represents a PostGIS Point geometry in SRID 4326 (WGS84).
// Coordinates are held in GeoJSON order: [lon, lat].
type Point struct {
	Coordinates [2]float64
}

// NewPoint builds a Point from latitude and longitude.
func NewPoint(lat, lng float64) Point {
	return Point{Coordinates: [2]float64{lng, lat}}
}

// Lat returns the latitude.
func (p Point) Lat() float64 { return p.Coordinates[1] }

// Lng returns the longitude.
func (p Point) Lng() float64 { return p.Coordinates[0] }

// Valid reports whether the point lies within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat() >= MinLatitude && p.Lat() <= MaxLatitude &&
		p.Lng() >= MinLongitude && p.Lng() <= MaxLongitude
}

const earthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance to q.
// Matches ST_Distance on geography within a fraction of a percent.
func (p Point) DistanceMeters(q Point) float64 {
	lat1, lat2 := p.Lat()*math.Pi/180, q.Lat()*math.Pi/180
	dLat := lat2 - lat1
	dLng := (q.Lng() - p.Lng()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Radius is a circular search area.
type Radius struct {
	Center Point
	Meters float64
}

// Contains reports whether q lies within the radius.
func (r Radius) Contains(q Point) bool {
	return r.Center.DistanceMeters(q) <= r.Meters
}

type geoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Scan implements sql.Scanner for geometry read back with ST_AsGeoJSON.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan Point: expected []byte or string, got %T", value)
	}

	var geom geoJSONPoint
	if err := json.Unmarshal(raw, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point geometry: %w", err)
	}
	if geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}

	p.Coordinates = geom.Coordinates
	return nil
}

// Value implements driver.Valuer and yields GeoJSON for ST_GeomFromGeoJSON.
func (p Point) Value() (driver.Value, error) {
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// MarshalJSON renders the point as a GeoJSON geometry.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{Type: "Point", Coordinates: p.Coordinates})
}

// UnmarshalJSON parses a GeoJSON point. A missing type is accepted.
func (p *Point) UnmarshalJSON(data []byte) error {
	var geom geoJSONPoint
	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point: %w", err)
	}
	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}
	p.Coordinates = geom.Coordinates
	return nil
}
