package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned when a latitude or longitude is outside
// the valid range
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// earthRadiusKm is the mean radius of the earth in kilometers
const earthRadiusKm = 6371.0

// kmPerDegree is the approximate number of kilometers per degree of latitude
const kmPerDegree = 111.0

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Validate checks that the coordinate is within valid ranges
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// BoundingBox is a rectangular latitude/longitude envelope
type BoundingBox struct {
	MinLatitude  float64 `json:"minLatitude"`
	MinLongitude float64 `json:"minLongitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
	MaxLongitude float64 `json:"maxLongitude"`
}

// Contains reports whether the point falls inside the box
func (b BoundingBox) Contains(p Coordinate) bool {
	return p.Latitude >= b.MinLatitude && p.Latitude <= b.MaxLatitude &&
		p.Longitude >= b.MinLongitude && p.Longitude <= b.MaxLongitude
}

// DistanceKm returns the great-circle distance between two points in
// kilometers using the haversine formula
func DistanceKm(a, b Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(h))

	return c * earthRadiusKm, nil
}

// CircleBounds returns a bounding box guaranteed to contain the full circle
// of radiusKm around center. The box is used to pre-filter candidates before
// exact distance checks
func CircleBounds(center Coordinate, radiusKm float64) (BoundingBox, error) {
	if err := center.Validate(); err != nil {
		return BoundingBox{}, err
	}

	latDelta := radiusKm / kmPerDegree
	lonDelta := radiusKm / (kmPerDegree * math.Cos(radians(center.Latitude)))

	return BoundingBox{
		MinLatitude:  center.Latitude - latDelta,
		MinLongitude: center.Longitude - lonDelta,
		MaxLatitude:  center.Latitude + latDelta,
		MaxLongitude: center.Longitude + lonDelta,
	}, nil
}

// WithinRadius reports whether point lies within radiusKm of center
func WithinRadius(center, point Coordinate, radiusKm float64) (bool, error) {
	d, err := DistanceKm(center, point)
	if err != nil {
		return false, err
	}
	return d <= radiusKm, nil
}

// Bearing returns the initial bearing in degrees from a to b, normalized to
// [0, 360)
func Bearing(a, b Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360), nil
}

// NormalizeLongitude wraps a longitude into the [-180, 180] range
func NormalizeLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// Center returns the arithmetic center of the given coordinates
func Center(coords []Coordinate) Coordinate {
	if len(coords) == 0 {
		return Coordinate{}
	}

	var totalLat, totalLon float64
	for _, c := range coords {
		totalLat += c.Latitude
		totalLon += c.Longitude
	}

	return Coordinate{
		Latitude:  totalLat / float64(len(coords)),
		Longitude: totalLon / float64(len(coords)),
	}
}

// Bounds returns the bounding box of the given coordinates
func Bounds(coords []Coordinate) BoundingBox {
	if len(coords) == 0 {
		return BoundingBox{}
	}

	box := BoundingBox{
		MinLatitude:  coords[0].Latitude,
		MinLongitude: coords[0].Longitude,
		MaxLatitude:  coords[0].Latitude,
		MaxLongitude: coords[0].Longitude,
	}
	for _, c := range coords[1:] {
		box.MinLatitude = math.Min(box.MinLatitude, c.Latitude)
		box.MinLongitude = math.Min(box.MinLongitude, c.Longitude)
		box.MaxLatitude = math.Max(box.MaxLatitude, c.Latitude)
		box.MaxLongitude = math.Max(box.MaxLongitude, c.Longitude)
	}
	return box
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
