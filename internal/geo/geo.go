// Package geo pins the local simulation frame to the globe. Local X is
// east, Z is north and Y is height, in metres from a WGS84 origin.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/flightcore/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Points are stored as EPSG:3857 so SQLite, which has no spatial
// awareness, can still round-trip them as WKB through geom's Scan.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Reference converts local positions to Web Mercator and WGS84.
type Reference struct {
	lon, lat, alt    float64
	originX, originY float64
	// scale is the Web Mercator stretch at the origin latitude.
	scale float64
}

// NewReference pins the local origin to lon/lat (degrees) at alt metres.
func NewReference(lon, lat, alt float64) (*Reference, error) {
	if math.Abs(lat) >= 85 || math.Abs(lon) > 180 {
		return nil, fmt.Errorf("%w: origin %v,%v", ErrInvalidCoordinates, lon, lat)
	}
	x, y, _ := wgs84.EPSG().Transform(4326, 3857)(lon, lat, 0)
	return &Reference{
		lon: lon, lat: lat, alt: alt,
		originX: x, originY: y,
		scale: 1 / math.Cos(lat*math.Pi/180),
	}, nil
}

// ParseOrigin parses "lon,lat" or "lon,lat,alt".
func ParseOrigin(s string) (*Reference, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, ErrInvalidCoordinates
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	return NewReference(vals[0], vals[1], vals[2])
}

// Origin returns the WGS84 origin.
func (r *Reference) Origin() (lon, lat, alt float64) { return r.lon, r.lat, r.alt }

// Mercator returns the EPSG:3857 x/y of a local position and its altitude.
func (r *Reference) Mercator(p core.Position3D) (x, y, alt float64) {
	return r.originX + p.X*r.scale, r.originY + p.Z*r.scale, r.alt + p.Y
}

// Point returns a local position as an XYZ point in EPSG:3857.
func (r *Reference) Point(p core.Position3D) (geom.Point, error) {
	x, y, z := r.Mercator(p)
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    z,
		Type: geom.CoordinatesType(geom.DimXYZ),
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return pt, nil
}

// WGS84 returns longitude, latitude and altitude of a local position.
func (r *Reference) WGS84(p core.Position3D) (lon, lat, alt float64) {
	x, y, z := r.Mercator(p)
	lon, lat, _ = wgs84.EPSG().Transform(3857, 4326)(x, y, 0)
	return lon, lat, z
}

// Track returns the path through positions as an XYZ line string in
// EPSG:3857. Fewer than two positions yield an empty line.
func (r *Reference) Track(positions []core.Position3D) (geom.LineString, error) {
	if len(positions) < 2 {
		return geom.LineString{}, nil
	}
	flat := make([]float64, 0, len(positions)*3)
	for _, p := range positions {
		x, y, z := r.Mercator(p)
		flat = append(flat, x, y, z)
	}
	line, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return line, nil
}

// PositionFromPoint reverses Point.
func (r *Reference) PositionFromPoint(pt geom.Point) (core.Position3D, error) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	return core.Position3D{
		X: (c.XY.X - r.originX) / r.scale,
		Y: c.Z - r.alt,
		Z: (c.XY.Y - r.originY) / r.scale,
	}, nil
}
