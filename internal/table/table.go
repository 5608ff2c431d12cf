// Package table handles positions on the physical game table.
// Positions are 2D points in inches measured from the table's
// south-west corner. Geometry data is stored in the WKB format, which
// is a binary representation SQLite can round-trip as a blob.
package table

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidPosition is returned when a position string cannot be parsed
var ErrInvalidPosition = errors.New("invalid table position provided")

// ParsePoint parses a string in the format "x,y" into a table point.
// Coordinates are inches from the south-west table corner.
func ParsePoint(coords string) (point geom.Point, err error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidPosition
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidPosition
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidPosition
	}
	point = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	return point, nil
}

// NewPoint builds a table point from inch coordinates.
func NewPoint(x, y float64) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
}

// Distance returns the straight-line distance in inches between two
// table points. Empty points measure as zero distance.
func Distance(a, b geom.Point) float64 {
	ca, okA := a.XY()
	cb, okB := b.XY()
	if !okA || !okB {
		return 0
	}
	return ca.Sub(cb).Length()
}

// WithinTable reports whether the point lies on a table of the given
// dimensions in inches.
func WithinTable(p geom.Point, width, height float64) bool {
	c, ok := p.XY()
	if !ok {
		return false
	}
	return c.X >= 0 && c.X <= width && c.Y >= 0 && c.Y <= height
}
