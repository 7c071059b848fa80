// Package geo holds the geographic value types shared by the store, the API
// facade, and the map controller, plus the footprint math for patch overlays.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type PointClass string

const (
	ClassPositive PointClass = "positive"
	ClassNegative PointClass = "negative"
)

// LabeledPoint is a labeled training sample placed by the analyst. IDs are
// client-generated millisecond timestamps, so they increase monotonically
// within a session.
type LabeledPoint struct {
	ID             int64      `json:"id"`
	Longitude      float64    `json:"longitude"`
	Latitude       float64    `json:"latitude"`
	Class          PointClass `json:"class"`
	StartDate      string     `json:"start_date"`
	EndDate        string     `json:"end_date"`
	ClearThreshold float64    `json:"clear_threshold"`
}

// ToFeature converts the point to its GeoJSON projection for export and for
// the map's point source.
func (p LabeledPoint) ToFeature() *geojson.Feature {
	f := geojson.NewFeature(orb.Point{p.Longitude, p.Latitude})
	f.Properties = geojson.Properties{
		"id":              p.ID,
		"class":           string(p.Class),
		"start_date":      p.StartDate,
		"end_date":        p.EndDate,
		"clear_threshold": p.ClearThreshold,
	}
	return f
}

// PointFromFeature rebuilds a LabeledPoint from a feature loaded off the
// server. Numeric properties arrive as float64 after JSON decoding.
func PointFromFeature(f *geojson.Feature) (LabeledPoint, bool) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return LabeledPoint{}, false
	}

	p := LabeledPoint{
		Longitude: pt.Lon(),
		Latitude:  pt.Lat(),
		Class:     ClassPositive,
	}

	if v, ok := f.Properties["id"]; ok {
		switch id := v.(type) {
		case float64:
			p.ID = int64(id)
		case int64:
			p.ID = id
		case int:
			p.ID = int64(id)
		}
	}
	if v, ok := f.Properties["class"].(string); ok && v != "" {
		p.Class = PointClass(v)
	}
	if v, ok := f.Properties["start_date"].(string); ok {
		p.StartDate = v
	}
	if v, ok := f.Properties["end_date"].(string); ok {
		p.EndDate = v
	}
	if v, ok := f.Properties["clear_threshold"].(float64); ok {
		p.ClearThreshold = v
	}

	return p, true
}

// PointsToCollection projects a point list into a feature collection.
func PointsToCollection(points []LabeledPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		fc.Append(p.ToFeature())
	}
	return fc
}

// PointsFromCollection parses every point feature in a collection, skipping
// features with non-point geometry.
func PointsFromCollection(fc *geojson.FeatureCollection) []LabeledPoint {
	points := make([]LabeledPoint, 0, len(fc.Features))
	for _, f := range fc.Features {
		if p, ok := PointFromFeature(f); ok {
			points = append(points, p)
		}
	}
	return points
}
