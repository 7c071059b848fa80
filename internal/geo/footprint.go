package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	// Sentinel-1/2 ground resolution assumed for patch footprints.
	MetersPerPixel = 10

	// Equirectangular approximation constants.
	MetersPerDegreeLat = 111320
)

// MetersPerDegreeLon returns the east-west meters per degree at a latitude.
func MetersPerDegreeLon(latitude float64) float64 {
	return MetersPerDegreeLat * math.Cos(latitude*math.Pi/180)
}

// PatchCorners computes the geographic footprint of a chip centered at
// (longitude, latitude). Corners are returned in NW, NE, SE, SW order, the
// order raster image sources expect.
func PatchCorners(longitude, latitude float64, chipSize int) [4][2]float64 {
	chipMeters := float64(MetersPerPixel * chipSize)
	offsetMeters := chipMeters / 2

	latOffset := offsetMeters / MetersPerDegreeLat
	lonOffset := offsetMeters / MetersPerDegreeLon(latitude)

	return [4][2]float64{
		{longitude - lonOffset, latitude + latOffset},
		{longitude + lonOffset, latitude + latOffset},
		{longitude + lonOffset, latitude - latOffset},
		{longitude - lonOffset, latitude - latOffset},
	}
}

// CollectionBound extends a bound across every feature geometry in the
// collection. Returns false when the collection holds no features.
func CollectionBound(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	if fc == nil || len(fc.Features) == 0 {
		return orb.Bound{}, false
	}

	bound := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		bound = bound.Union(f.Geometry.Bound())
	}
	return bound, true
}

// FeatureBound returns the bound of a single feature.
func FeatureBound(f *geojson.Feature) (orb.Bound, bool) {
	if f == nil || f.Geometry == nil {
		return orb.Bound{}, false
	}
	return f.Geometry.Bound(), true
}
