package geo

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointFeatureRoundTrip(t *testing.T) {
	p := LabeledPoint{
		ID:             1717171717000,
		Longitude:      -122.42,
		Latitude:       37.77,
		Class:          ClassNegative,
		StartDate:      "2024-01-01",
		EndDate:        "2024-01-31",
		ClearThreshold: 0.75,
	}

	// Marshal then unmarshal so property values take the types they have
	// after a real server response.
	raw, err := json.Marshal(p.ToFeature())
	require.NoError(t, err)

	f, err := geojson.UnmarshalFeature(raw)
	require.NoError(t, err)

	got, ok := PointFromFeature(f)
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestPointFromFeatureDefaults(t *testing.T) {
	f := geojson.NewFeature(orb.Point{1, 2})

	got, ok := PointFromFeature(f)
	require.True(t, ok)
	assert.Equal(t, ClassPositive, got.Class)
	assert.Equal(t, int64(0), got.ID)
	assert.Equal(t, 1.0, got.Longitude)
	assert.Equal(t, 2.0, got.Latitude)
}

func TestPointsFromCollectionSkipsNonPoints(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(LabeledPoint{ID: 1, Longitude: 5, Latitude: 6}.ToFeature())
	fc.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))
	fc.Append(LabeledPoint{ID: 2, Longitude: 7, Latitude: 8, Class: ClassNegative}.ToFeature())

	points := PointsFromCollection(fc)
	require.Len(t, points, 2)
	assert.Equal(t, int64(1), points[0].ID)
	assert.Equal(t, int64(2), points[1].ID)
	assert.Equal(t, ClassNegative, points[1].Class)
}

func TestPointsToCollectionEmpty(t *testing.T) {
	fc := PointsToCollection(nil)
	require.NotNil(t, fc)
	assert.Empty(t, fc.Features)
}
