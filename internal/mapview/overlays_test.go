package mapview

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geo-workbench/client/internal/api"
)

func confidenceFeature(minX, minY, maxX, maxY, confidence float64) *geojson.Feature {
	f := polygonFeature(minX, minY, maxX, maxY)
	f.Properties["confidence"] = confidence
	return f
}

func TestAddPatchThenClear(t *testing.T) {
	r := newRig(t, nil)

	require.NoError(t, r.ctl.AddPatch(api.Patch{Image: "eA==", Longitude: 10, Latitude: 20, ChipSize: 64}))
	require.NoError(t, r.ctl.AddPatch(api.Patch{Image: "eQ==", Longitude: 11, Latitude: 21, ChipSize: 64}))

	assert.Len(t, patchLayers(r.viewport), 2)

	r.ctl.ClearPatches()
	assert.Empty(t, patchLayers(r.viewport))

	// Clearing twice is harmless.
	r.ctl.ClearPatches()
}

func TestDisplayPatchesReplacesExisting(t *testing.T) {
	r := newRig(t, nil)

	require.NoError(t, r.ctl.AddPatch(api.Patch{Image: "eA==", Longitude: 10, Latitude: 20, ChipSize: 64}))

	r.ctl.DisplayPatches([]api.Patch{
		{Image: "YQ==", Longitude: 1, Latitude: 2, ChipSize: 64},
		{Image: "Yg==", Longitude: 3, Latitude: 4, ChipSize: 64},
		{Image: "Yw==", Longitude: 5, Latitude: 6, ChipSize: 64},
	})

	assert.Len(t, patchLayers(r.viewport), 3)
}

func TestIncrementalPredictionsAccumulate(t *testing.T) {
	r := newRig(t, nil)

	bbox := polygonFeature(0, 0, 10, 10)

	batch1 := geojson.NewFeatureCollection()
	batch1.Append(confidenceFeature(0, 0, 1, 1, 0.9))
	batch1.Append(confidenceFeature(1, 1, 2, 2, 0.8))
	r.ctl.UpdateDeploymentPredictions(batch1, bbox)

	// First batch creates the bbox layer and fits the viewport to it.
	_, ok := r.viewport.GetLayer(layerDeployBBox)
	require.True(t, ok)
	fit := r.viewport.LastFit()
	require.NotNil(t, fit)
	assert.Equal(t, orb.Point{0, 0}, fit.Min)
	assert.Equal(t, orb.Point{10, 10}, fit.Max)

	batch2 := geojson.NewFeatureCollection()
	batch2.Append(confidenceFeature(2, 2, 3, 3, 0.7))
	r.ctl.UpdateDeploymentPredictions(batch2, bbox)

	data, ok := r.viewport.GetSourceData(sourceDeployPredictions)
	require.True(t, ok)
	require.Len(t, data.Features, 3)

	// Accumulation preserves every batch's confidences.
	var confidences []float64
	for _, f := range data.Features {
		confidences = append(confidences, f.Properties["confidence"].(float64))
	}
	assert.ElementsMatch(t, []float64{0.9, 0.8, 0.7}, confidences)

	// Later batches do not re-create the bbox or re-fit.
	assert.Equal(t, fit, r.viewport.LastFit())
}

func TestUpdateDeploymentPredictionsNilBatchIgnored(t *testing.T) {
	r := newRig(t, nil)

	r.ctl.UpdateDeploymentPredictions(nil, polygonFeature(0, 0, 1, 1))

	_, ok := r.viewport.GetSource(sourceDeployPredictions)
	assert.False(t, ok)
}

func TestDisplayDeploymentPredictionsReplacesStream(t *testing.T) {
	r := newRig(t, nil)

	stream := geojson.NewFeatureCollection()
	stream.Append(confidenceFeature(0, 0, 1, 1, 0.5))
	r.ctl.UpdateDeploymentPredictions(stream, polygonFeature(0, 0, 10, 10))

	final := geojson.NewFeatureCollection()
	final.Append(confidenceFeature(0, 0, 1, 1, 0.95))
	final.Append(confidenceFeature(4, 4, 5, 5, 0.85))
	r.ctl.DisplayDeploymentPredictions(final, polygonFeature(0, 0, 10, 10))

	data, ok := r.viewport.GetSourceData(sourceDeployPredictions)
	require.True(t, ok)
	assert.Len(t, data.Features, 2)

	layer, ok := r.viewport.GetLayer(layerDeployPredictions)
	require.True(t, ok)
	assert.Equal(t, colorLine, layer.Paint["line-color"])
	assert.Equal(t, []any{"get", "confidence"}, layer.Paint["line-opacity"])
}

func TestDisplayDeploymentPredictionsNilClears(t *testing.T) {
	r := newRig(t, nil)

	stream := geojson.NewFeatureCollection()
	stream.Append(confidenceFeature(0, 0, 1, 1, 0.5))
	r.ctl.UpdateDeploymentPredictions(stream, polygonFeature(0, 0, 10, 10))

	r.ctl.DisplayDeploymentPredictions(nil, nil)

	_, ok := r.viewport.GetSource(sourceDeployPredictions)
	assert.False(t, ok)
	_, ok = r.viewport.GetLayer(layerDeployBBox)
	assert.False(t, ok)
}

func TestDisplayPredictionFitsCollectionWithoutBBox(t *testing.T) {
	r := newRig(t, nil)

	fc := geojson.NewFeatureCollection()
	fc.Append(confidenceFeature(0, 0, 1, 1, 0.9))
	fc.Append(confidenceFeature(5, 5, 6, 7, 0.8))

	r.ctl.DisplayPrediction(fc, nil)

	fit := r.viewport.LastFit()
	require.NotNil(t, fit)
	assert.Equal(t, orb.Point{0, 0}, fit.Min)
	assert.Equal(t, orb.Point{6, 7}, fit.Max)
}

func TestShowImageryPlacesTilesUnderPoints(t *testing.T) {
	r := newRig(t, map[string]http.HandlerFunc{
		"/get_map_imagery": func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"success":  true,
				"tile_url": "https://earthengine.example/{z}/{x}/{y}",
				"bounds":   map[string]float64{"west": -1, "south": -2, "east": 3, "north": 4},
			})
		},
	})
	r.selectProject("proj-1")
	r.viewport.Click(0, 0)

	err := r.ctl.ShowImagery(context.Background(), api.ImageryRequest{
		West: -1, South: -2, East: 3, North: 4,
		StartDate: "2024-01-01", EndDate: "2024-02-01",
		Collection: "S2", ClearThreshold: 0.75,
	})
	require.NoError(t, err)

	src, ok := r.viewport.GetSource(sourceSentinelImagery)
	require.True(t, ok)
	assert.Equal(t, SourceRaster, src.Type)
	assert.Equal(t, []string{"https://earthengine.example/{z}/{x}/{y}"}, src.Tiles)
	assert.Equal(t, 256, src.TileSize)

	fit := r.viewport.LastFit()
	require.NotNil(t, fit)
	assert.Equal(t, orb.Point{-1, -2}, fit.Min)
	assert.Equal(t, orb.Point{3, 4}, fit.Max)

	order := r.viewport.LayerOrder()
	assert.Equal(t, layerPointNegative, order[len(order)-1])

	// A second request replaces the overlay instead of stacking.
	require.NoError(t, r.ctl.ShowImagery(context.Background(), api.ImageryRequest{}))
	count := 0
	for _, id := range r.viewport.LayerOrder() {
		if id == layerSentinelImagery {
			count++
		}
	}
	assert.Equal(t, 1, count)

	r.ctl.RemoveImagery()
	_, ok = r.viewport.GetSource(sourceSentinelImagery)
	assert.False(t, ok)
}

func TestShowImageryRejection(t *testing.T) {
	r := newRig(t, map[string]http.HandlerFunc{
		"/get_map_imagery": func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "No imagery for range"})
		},
	})

	err := r.ctl.ShowImagery(context.Background(), api.ImageryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No imagery for range")
}
