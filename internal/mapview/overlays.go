package mapview

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/geo"
	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/pkg/logger"
)

// AddPatch overlays one extracted chip as a georeferenced raster. The
// footprint assumes 10 m per pixel around the patch center. Existing overlays
// are left alone; the point layers are reasserted on top.
func (c *Controller) AddPatch(p api.Patch) error {
	token := uuid.NewString()
	sourceID := patchSourcePrefix + token
	layerID := patchLayerPrefix + token

	corners := geo.PatchCorners(p.Longitude, p.Latitude, p.ChipSize)

	err := c.viewport.AddSource(sourceID, SourceSpec{
		Type:        SourceImage,
		URL:         "data:image/png;base64," + p.Image,
		Coordinates: corners,
	})
	if err != nil {
		return fmt.Errorf("failed to add patch source: %w", err)
	}

	err = c.viewport.AddLayer(LayerSpec{
		ID:     layerID,
		Type:   LayerRaster,
		Source: sourceID,
		Paint: map[string]any{
			"raster-opacity":       defaultRasterOpacity,
			"raster-fade-duration": 0,
		},
	}, "")
	if err != nil {
		return fmt.Errorf("failed to add patch layer: %w", err)
	}

	c.mu.Lock()
	c.patchTokens = append(c.patchTokens, token)
	metrics.PatchOverlays.Set(float64(len(c.patchTokens)))
	c.mu.Unlock()

	c.EnsurePointLayers()
	return nil
}

// DisplayPatches replaces every patch overlay with the given set.
func (c *Controller) DisplayPatches(patches []api.Patch) {
	c.ClearPatches()
	for _, p := range patches {
		if err := c.AddPatch(p); err != nil {
			logger.Warn("Failed to display patch", zap.Error(err))
		}
	}
}

// ClearPatches removes every patch source/layer pair.
func (c *Controller) ClearPatches() {
	c.mu.Lock()
	tokens := c.patchTokens
	c.patchTokens = nil
	metrics.PatchOverlays.Set(0)
	c.mu.Unlock()

	for _, token := range tokens {
		if err := c.viewport.RemoveLayer(patchLayerPrefix + token); err != nil {
			logger.Debug("Patch layer already gone", zap.String("token", token))
		}
		if err := c.viewport.RemoveSource(patchSourcePrefix + token); err != nil {
			logger.Debug("Patch source already gone", zap.String("token", token))
		}
	}
}

func (c *Controller) patchTokenSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens := make([]string, len(c.patchTokens))
	copy(tokens, c.patchTokens)
	return tokens
}

// UpdateDeploymentPredictions appends an incremental batch to the streaming
// prediction source, creating the source, line layer, and bounding box on the
// first batch.
func (c *Controller) UpdateDeploymentPredictions(fc *geojson.FeatureCollection, bbox *geojson.Feature) {
	if fc == nil {
		return
	}

	if _, ok := c.viewport.GetSource(sourceDeployPredictions); !ok {
		if bbox != nil {
			c.addDeploymentBBox(bbox)
			if bound, ok := geo.FeatureBound(bbox); ok {
				c.viewport.FitBounds(bound, FitOptions{Padding: 48})
			}
		}

		err := c.viewport.AddSource(sourceDeployPredictions, SourceSpec{
			Type: SourceGeoJSON,
			Data: geojson.NewFeatureCollection(),
		})
		if err != nil {
			logger.Warn("Failed to create deployment predictions source", zap.Error(err))
			return
		}

		err = c.viewport.AddLayer(predictionLineLayer(layerDeployPredictions, sourceDeployPredictions), "")
		if err != nil {
			logger.Warn("Failed to create deployment predictions layer", zap.Error(err))
		}
	}

	current, _ := c.viewport.GetSourceData(sourceDeployPredictions)

	union := geojson.NewFeatureCollection()
	if current != nil {
		union.Features = append(union.Features, current.Features...)
	}
	union.Features = append(union.Features, fc.Features...)

	if err := c.viewport.SetSourceData(sourceDeployPredictions, union); err != nil {
		logger.Warn("Failed to update deployment predictions", zap.Error(err))
	}

	c.EnsurePointLayers()
}

// DisplayDeploymentPredictions replaces the streaming prediction rendering
// with the final collection, then fits the viewport to the bounding box or,
// failing that, the union of feature bounds.
func (c *Controller) DisplayDeploymentPredictions(fc *geojson.FeatureCollection, bbox *geojson.Feature) {
	c.removeDeploymentLayers()

	if fc == nil {
		return
	}

	if bbox != nil {
		c.addDeploymentBBox(bbox)
	}

	err := c.viewport.AddSource(sourceDeployPredictions, SourceSpec{Type: SourceGeoJSON, Data: fc})
	if err != nil {
		logger.Warn("Failed to add deployment predictions source", zap.Error(err))
		return
	}
	err = c.viewport.AddLayer(predictionLineLayer(layerDeployPredictions, sourceDeployPredictions), "")
	if err != nil {
		logger.Warn("Failed to add deployment predictions layer", zap.Error(err))
	}

	if bbox != nil {
		if bound, ok := geo.FeatureBound(bbox); ok {
			c.viewport.FitBounds(bound, FitOptions{Padding: 48})
		}
	} else if bound, ok := geo.CollectionBound(fc); ok {
		c.viewport.FitBounds(bound, FitOptions{Padding: 48})
	}

	c.EnsurePointLayers()
}

// DisplayPrediction renders a stored prediction set fetched from the server.
func (c *Controller) DisplayPrediction(fc *geojson.FeatureCollection, bbox *geojson.Feature) {
	c.removeIfPresent(layerPredictions, sourcePredictions)

	if fc == nil {
		return
	}

	err := c.viewport.AddSource(sourcePredictions, SourceSpec{Type: SourceGeoJSON, Data: fc})
	if err != nil {
		logger.Warn("Failed to add predictions source", zap.Error(err))
		return
	}
	err = c.viewport.AddLayer(predictionLineLayer(layerPredictions, sourcePredictions), "")
	if err != nil {
		logger.Warn("Failed to add predictions layer", zap.Error(err))
	}

	if bbox != nil {
		if bound, ok := geo.FeatureBound(bbox); ok {
			c.viewport.FitBounds(bound, FitOptions{Padding: 48})
		}
	} else if bound, ok := geo.CollectionBound(fc); ok {
		c.viewport.FitBounds(bound, FitOptions{Padding: 48})
	}

	c.EnsurePointLayers()
}

func (c *Controller) addDeploymentBBox(bbox *geojson.Feature) {
	fc := geojson.NewFeatureCollection()
	fc.Append(bbox)

	err := c.viewport.AddSource(sourceDeployBBox, SourceSpec{Type: SourceGeoJSON, Data: fc})
	if err != nil {
		logger.Warn("Failed to add deployment bbox source", zap.Error(err))
		return
	}

	err = c.viewport.AddLayer(LayerSpec{
		ID:     layerDeployBBox,
		Type:   LayerLine,
		Source: sourceDeployBBox,
		Paint: map[string]any{
			"line-color":     colorBBox,
			"line-width":     2,
			"line-dasharray": []float64{2, 2},
		},
	}, "")
	if err != nil {
		logger.Warn("Failed to add deployment bbox layer", zap.Error(err))
	}
}

func (c *Controller) removeDeploymentLayers() {
	c.removeIfPresent(layerDeployPredictions, sourceDeployPredictions)
	c.removeIfPresent(layerDeployBBox, sourceDeployBBox)
}

func (c *Controller) removeIfPresent(layerID, sourceID string) {
	if _, ok := c.viewport.GetLayer(layerID); ok {
		if err := c.viewport.RemoveLayer(layerID); err != nil {
			logger.Debug("Failed to remove layer", zap.String("layer", layerID), zap.Error(err))
		}
	}
	if _, ok := c.viewport.GetSource(sourceID); ok {
		if err := c.viewport.RemoveSource(sourceID); err != nil {
			logger.Debug("Failed to remove source", zap.String("source", sourceID), zap.Error(err))
		}
	}
}

func predictionLineLayer(id, source string) LayerSpec {
	return LayerSpec{
		ID:     id,
		Type:   LayerLine,
		Source: source,
		Paint: map[string]any{
			"line-color":   colorLine,
			"line-width":   2,
			"line-opacity": []any{"get", "confidence"},
		},
	}
}

// ShowImagery requests a raster tile overlay for the given region and date
// range and places it under the point layers.
func (c *Controller) ShowImagery(ctx context.Context, req api.ImageryRequest) error {
	resp, err := c.api.GetMapImagery(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("imagery request rejected: %s", resp.Message)
	}

	c.RemoveImagery()

	err = c.viewport.AddSource(sourceSentinelImagery, SourceSpec{
		Type:     SourceRaster,
		Tiles:    []string{resp.TileURL},
		TileSize: 256,
	})
	if err != nil {
		return fmt.Errorf("failed to add imagery source: %w", err)
	}

	err = c.viewport.AddLayer(LayerSpec{
		ID:     layerSentinelImagery,
		Type:   LayerRaster,
		Source: sourceSentinelImagery,
		Paint:  map[string]any{"raster-opacity": defaultRasterOpacity},
	}, "")
	if err != nil {
		return fmt.Errorf("failed to add imagery layer: %w", err)
	}

	bound := orb.Bound{
		Min: orb.Point{resp.Bounds.West, resp.Bounds.South},
		Max: orb.Point{resp.Bounds.East, resp.Bounds.North},
	}
	c.viewport.FitBounds(bound, FitOptions{Padding: 24})

	c.EnsurePointLayers()
	return nil
}

func (c *Controller) RemoveImagery() {
	c.removeIfPresent(layerSentinelImagery, sourceSentinelImagery)
}

func boundFromCorners(corners [4][2]float64) orb.Bound {
	bound := orb.Bound{
		Min: orb.Point{corners[0][0], corners[0][1]},
		Max: orb.Point{corners[0][0], corners[0][1]},
	}
	for _, corner := range corners[1:] {
		bound = bound.Extend(orb.Point{corner[0], corner[1]})
	}
	return bound
}
