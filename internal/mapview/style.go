package mapview

import (
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/geo-workbench/client/pkg/logger"
)

type patchSnapshot struct {
	sourceID string
	layerID  string
	source   SourceSpec
	layer    LayerSpec
}

type styleSnapshot struct {
	points      *geojson.FeatureCollection
	predictions *geojson.FeatureCollection
	deployPred  *geojson.FeatureCollection
	deployBBox  *geojson.FeatureCollection
	patches     []patchSnapshot
}

// ChangeMapStyle swaps the basemap style. Setting a style wipes the
// viewport's source/layer registry, so with preserveData the controller
// snapshots every owned source from the live viewport first and restores the
// whole stack inside the next style.load callback. A failure restoring one
// item must not prevent the rest from coming back. Without preserveData the
// overlays are dropped, but the point layers still come back inside
// style.load, seeded from the store.
func (c *Controller) ChangeMapStyle(style string, preserveData bool) {
	if !preserveData {
		c.mu.Lock()
		c.patchTokens = nil
		c.mu.Unlock()

		c.viewport.Once(EventStyleLoad, func(any) {
			c.EnsurePointLayers()
			c.bus.Emit(EventStyleLoaded, style)
		})
		c.viewport.SetStyle(style)
		return
	}

	snap := c.snapshot()

	c.viewport.Once(EventStyleLoad, func(any) {
		c.restore(snap)
		c.bus.Emit(EventStyleLoaded, style)
	})

	c.viewport.SetStyle(style)
}

func (c *Controller) snapshot() styleSnapshot {
	var snap styleSnapshot

	if data, ok := c.viewport.GetSourceData(sourcePoints); ok {
		snap.points = data
	}
	if data, ok := c.viewport.GetSourceData(sourcePredictions); ok {
		snap.predictions = data
	}
	if data, ok := c.viewport.GetSourceData(sourceDeployPredictions); ok {
		snap.deployPred = data
	}
	if data, ok := c.viewport.GetSourceData(sourceDeployBBox); ok {
		snap.deployBBox = data
	}

	for _, token := range c.patchTokenSnapshot() {
		sourceID := patchSourcePrefix + token
		layerID := patchLayerPrefix + token

		source, ok := c.viewport.GetSource(sourceID)
		if !ok {
			continue
		}
		layer, _ := c.viewport.GetLayer(layerID)

		snap.patches = append(snap.patches, patchSnapshot{
			sourceID: sourceID,
			layerID:  layerID,
			source:   source,
			layer:    layer,
		})
	}

	return snap
}

// restore re-adds sources and layers in a fixed order: points first, then
// prediction layers, then every patch source followed by every patch layer.
func (c *Controller) restore(snap styleSnapshot) {
	c.restoreItem("points", func() {
		if snap.points != nil {
			if err := c.viewport.AddSource(sourcePoints, SourceSpec{Type: SourceGeoJSON, Data: snap.points}); err != nil {
				logger.Warn("Failed to restore points source", zap.Error(err))
			}
		}
		c.EnsurePointLayers()
	})

	c.restoreItem("predictions", func() {
		if snap.predictions == nil {
			return
		}
		if err := c.viewport.AddSource(sourcePredictions, SourceSpec{Type: SourceGeoJSON, Data: snap.predictions}); err != nil {
			logger.Warn("Failed to restore predictions source", zap.Error(err))
			return
		}
		if err := c.viewport.AddLayer(predictionLineLayer(layerPredictions, sourcePredictions), ""); err != nil {
			logger.Warn("Failed to restore predictions layer", zap.Error(err))
		}
	})

	c.restoreItem("deployment predictions", func() {
		if snap.deployPred == nil {
			return
		}
		if err := c.viewport.AddSource(sourceDeployPredictions, SourceSpec{Type: SourceGeoJSON, Data: snap.deployPred}); err != nil {
			logger.Warn("Failed to restore deployment predictions source", zap.Error(err))
			return
		}
		if err := c.viewport.AddLayer(predictionLineLayer(layerDeployPredictions, sourceDeployPredictions), ""); err != nil {
			logger.Warn("Failed to restore deployment predictions layer", zap.Error(err))
		}
	})

	c.restoreItem("deployment bbox", func() {
		if snap.deployBBox == nil || len(snap.deployBBox.Features) == 0 {
			return
		}
		c.addDeploymentBBox(snap.deployBBox.Features[0])
	})

	for _, patch := range snap.patches {
		patch := patch
		c.restoreItem("patch source "+patch.sourceID, func() {
			if err := c.viewport.AddSource(patch.sourceID, patch.source); err != nil {
				logger.Warn("Failed to restore patch source", zap.String("source", patch.sourceID), zap.Error(err))
			}
		})
	}
	for _, patch := range snap.patches {
		layer := validatePatchLayer(patch)
		if layer == nil {
			logger.Warn("Skipping invalid patch layer config", zap.String("layer", patch.layerID))
			continue
		}
		patchLayer := *layer
		c.restoreItem("patch layer "+patch.layerID, func() {
			if err := c.viewport.AddLayer(patchLayer, ""); err != nil {
				logger.Warn("Failed to restore patch layer", zap.String("layer", patchLayer.ID), zap.Error(err))
			}
		})
	}

	c.restoreItem("point layer order", c.EnsurePointLayers)
}

// restoreItem swallows a panic from one restoration step so one bad item
// cannot take down the rest of the stack.
func (c *Controller) restoreItem(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Style restore step failed",
				zap.String("step", name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

// validatePatchLayer normalizes a snapshotted layer config: a missing type
// defaults to raster, a missing raster-opacity defaults to 0.8, and a config
// without an id or source is rejected.
func validatePatchLayer(patch patchSnapshot) *LayerSpec {
	layer := patch.layer

	if layer.ID == "" {
		layer.ID = patch.layerID
	}
	if layer.Source == "" {
		layer.Source = patch.sourceID
	}
	if layer.ID == "" || layer.Source == "" {
		return nil
	}

	if layer.Type == "" {
		layer.Type = LayerRaster
	}
	if layer.Paint == nil {
		layer.Paint = map[string]any{}
	}
	if _, ok := layer.Paint["raster-opacity"]; !ok {
		layer.Paint["raster-opacity"] = defaultRasterOpacity
	}

	return &layer
}
