package mapview

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/geo"
	"github.com/geo-workbench/client/pkg/logger"
)

// runPointPipeline is the add-point flow: export the point set, look up the
// project's chip size, extract data for the new point, then append its patch
// to the display. Each stage surfaces its own error; a failed stage stops the
// pipeline but leaves the point in place.
func (c *Controller) runPointPipeline(ctx context.Context, point geo.LabeledPoint) {
	projectID := c.store.CurrentProjectID()
	if projectID == "" {
		return
	}

	if err := c.store.ExportPoints(ctx); err != nil {
		return
	}

	chipSize, collection := c.projectExtractionParams(ctx, projectID)

	resp, err := c.api.ExtractPointData(ctx, api.ExtractPointRequest{
		ProjectID:  projectID,
		Point:      point.ToFeature(),
		Collection: collection,
		ChipSize:   chipSize,
	})
	if err != nil {
		logger.Error("Single-point extraction failed", zap.Error(err))
		c.store.Notify("error", "Failed to extract data for new point")
		return
	}
	if !resp.Success {
		logger.Error("Single-point extraction rejected", zap.String("message", resp.Message))
		c.store.Notify("error", resp.Message)
		return
	}

	if err := c.VisualizeSinglePoint(ctx, projectID, point.ID); err != nil {
		logger.Warn("Failed to visualize new point", zap.Error(err))
	}
}

// removePointFlow drops the point, re-exports, and re-renders every patch
// from scratch. Patches carry no point identity, so surgical removal is not
// possible.
func (c *Controller) removePointFlow(ctx context.Context, id int64) {
	c.store.RemovePoint(id)

	if err := c.store.ExportPoints(ctx); err != nil {
		return
	}

	c.ClearPatches()

	if err := c.VisualizeAllPoints(ctx); err != nil {
		logger.Warn("Failed to re-visualize after point removal", zap.Error(err))
	}
}

// VisualizeSinglePoint fetches the patch for one point from the most recent
// extraction and appends it without clearing existing overlays.
func (c *Controller) VisualizeSinglePoint(ctx context.Context, projectID string, pointID int64) error {
	file, err := c.latestExtractionFile(ctx, projectID)
	if err != nil {
		return err
	}
	if file == "" {
		return nil
	}

	resp, err := c.api.GetPatchVisualization(ctx, projectID, file, c.opts.VisType, strconv.FormatInt(pointID, 10))
	if err != nil {
		return err
	}
	if !resp.Success {
		logger.Warn("Patch visualization rejected", zap.String("message", resp.Message))
		return nil
	}

	for _, patch := range resp.Patches {
		if err := c.AddPatch(patch); err != nil {
			logger.Warn("Failed to overlay patch", zap.Error(err))
		}
	}
	return nil
}

// VisualizeAllPoints redraws every patch from the most recent extraction.
func (c *Controller) VisualizeAllPoints(ctx context.Context) error {
	projectID := c.store.CurrentProjectID()
	if projectID == "" {
		return nil
	}

	file, err := c.latestExtractionFile(ctx, projectID)
	if err != nil {
		return err
	}
	if file == "" {
		return nil
	}

	resp, err := c.api.GetPatchVisualization(ctx, projectID, file, c.opts.VisType, "")
	if err != nil {
		return err
	}
	if !resp.Success {
		logger.Warn("Patch visualization rejected", zap.String("message", resp.Message))
		return nil
	}

	c.DisplayPatches(resp.Patches)
	return nil
}

func (c *Controller) latestExtractionFile(ctx context.Context, projectID string) (string, error) {
	resp, err := c.api.ListExtractedData(ctx, projectID)
	if err != nil {
		return "", err
	}
	if !resp.Success || len(resp.Extractions) == 0 {
		return "", nil
	}

	latest := resp.Extractions[0]
	for _, e := range resp.Extractions[1:] {
		if e.Created > latest.Created {
			latest = e
		}
	}
	return latest.Filename, nil
}

func (c *Controller) projectExtractionParams(ctx context.Context, projectID string) (int, string) {
	chipSize := 64
	collection := c.opts.DefaultCollection

	resp, err := c.api.GetProjectInfo(ctx, projectID)
	if err != nil {
		logger.Warn("Failed to fetch project info, using defaults", zap.Error(err))
		return chipSize, collection
	}
	if !resp.Success {
		return chipSize, collection
	}

	if resp.Project.ChipSize > 0 {
		chipSize = resp.Project.ChipSize
	}
	if resp.Project.DataSource != "" {
		collection = resp.Project.DataSource
	}
	return chipSize, collection
}
