package store

import (
	"context"
	"fmt"

	"github.com/geo-workbench/client/internal/geo"
)

// Points returns the current point list. The slice is shared; treat it as
// read-only.
func (s *Store) Points() []geo.LabeledPoint {
	v, _ := s.Get(KeyPoints).([]geo.LabeledPoint)
	return v
}

func (s *Store) PointCountsSnapshot() PointCounts {
	v, _ := s.Get(KeyPointCounts).(PointCounts)
	return v
}

// AddPoint appends a point and recomputes counts. Emits points, then
// pointCounts.
func (s *Store) AddPoint(p geo.LabeledPoint) {
	points := s.Points()
	next := make([]geo.LabeledPoint, 0, len(points)+1)
	next = append(next, points...)
	next = append(next, p)

	s.Set(KeyPoints, next)
	s.Set(KeyPointCounts, countPoints(next))
}

// RemovePoint drops the point with the given id, if present.
func (s *Store) RemovePoint(id int64) {
	points := s.Points()
	next := make([]geo.LabeledPoint, 0, len(points))
	for _, p := range points {
		if p.ID != id {
			next = append(next, p)
		}
	}

	s.Set(KeyPoints, next)
	s.Set(KeyPointCounts, countPoints(next))
}

func (s *Store) ClearPoints() {
	s.Set(KeyPoints, []geo.LabeledPoint{})
	s.Set(KeyPointCounts, PointCounts{})
}

// LoadProjectPoints replaces the point list with the server's persisted set
// for the current project. Emits points:loaded after the points event.
func (s *Store) LoadProjectPoints(ctx context.Context, filename string) error {
	projectID := s.CurrentProjectID()
	if projectID == "" {
		return fmt.Errorf("no project selected")
	}

	resp, err := s.api.LoadPoints(ctx, projectID, filename)
	if err != nil {
		s.fail("Failed to load project points", err)
		return err
	}
	if !resp.Success {
		err := fmt.Errorf("load points rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return err
	}

	if resp.GeoJSON == nil {
		return nil
	}

	points := geo.PointsFromCollection(resp.GeoJSON)
	s.Set(KeyPoints, points)
	s.Set(KeyPointCounts, countPoints(points))
	s.bus.Emit(EventPointsLoaded, points)

	return nil
}

// ExportPoints sends the current point set to the server. Invoked after every
// point mutation while a project is selected.
func (s *Store) ExportPoints(ctx context.Context) error {
	projectID := s.CurrentProjectID()
	if projectID == "" {
		return fmt.Errorf("no project selected")
	}

	fc := geo.PointsToCollection(s.Points())

	resp, err := s.api.ExportPoints(ctx, projectID, fc)
	if err != nil {
		s.fail("Failed to export points", err)
		return err
	}
	if !resp.Success {
		err := fmt.Errorf("export rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return err
	}

	return nil
}

func countPoints(points []geo.LabeledPoint) PointCounts {
	var counts PointCounts
	for _, p := range points {
		switch p.Class {
		case geo.ClassNegative:
			counts.Negative++
		default:
			counts.Positive++
		}
	}
	counts.Total = counts.Positive + counts.Negative
	return counts
}
