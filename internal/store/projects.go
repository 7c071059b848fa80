package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/geo"
	"github.com/geo-workbench/client/internal/settings"
	"github.com/geo-workbench/client/pkg/logger"
)

// SetCurrentProject switches the selection and clears everything owned by the
// previous project: points, lists, progress snapshots. The id and name are
// persisted so the next session restores them.
func (s *Store) SetCurrentProject(id, name string) {
	if s.settings != nil {
		if err := s.settings.Set(settings.KeyCurrentProjectID, id); err != nil {
			logger.Warn("Failed to persist project id", zap.Error(err))
		}
		if err := s.settings.Set(settings.KeyCurrentProjectName, name); err != nil {
			logger.Warn("Failed to persist project name", zap.Error(err))
		}
	}

	s.Set(KeyCurrentProjectID, id)
	s.Set(KeyCurrentProjectName, name)

	s.Set(KeyPoints, []geo.LabeledPoint{})
	s.Set(KeyPointCounts, PointCounts{})
	s.Set(KeyExtractions, []api.Extraction{})
	s.Set(KeyModels, []api.Model{})
	s.Set(KeyPredictions, []api.PredictionSummary{})
	s.Set(KeyExtractionProgress, ExtractionState{})
	s.Set(KeyTrainingProgress, TrainingState{})
	s.Set(KeyDeploymentProgress, DeploymentState{})

	logger.Info("Current project changed",
		zap.String("project_id", id),
		zap.String("name", name),
	)
}

// CreateProject creates a project server-side and returns its slug.
func (s *Store) CreateProject(ctx context.Context, name string, chipSize int) (string, error) {
	resp, err := s.api.CreateProject(ctx, name, chipSize)
	if err != nil {
		s.fail("Failed to create project", err)
		return "", err
	}
	if !resp.Success {
		err := fmt.Errorf("create project rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return "", err
	}

	s.Notify("success", fmt.Sprintf("Project '%s' created", name))
	return resp.ProjectID, nil
}

// DeleteProject removes a project server-side and refreshes the project list.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	resp, err := s.api.DeleteProject(ctx, projectID)
	if err != nil {
		s.fail("Failed to delete project", err)
		return err
	}
	if !resp.Success {
		err := fmt.Errorf("delete project rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return err
	}

	s.Notify("success", "Project deleted")

	if _, err := s.LoadProjects(ctx); err != nil {
		logger.Warn("Failed to refresh project list after delete", zap.Error(err))
	}
	return nil
}

func (s *Store) LoadProjects(ctx context.Context) ([]api.Project, error) {
	resp, err := s.api.ListProjects(ctx)
	if err != nil {
		s.fail("Failed to load projects", err)
		return nil, err
	}
	if !resp.Success {
		err := fmt.Errorf("list projects rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return nil, err
	}

	s.Set(KeyProjects, resp.Projects)
	return resp.Projects, nil
}

func (s *Store) LoadExtractions(ctx context.Context) ([]api.Extraction, error) {
	projectID := s.CurrentProjectID()
	if projectID == "" {
		return nil, fmt.Errorf("no project selected")
	}

	resp, err := s.api.ListExtractedData(ctx, projectID)
	if err != nil {
		s.fail("Failed to load extractions", err)
		return nil, err
	}
	if !resp.Success {
		err := fmt.Errorf("list extractions rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return nil, err
	}

	s.Set(KeyExtractions, resp.Extractions)
	return resp.Extractions, nil
}

func (s *Store) LoadModels(ctx context.Context) ([]api.Model, error) {
	projectID := s.CurrentProjectID()
	if projectID == "" {
		return nil, fmt.Errorf("no project selected")
	}

	resp, err := s.api.ListModels(ctx, projectID)
	if err != nil {
		s.fail("Failed to load models", err)
		return nil, err
	}
	if !resp.Success {
		err := fmt.Errorf("list models rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return nil, err
	}

	s.Set(KeyModels, resp.Models)
	return resp.Models, nil
}

func (s *Store) LoadPredictions(ctx context.Context) ([]api.PredictionSummary, error) {
	projectID := s.CurrentProjectID()
	if projectID == "" {
		return nil, fmt.Errorf("no project selected")
	}

	resp, err := s.api.GetPredictions(ctx, projectID)
	if err != nil {
		s.fail("Failed to load predictions", err)
		return nil, err
	}
	if !resp.Success {
		err := fmt.Errorf("get predictions rejected: %s", resp.Message)
		s.fail(resp.Message, err)
		return nil, err
	}

	s.Set(KeyPredictions, resp.Predictions)
	return resp.Predictions, nil
}

func (s *Store) Extractions() []api.Extraction {
	v, _ := s.Get(KeyExtractions).([]api.Extraction)
	return v
}

func (s *Store) Models() []api.Model {
	v, _ := s.Get(KeyModels).([]api.Model)
	return v
}
