package store

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/push"
	"github.com/geo-workbench/client/pkg/logger"
)

// Server log lines arrive prefixed like "INFO:deploy: message"; the prefix is
// stripped before display.
var logPrefixRe = regexp.MustCompile(`^(INFO|DEBUG|WARNING|ERROR):[^:]*:\s*`)

// ExtractData submits a project-wide extraction. The POST does not return
// until the job finishes server-side, so callers run it off the main flow;
// progress arrives over the push channel meanwhile.
func (s *Store) ExtractData(ctx context.Context, req api.ExtractRequest) error {
	req.ProjectID = s.CurrentProjectID()
	if req.ProjectID == "" {
		return fmt.Errorf("no project selected")
	}

	s.Set(KeyExtractionProgress, ExtractionState{
		InProgress: true,
		Message:    "Starting extraction...",
	})

	resp, err := s.api.ExtractData(ctx, req)
	if err != nil {
		s.Set(KeyExtractionProgress, ExtractionState{Message: "Error: " + err.Error()})
		s.fail("Failed to start extraction", err)
		return err
	}
	if !resp.Success {
		err := fmt.Errorf("extraction rejected: %s", resp.Message)
		s.Set(KeyExtractionProgress, ExtractionState{Message: "Error: " + resp.Message})
		s.fail(resp.Message, err)
		return err
	}

	return nil
}

func (s *Store) TrainModel(ctx context.Context, req api.TrainRequest) error {
	req.ProjectID = s.CurrentProjectID()
	if req.ProjectID == "" {
		return fmt.Errorf("no project selected")
	}

	s.Set(KeyTrainingProgress, TrainingState{
		InProgress:  true,
		TotalEpochs: req.Epochs,
	})

	resp, err := s.api.TrainModel(ctx, req)
	if err != nil {
		s.Set(KeyTrainingProgress, TrainingState{})
		s.fail("Failed to start training", err)
		return err
	}
	if !resp.Success {
		err := fmt.Errorf("training rejected: %s", resp.Message)
		s.Set(KeyTrainingProgress, TrainingState{})
		s.fail(resp.Message, err)
		return err
	}

	return nil
}

func (s *Store) DeployModel(ctx context.Context, req api.DeployRequest) error {
	req.ProjectID = s.CurrentProjectID()
	if req.ProjectID == "" {
		return fmt.Errorf("no project selected")
	}

	s.Set(KeyDeploymentProgress, DeploymentState{
		InProgress: true,
		Message:    "Starting deployment...",
	})

	resp, err := s.api.DeployModel(ctx, req)
	if err != nil {
		s.Set(KeyDeploymentProgress, DeploymentState{Message: "Error: " + err.Error()})
		s.fail("Failed to start deployment", err)
		return err
	}
	if !resp.Success {
		err := fmt.Errorf("deployment rejected: %s", resp.Message)
		s.Set(KeyDeploymentProgress, DeploymentState{Message: "Error: " + resp.Message})
		s.fail(resp.Message, err)
		return err
	}

	return nil
}

// Push-channel handlers. The application controller filters on project id
// before calling these.

func (s *Store) UpdateExtractionProgress(ev *push.ExtractionProgress) {
	s.Set(KeyExtractionProgress, ExtractionState{
		InProgress: true,
		Percent:    ev.Progress,
		Current:    ev.Current,
		Total:      ev.Total,
		Message:    fmt.Sprintf("Extracting chip %d/%d", ev.Current, ev.Total),
	})
}

func (s *Store) HandleExtractionComplete(ctx context.Context, ev *push.ExtractionComplete) {
	s.Set(KeyExtractionProgress, ExtractionState{
		Percent: 100,
		Current: ev.Metadata.NumChips,
		Total:   ev.Metadata.NumChips,
		Message: fmt.Sprintf("Extraction complete: %d chips", ev.Metadata.NumChips),
	})
	s.Notify("success", fmt.Sprintf("Extracted %d chips", ev.Metadata.NumChips))

	if _, err := s.LoadExtractions(ctx); err != nil {
		logger.Warn("Failed to reload extractions after completion", zap.Error(err))
	}
}

func (s *Store) HandleExtractionError(ev *push.ExtractionError) {
	s.Set(KeyExtractionProgress, ExtractionState{Message: "Error: " + ev.Error})
	s.Notify("error", "Extraction failed: "+ev.Error)
}

func (s *Store) UpdateTrainingProgress(ev *push.TrainingProgress) {
	s.Set(KeyTrainingProgress, TrainingState{
		InProgress:  true,
		Percent:     ev.Progress,
		Epoch:       ev.CurrentEpoch,
		TotalEpochs: ev.TotalEpochs,
		Logs:        ev.Logs,
	})
}

func (s *Store) HandleTrainingComplete(ctx context.Context, ev *push.TrainingComplete) {
	prev, _ := s.Get(KeyTrainingProgress).(TrainingState)

	s.Set(KeyTrainingProgress, TrainingState{
		Percent:     100,
		Epoch:       prev.TotalEpochs,
		TotalEpochs: prev.TotalEpochs,
		Logs:        prev.Logs,
	})
	s.Notify("success", fmt.Sprintf("Model '%s' trained (val_acc %.3f)", ev.ModelName, ev.Metrics.ValAccuracy))

	if _, err := s.LoadModels(ctx); err != nil {
		logger.Warn("Failed to reload models after training", zap.Error(err))
	}
}

func (s *Store) HandleTrainingError(ev *push.TrainingError) {
	s.Set(KeyTrainingProgress, TrainingState{})
	s.Notify("error", "Training failed: "+ev.Error)
}

func (s *Store) UpdateDeploymentProgress(ev *push.DeploymentProgress) {
	prev, _ := s.Get(KeyDeploymentProgress).(DeploymentState)

	message := prev.Message
	if ev.Status != "" {
		message = ev.Status
	}

	s.Set(KeyDeploymentProgress, DeploymentState{
		InProgress: true,
		Percent:    ev.Progress * 100,
		Message:    message,
	})
}

// HandleDeploymentLog keeps the most recent server log line, with the
// standard log prefix stripped, as the progress message.
func (s *Store) HandleDeploymentLog(ev *push.DeploymentLog) {
	prev, _ := s.Get(KeyDeploymentProgress).(DeploymentState)

	s.Set(KeyDeploymentProgress, DeploymentState{
		InProgress: prev.InProgress,
		Percent:    prev.Percent,
		Message:    logPrefixRe.ReplaceAllString(ev.Message, ""),
	})
}

func (s *Store) HandleDeploymentComplete(ctx context.Context, ev *push.DeploymentComplete) {
	s.Set(KeyDeploymentProgress, DeploymentState{
		Percent: 100,
		Message: "Deployment complete",
	})

	count := 0
	if ev.Predictions != nil {
		count = len(ev.Predictions.Features)
	}
	s.Notify("success", fmt.Sprintf("Deployment complete: %d predictions", count))

	if _, err := s.LoadPredictions(ctx); err != nil {
		logger.Warn("Failed to reload predictions after deployment", zap.Error(err))
	}
}

func (s *Store) HandleDeploymentError(ev *push.DeploymentError) {
	s.Set(KeyDeploymentProgress, DeploymentState{Message: "Error: " + ev.Error})
	s.Notify("error", "Deployment failed: "+ev.Error)
}
