// Package controller bootstraps the client and owns the orchestration the
// other components stay out of: routing push events into store mutators,
// gating job submission, and the project selection flow.
package controller

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/mapview"
	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/internal/panels"
	"github.com/geo-workbench/client/internal/push"
	"github.com/geo-workbench/client/internal/store"
	"github.com/geo-workbench/client/pkg/logger"
)

type Options struct {
	// Sync runs job submissions on the caller's goroutine. Tests use this.
	Sync bool
}

// EventSource is the push-channel surface the controller consumes.
type EventSource interface {
	On(name string, handler eventbus.Handler) func()
	Connect(ctx context.Context)
}

type App struct {
	bus    *eventbus.Bus
	store  *store.Store
	api    *api.Client
	push   EventSource
	panels *panels.Manager
	mapctl *mapview.Controller
	opts   Options

	mu   sync.Mutex
	jobs map[Job]JobState

	wg sync.WaitGroup
}

func New(bus *eventbus.Bus, st *store.Store, apiClient *api.Client, channel EventSource, pm *panels.Manager, mc *mapview.Controller, opts Options) *App {
	a := &App{
		bus:    bus,
		store:  st,
		api:    apiClient,
		push:   channel,
		panels: pm,
		mapctl: mc,
		opts:   opts,
		jobs: map[Job]JobState{
			JobExtraction: JobIdle,
			JobTraining:   JobIdle,
			JobDeployment: JobIdle,
		},
	}

	a.wire()
	return a
}

// wire attaches push-channel events to store mutators. Extraction and
// training events carry a project_id and are dropped when it does not match
// the current project; deployment events are scoped by the single active
// deployment.
func (a *App) wire() {
	a.push.On(push.EventExtractionProgress, func(p any) {
		ev, ok := p.(*push.ExtractionProgress)
		if !ok || !a.forCurrentProject(ev.ProjectID) {
			return
		}
		a.markRunning(JobExtraction)
		a.store.UpdateExtractionProgress(ev)
	})

	a.push.On(push.EventExtractionComplete, func(p any) {
		ev, ok := p.(*push.ExtractionComplete)
		if !ok || !a.forCurrentProject(ev.ProjectID) {
			return
		}
		a.setJobState(JobExtraction, JobSucceeded)
		a.store.HandleExtractionComplete(context.Background(), ev)
	})

	a.push.On(push.EventExtractionError, func(p any) {
		ev, ok := p.(*push.ExtractionError)
		if !ok || !a.forCurrentProject(ev.ProjectID) {
			return
		}
		a.setJobState(JobExtraction, JobFailed)
		a.store.HandleExtractionError(ev)
	})

	a.push.On(push.EventTrainingProgress, func(p any) {
		ev, ok := p.(*push.TrainingProgress)
		if !ok || !a.forCurrentProject(ev.ProjectID) {
			return
		}
		a.markRunning(JobTraining)
		a.store.UpdateTrainingProgress(ev)
	})

	a.push.On(push.EventTrainingComplete, func(p any) {
		ev, ok := p.(*push.TrainingComplete)
		if !ok || !a.forCurrentProject(ev.ProjectID) {
			return
		}
		a.setJobState(JobTraining, JobSucceeded)
		a.store.HandleTrainingComplete(context.Background(), ev)
	})

	a.push.On(push.EventTrainingError, func(p any) {
		ev, ok := p.(*push.TrainingError)
		if !ok || !a.forCurrentProject(ev.ProjectID) {
			return
		}
		a.setJobState(JobTraining, JobFailed)
		a.store.HandleTrainingError(ev)
	})

	a.push.On(push.EventDeploymentProgress, func(p any) {
		ev, ok := p.(*push.DeploymentProgress)
		if !ok {
			return
		}
		a.markRunning(JobDeployment)
		a.store.UpdateDeploymentProgress(ev)
		if ev.IncrementalPredictions != nil {
			a.mapctl.UpdateDeploymentPredictions(ev.IncrementalPredictions, ev.BoundingBox)
		}
	})

	a.push.On(push.EventDeploymentComplete, func(p any) {
		ev, ok := p.(*push.DeploymentComplete)
		if !ok {
			return
		}
		a.setJobState(JobDeployment, JobSucceeded)
		a.store.HandleDeploymentComplete(context.Background(), ev)
		a.mapctl.DisplayDeploymentPredictions(ev.Predictions, ev.BoundingBox)
	})

	a.push.On(push.EventDeploymentLog, func(p any) {
		ev, ok := p.(*push.DeploymentLog)
		if !ok {
			return
		}
		a.store.HandleDeploymentLog(ev)
	})

	a.push.On(push.EventDeploymentError, func(p any) {
		ev, ok := p.(*push.DeploymentError)
		if !ok {
			return
		}
		a.setJobState(JobDeployment, JobFailed)
		a.store.HandleDeploymentError(ev)
	})

	a.push.On(push.EventConnected, func(any) {
		logger.Info("Connected to backend event stream")
	})
	a.push.On(push.EventDisconnected, func(any) {
		logger.Warn("Backend event stream disconnected")
	})

	// A click with no project selected routes the user to the project modal.
	a.bus.On(mapview.EventProjectRequired, func(any) {
		a.store.Notify("warning", "Select a project before adding points")
		a.panels.OpenPanel(context.Background(), panels.PanelProjectModal)
	})
}

func (a *App) forCurrentProject(projectID string) bool {
	if projectID == a.store.CurrentProjectID() {
		return true
	}
	metrics.PushEventsDropped.Inc()
	return false
}

// Start checks backend reachability, opens the push channel, and opens the
// project modal. Selection is confirmed explicitly each session even when a
// project was restored from local storage.
func (a *App) Start(ctx context.Context) {
	if _, err := a.api.Health(ctx); err != nil {
		logger.Warn("Backend health check failed", zap.Error(err))
		a.store.Notify("error", "Cannot reach the backend server")
	}

	a.push.Connect(ctx)

	a.panels.OpenPanel(ctx, panels.PanelProjectModal)
}

// SelectProject is the project confirmation flow: commit the selection,
// clear the map, then load the project's points and redraw its patches.
func (a *App) SelectProject(ctx context.Context, id, name string) error {
	a.store.SetCurrentProject(id, name)

	a.mapctl.ClearPatches()
	a.mapctl.DisplayDeploymentPredictions(nil, nil)

	if err := a.store.LoadProjectPoints(ctx, ""); err != nil {
		return err
	}

	if err := a.mapctl.VisualizeAllPoints(ctx); err != nil {
		logger.Warn("Failed to load patches for project", zap.Error(err))
	}

	if resp, err := a.api.GetProjectInfo(ctx, id); err == nil && resp.Success && resp.Project.DefaultLocation != nil {
		a.mapctl.ShowProjectLocation(name, *resp.Project.DefaultLocation)
	}

	a.panels.ClosePanel(panels.PanelProjectModal)
	return nil
}

// ShowPrediction fetches a stored prediction set from the deployment panel's
// list and renders it on the map.
func (a *App) ShowPrediction(ctx context.Context, predictionID string) error {
	projectID := a.store.CurrentProjectID()
	if projectID == "" {
		a.store.Notify("warning", "Select a project first")
		return fmt.Errorf("no project selected")
	}

	resp, err := a.api.GetPrediction(ctx, projectID, predictionID)
	if err != nil {
		a.store.Notify("error", "Failed to load prediction")
		return err
	}
	if !resp.Success {
		a.store.Notify("error", resp.Message)
		return fmt.Errorf("get prediction rejected: %s", resp.Message)
	}

	a.mapctl.DisplayPrediction(resp.Prediction, resp.BoundingBox)
	return nil
}

// Wait blocks until background job submissions return.
func (a *App) Wait() {
	a.wg.Wait()
	a.mapctl.Wait()
}
