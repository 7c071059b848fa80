package controller

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/internal/panels"
)

type Job string

const (
	JobExtraction Job = "extraction"
	JobTraining   Job = "training"
	JobDeployment Job = "deployment"
)

type JobState int

const (
	JobIdle JobState = iota
	JobSubmitting
	JobRunning
	JobSucceeded
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobSubmitting:
		return "submitting"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return "idle"
	}
}

type JobEvent struct {
	Job   Job
	State JobState
}

func (a *App) JobStateOf(job Job) JobState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.jobs[job]
}

// CanRun reports whether the job's run action is enabled. The button is
// disabled while a submission is outstanding or the job is streaming.
func (a *App) CanRun(job Job) bool {
	s := a.JobStateOf(job)
	return s != JobSubmitting && s != JobRunning
}

func (a *App) setJobState(job Job, state JobState) {
	a.mu.Lock()
	a.jobs[job] = state
	a.mu.Unlock()

	a.bus.Emit("job:"+string(job), JobEvent{Job: job, State: state})
}

// markRunning promotes a submitting job when its first progress event lands.
func (a *App) markRunning(job Job) {
	a.mu.Lock()
	if a.jobs[job] != JobSubmitting {
		a.mu.Unlock()
		return
	}
	a.jobs[job] = JobRunning
	a.mu.Unlock()

	a.bus.Emit("job:"+string(job), JobEvent{Job: job, State: JobRunning})
}

type ExtractForm struct {
	Collection     string
	StartDate      string
	EndDate        string
	ChipSize       int
	ClearThreshold float64
}

type TrainForm struct {
	ModelName       string
	ExtractionFiles []string
	BatchSize       int
	Epochs          int
	TestSplit       float64
	Augmentation    bool
}

type DeployForm struct {
	ModelName      string
	StartDate      string
	EndDate        string
	PredThreshold  float64
	ClearThreshold float64
	TileSize       int
	TilePadding    int
	BatchSize      int
	Region         *geojson.Feature
	Tries          int
}

// RunExtraction validates the form and submits a project-wide extraction.
// The POST stays outstanding until the job finishes server-side; progress
// arrives over the push channel and drives the Running state.
func (a *App) RunExtraction(ctx context.Context, form ExtractForm) error {
	if form.StartDate == "" || form.EndDate == "" {
		a.store.Notify("warning", "Start and end dates are required")
		return fmt.Errorf("missing date range")
	}
	if !a.CanRun(JobExtraction) {
		a.store.Notify("warning", "An extraction is already running")
		return fmt.Errorf("extraction already in progress")
	}

	a.setJobState(JobExtraction, JobSubmitting)
	metrics.JobsSubmitted.WithLabelValues(string(JobExtraction), "submitted").Inc()

	a.submit(func() {
		err := a.store.ExtractData(ctx, api.ExtractRequest{
			Collection:     form.Collection,
			StartDate:      form.StartDate,
			EndDate:        form.EndDate,
			ChipSize:       form.ChipSize,
			ClearThreshold: form.ClearThreshold,
		})
		a.finishSubmission(JobExtraction, err)
	})

	return nil
}

// RunTraining validates the form and submits a training job. When no
// extraction files are picked, the canonical project dataset is selected
// automatically.
func (a *App) RunTraining(ctx context.Context, form TrainForm) error {
	if form.ModelName == "" {
		a.store.Notify("warning", "A model name is required")
		return fmt.Errorf("missing model name")
	}

	if len(form.ExtractionFiles) == 0 {
		for _, e := range a.store.Extractions() {
			if e.IsProjectData {
				form.ExtractionFiles = []string{e.Filename}
				break
			}
		}
	}
	if len(form.ExtractionFiles) == 0 {
		a.store.Notify("warning", "No extracted data to train on")
		a.panels.OpenPanel(ctx, panels.PanelExtract)
		return fmt.Errorf("no extraction files")
	}

	if !a.CanRun(JobTraining) {
		a.store.Notify("warning", "Training is already running")
		return fmt.Errorf("training already in progress")
	}

	a.setJobState(JobTraining, JobSubmitting)
	metrics.JobsSubmitted.WithLabelValues(string(JobTraining), "submitted").Inc()

	a.submit(func() {
		err := a.store.TrainModel(ctx, api.TrainRequest{
			ModelName:       form.ModelName,
			ExtractionFiles: form.ExtractionFiles,
			BatchSize:       form.BatchSize,
			Epochs:          form.Epochs,
			TestSplit:       form.TestSplit,
			Augmentation:    form.Augmentation,
		})
		a.finishSubmission(JobTraining, err)
	})

	return nil
}

// RunDeployment validates the form and submits a deployment. A missing
// region defaults to the current viewport bounds.
func (a *App) RunDeployment(ctx context.Context, form DeployForm) error {
	if form.ModelName == "" {
		a.store.Notify("warning", "Select a model to deploy")
		return fmt.Errorf("missing model selection")
	}
	if form.StartDate == "" || form.EndDate == "" {
		a.store.Notify("warning", "Start and end dates are required")
		return fmt.Errorf("missing date range")
	}
	if !a.CanRun(JobDeployment) {
		a.store.Notify("warning", "A deployment is already running")
		return fmt.Errorf("deployment already in progress")
	}

	if form.Region == nil {
		form.Region = a.mapctl.ViewportRegion()
	}

	a.setJobState(JobDeployment, JobSubmitting)
	metrics.JobsSubmitted.WithLabelValues(string(JobDeployment), "submitted").Inc()

	a.submit(func() {
		err := a.store.DeployModel(ctx, api.DeployRequest{
			ModelName:      form.ModelName,
			StartDate:      form.StartDate,
			EndDate:        form.EndDate,
			PredThreshold:  form.PredThreshold,
			ClearThreshold: form.ClearThreshold,
			TileSize:       form.TileSize,
			TilePadding:    form.TilePadding,
			BatchSize:      form.BatchSize,
			Region:         form.Region,
			Tries:          form.Tries,
		})
		a.finishSubmission(JobDeployment, err)
	})

	return nil
}

func (a *App) submit(fn func()) {
	if a.opts.Sync {
		fn()
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// finishSubmission resolves the job state once the POST returns. A rejected
// POST fails the job; a successful return after the terminal push event
// leaves that event's verdict in place.
func (a *App) finishSubmission(job Job, err error) {
	if err != nil {
		metrics.JobsSubmitted.WithLabelValues(string(job), "rejected").Inc()
		a.setJobState(job, JobFailed)
		return
	}

	a.mu.Lock()
	state := a.jobs[job]
	a.mu.Unlock()

	if state == JobSubmitting || state == JobRunning {
		a.setJobState(job, JobSucceeded)
	}
}
