// Package store is the single source of truth for client state. Every
// mutation goes through its setter surface, which emits a per-key change
// event followed by stateChanged. Views subscribe to those events; they never
// read widget state to infer anything.
package store

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/geo"
	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/internal/settings"
	"github.com/geo-workbench/client/pkg/logger"
)

// State keys. Each key emits an event of the same name when its value changes.
const (
	KeyCurrentProjectID   = "currentProjectId"
	KeyCurrentProjectName = "currentProjectName"
	KeyPoints             = "points"
	KeyPointCounts        = "pointCounts"
	KeyProjects           = "projects"
	KeyExtractions        = "extractions"
	KeyModels             = "models"
	KeyPredictions        = "predictions"
	KeyExtractionProgress = "extractionProgress"
	KeyTrainingProgress   = "trainingProgress"
	KeyDeploymentProgress = "deploymentProgress"
	KeyClearPointsMode    = "clearPointsMode"
)

// Non-key events emitted on the store's bus.
const (
	EventStateChanged = "stateChanged"
	EventPointsLoaded = "points:loaded"
	EventError        = "error"
	EventNotification = "notification"
)

type StateChange struct {
	Key   string
	Value any
}

type ErrorEvent struct {
	Message string
	Err     error
}

type Notification struct {
	ID      string
	Type    string // "success", "warning", "error", "info"
	Message string
}

type Store struct {
	mu    sync.Mutex
	state map[string]any

	bus      *eventbus.Bus
	api      *api.Client
	settings *settings.Store
}

func New(bus *eventbus.Bus, apiClient *api.Client, persisted *settings.Store) *Store {
	s := &Store{
		state:    make(map[string]any),
		bus:      bus,
		api:      apiClient,
		settings: persisted,
	}

	s.state[KeyPoints] = []geo.LabeledPoint{}
	s.state[KeyPointCounts] = PointCounts{}
	s.state[KeyProjects] = []api.Project{}
	s.state[KeyExtractions] = []api.Extraction{}
	s.state[KeyModels] = []api.Model{}
	s.state[KeyPredictions] = []api.PredictionSummary{}
	s.state[KeyExtractionProgress] = ExtractionState{}
	s.state[KeyTrainingProgress] = TrainingState{}
	s.state[KeyDeploymentProgress] = DeploymentState{}
	s.state[KeyClearPointsMode] = false
	s.state[KeyCurrentProjectID] = ""
	s.state[KeyCurrentProjectName] = ""

	s.restorePersisted()

	return s
}

func (s *Store) restorePersisted() {
	if s.settings == nil {
		return
	}

	id, err := s.settings.Get(settings.KeyCurrentProjectID)
	if err != nil {
		logger.Warn("Failed to restore persisted project id", zap.Error(err))
		return
	}
	name, err := s.settings.Get(settings.KeyCurrentProjectName)
	if err != nil {
		logger.Warn("Failed to restore persisted project name", zap.Error(err))
		return
	}

	if id != "" {
		s.state[KeyCurrentProjectID] = id
		s.state[KeyCurrentProjectName] = name
		logger.Info("Restored persisted project", zap.String("project_id", id))
	}
}

// Get returns the current value for key, or nil when unset.
func (s *Store) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[key]
}

// Set commits value and emits the key event followed by stateChanged, unless
// the new value is identical to the old one. Identity follows reference
// semantics: slices and maps compare by backing pointer, everything
// comparable by value. Callers mutating a held slice must pass a fresh one.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	old := s.state[key]
	if identical(old, value) {
		s.mu.Unlock()
		return
	}
	s.state[key] = value
	s.mu.Unlock()

	metrics.StoreEventsEmitted.WithLabelValues(key).Inc()
	s.bus.Emit(key, value)
	s.bus.Emit(EventStateChanged, StateChange{Key: key, Value: value})
}

// On subscribes to a store event. Key events receive the new value.
func (s *Store) On(name string, handler eventbus.Handler) func() {
	return s.bus.On(name, handler)
}

func (s *Store) Bus() *eventbus.Bus {
	return s.bus
}

func (s *Store) CurrentProjectID() string {
	v, _ := s.Get(KeyCurrentProjectID).(string)
	return v
}

func (s *Store) CurrentProjectName() string {
	v, _ := s.Get(KeyCurrentProjectName).(string)
	return v
}

func (s *Store) ClearPointsMode() bool {
	v, _ := s.Get(KeyClearPointsMode).(bool)
	return v
}

func (s *Store) SetClearPointsMode(on bool) {
	s.Set(KeyClearPointsMode, on)
}

// Notify emits a user-facing notification.
func (s *Store) Notify(kind, message string) {
	s.bus.Emit(EventNotification, Notification{
		ID:      uuid.NewString(),
		Type:    kind,
		Message: message,
	})
}

// fail reports an API rejection: structured log, error event, error
// notification. Nothing retries.
func (s *Store) fail(message string, err error) {
	logger.Error(message, zap.Error(err))
	s.bus.Emit(EventError, ErrorEvent{Message: message, Err: err})
	s.Notify("error", message)
}

func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice, reflect.Map:
		if va.Len() != vb.Len() {
			return false
		}
		if va.Len() == 0 {
			// Two empty values of the same type are interchangeable.
			return true
		}
		return va.Pointer() == vb.Pointer()
	case reflect.Ptr, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	default:
		if !va.Type().Comparable() {
			return false
		}
		return a == b
	}
}
