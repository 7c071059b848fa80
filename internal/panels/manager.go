// Package panels is the state machine over the named UI panels. At most one
// panel is active; opening a panel enforces its preconditions, loads the
// lists it displays through the store, and marks the matching sidebar button.
// Widget markup is out of scope: views subscribe to the bus events emitted
// here.
package panels

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/internal/store"
	"github.com/geo-workbench/client/pkg/logger"
)

const (
	PanelControl       = "control-panel"
	PanelExtract       = "extract-panel"
	PanelVisualization = "visualization-panel"
	PanelProjectModal  = "project-modal"
	PanelTraining      = "training-panel"
	PanelDeployment    = "deployment-panel"
	PanelMapImagery    = "map-imagery-panel"
)

// Bus events.
const (
	EventPanelOpened    = "panel:opened"
	EventPanelClosed    = "panel:closed"
	EventSidebarReset   = "sidebar:reset"
	EventExtractReset   = "panel:extract:reset"
)

type OpenedEvent struct {
	Panel  string
	Button string
}

type Manager struct {
	store   *store.Store
	bus     *eventbus.Bus
	buttons map[string]string

	mu     sync.Mutex
	active string
	forms  map[string]*Form

	now func() time.Time
}

func NewManager(st *store.Store, bus *eventbus.Bus, buttons map[string]string) *Manager {
	return &Manager{
		store:   st,
		bus:     bus,
		buttons: buttons,
		forms:   make(map[string]*Form),
		now:     time.Now,
	}
}

// Active returns the name of the open panel, or "".
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// OpenPanel activates a panel after applying preconditions: everything except
// the project modal needs a selected project, and the extract and
// visualization panels need at least one point. Failing a precondition
// diverts to the panel where the user can fix it.
func (m *Manager) OpenPanel(ctx context.Context, name string) {
	if name != PanelProjectModal && m.store.CurrentProjectID() == "" {
		m.store.Notify("warning", "Select a project first")
		m.OpenPanel(ctx, PanelProjectModal)
		return
	}

	if (name == PanelExtract || name == PanelVisualization) &&
		m.store.CurrentProjectID() != "" && len(m.store.Points()) == 0 {
		m.store.Notify("warning", "Add some points to the map first")
		m.OpenPanel(ctx, PanelControl)
		return
	}

	m.CloseAllPanels()

	m.mu.Lock()
	m.active = name
	m.mu.Unlock()

	metrics.PanelOpens.WithLabelValues(name).Inc()
	m.bus.Emit(EventPanelOpened, OpenedEvent{Panel: name, Button: m.buttons[name]})

	m.initPanel(ctx, name)
}

// ClosePanel deactivates the named panel and resets the sidebar to its
// default state.
func (m *Manager) ClosePanel(name string) {
	m.mu.Lock()
	if m.active != name {
		m.mu.Unlock()
		return
	}
	m.active = ""
	m.mu.Unlock()

	if name == PanelExtract {
		// The extraction widget resets; a running job keeps streaming into
		// the store regardless.
		m.bus.Emit(EventExtractReset, nil)
	}

	m.bus.Emit(EventPanelClosed, name)
	m.bus.Emit(EventSidebarReset, nil)
}

func (m *Manager) CloseAllPanels() {
	m.mu.Lock()
	active := m.active
	m.active = ""
	m.mu.Unlock()

	if active != "" {
		if active == PanelExtract {
			m.bus.Emit(EventExtractReset, nil)
		}
		m.bus.Emit(EventPanelClosed, active)
	}
	m.bus.Emit(EventSidebarReset, nil)
}

func (m *Manager) initPanel(ctx context.Context, name string) {
	m.ensureDefaultForm(name)

	var err error
	switch name {
	case PanelProjectModal:
		_, err = m.store.LoadProjects(ctx)
	case PanelVisualization, PanelExtract:
		_, err = m.store.LoadExtractions(ctx)
	case PanelTraining:
		if _, err = m.store.LoadExtractions(ctx); err == nil {
			_, err = m.store.LoadModels(ctx)
		}
	case PanelDeployment:
		if _, err = m.store.LoadModels(ctx); err == nil {
			_, err = m.store.LoadPredictions(ctx)
		}
	}

	if err != nil {
		logger.Warn("Panel initializer failed",
			zap.String("panel", name),
			zap.Error(err),
		)
	}
}
