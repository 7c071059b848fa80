package mapview

import (
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geo-workbench/client/internal/eventbus"
)

// Headless is an in-memory Viewport. It keeps the same registry semantics as
// a real vector map: ordered layers, id-addressed sources, and a style swap
// that wipes both and then emits style.load. It backs tests and headless
// runs; pointer events are injected through Click, ContextMenu, and MouseMove.
type Headless struct {
	mu     sync.Mutex
	style  string
	cursor string

	sources map[string]SourceSpec
	layers  []LayerSpec

	markers []marker

	lastFit *orb.Bound

	bus *eventbus.Bus
}

type marker struct {
	at    LngLat
	popup string
}

func NewHeadless(style string) *Headless {
	return &Headless{
		style:   style,
		sources: make(map[string]SourceSpec),
		bus:     eventbus.New(),
	}
}

func (h *Headless) AddSource(id string, src SourceSpec) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.sources[id]; exists {
		return fmt.Errorf("source %q already exists", id)
	}
	h.sources[id] = src
	return nil
}

func (h *Headless) RemoveSource(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.sources[id]; !exists {
		return fmt.Errorf("source %q does not exist", id)
	}
	delete(h.sources, id)
	return nil
}

func (h *Headless) GetSource(id string) (SourceSpec, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	src, ok := h.sources[id]
	return src, ok
}

func (h *Headless) SetSourceData(id string, fc *geojson.FeatureCollection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	src, ok := h.sources[id]
	if !ok {
		return fmt.Errorf("source %q does not exist", id)
	}
	src.Data = fc
	h.sources[id] = src
	return nil
}

func (h *Headless) GetSourceData(id string) (*geojson.FeatureCollection, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	src, ok := h.sources[id]
	if !ok || src.Type != SourceGeoJSON {
		return nil, false
	}
	return src.Data, true
}

func (h *Headless) AddLayer(layer LayerSpec, beforeID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if layer.ID == "" {
		return fmt.Errorf("layer id is required")
	}
	for _, l := range h.layers {
		if l.ID == layer.ID {
			return fmt.Errorf("layer %q already exists", layer.ID)
		}
	}
	if _, ok := h.sources[layer.Source]; !ok {
		return fmt.Errorf("layer %q references missing source %q", layer.ID, layer.Source)
	}

	if beforeID == "" {
		h.layers = append(h.layers, layer)
		return nil
	}

	for i, l := range h.layers {
		if l.ID == beforeID {
			h.layers = append(h.layers[:i], append([]LayerSpec{layer}, h.layers[i:]...)...)
			return nil
		}
	}
	h.layers = append(h.layers, layer)
	return nil
}

func (h *Headless) RemoveLayer(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, l := range h.layers {
		if l.ID == id {
			h.layers = append(h.layers[:i], h.layers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("layer %q does not exist", id)
}

func (h *Headless) GetLayer(id string) (LayerSpec, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.layers {
		if l.ID == id {
			return l, true
		}
	}
	return LayerSpec{}, false
}

func (h *Headless) MoveLayer(id, beforeID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := -1
	for i, l := range h.layers {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("layer %q does not exist", id)
	}

	layer := h.layers[idx]
	h.layers = append(h.layers[:idx], h.layers[idx+1:]...)

	if beforeID == "" {
		h.layers = append(h.layers, layer)
		return nil
	}

	for i, l := range h.layers {
		if l.ID == beforeID {
			h.layers = append(h.layers[:i], append([]LayerSpec{layer}, h.layers[i:]...)...)
			return nil
		}
	}
	h.layers = append(h.layers, layer)
	return nil
}

func (h *Headless) LayerOrder() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	order := make([]string, len(h.layers))
	for i, l := range h.layers {
		order[i] = l.ID
	}
	return order
}

// SetStyle wipes the source and layer registry, then emits style.load. The
// emission is synchronous, which preserves the real library's guarantee that
// the style.load handler runs before any source/layer call issued after
// SetStyle returns.
func (h *Headless) SetStyle(style string) {
	h.mu.Lock()
	h.style = style
	h.sources = make(map[string]SourceSpec)
	h.layers = nil
	h.mu.Unlock()

	h.bus.Emit(EventStyleLoad, style)
}

func (h *Headless) Style() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.style
}

func (h *Headless) FitBounds(bound orb.Bound, opts FitOptions) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastFit = &bound
}

// LastFit reports the most recent FitBounds call, for assertions.
func (h *Headless) LastFit() *orb.Bound {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastFit
}

// Bounds returns the most recently fitted bound, or a world bound before any
// fit happened.
func (h *Headless) Bounds() orb.Bound {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lastFit != nil {
		return *h.lastFit
	}
	return orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}
}

// QueryRenderedFeatures hit-tests against geojson point sources using an
// identity projection: screen coordinates are longitude/latitude.
func (h *Headless) QueryRenderedFeatures(p ScreenPoint, layerIDs []string) []*geojson.Feature {
	h.mu.Lock()
	defer h.mu.Unlock()

	const tolerance = 1e-6

	var hits []*geojson.Feature
	for _, l := range h.layers {
		if !contains(layerIDs, l.ID) {
			continue
		}
		src, ok := h.sources[l.Source]
		if !ok || src.Data == nil {
			continue
		}
		for _, f := range src.Data.Features {
			pt, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			if math.Abs(pt.Lon()-p.X) > tolerance || math.Abs(pt.Lat()-p.Y) > tolerance {
				continue
			}
			if matchesFilter(l.Filter, f) {
				hits = append(hits, f)
			}
		}
	}
	return hits
}

func (h *Headless) AddMarker(at LngLat, popupText string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.markers = append(h.markers, marker{at: at, popup: popupText})
}

func (h *Headless) ClearMarkers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.markers = nil
}

func (h *Headless) SetCursor(cursor string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursor = cursor
}

func (h *Headless) Cursor() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func (h *Headless) On(event string, handler eventbus.Handler) func() {
	return h.bus.On(event, handler)
}

func (h *Headless) Once(event string, handler eventbus.Handler) func() {
	return h.bus.Once(event, handler)
}

// Click injects a primary-button click at geographic coordinates.
func (h *Headless) Click(lng, lat float64) {
	h.bus.Emit(EventClick, &MouseEvent{
		LngLat: LngLat{Lng: lng, Lat: lat},
		Point:  ScreenPoint{X: lng, Y: lat},
	})
}

// ContextMenu injects a secondary-button click.
func (h *Headless) ContextMenu(lng, lat float64) {
	h.bus.Emit(EventContextMenu, &MouseEvent{
		LngLat: LngLat{Lng: lng, Lat: lat},
		Point:  ScreenPoint{X: lng, Y: lat},
	})
}

func (h *Headless) MouseMove(lng, lat float64) {
	h.bus.Emit(EventMouseMove, &MouseEvent{
		LngLat: LngLat{Lng: lng, Lat: lat},
		Point:  ScreenPoint{X: lng, Y: lat},
	})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// matchesFilter evaluates the legacy ["==", property, value] comparison form.
// An empty filter matches everything.
func matchesFilter(filter []any, f *geojson.Feature) bool {
	if len(filter) != 3 {
		return true
	}
	op, _ := filter[0].(string)
	prop, _ := filter[1].(string)
	if op != "==" || prop == "" {
		return true
	}
	return f.Properties[prop] == filter[2]
}
