// Package mapview owns the geographic viewport: the point layers, patch
// overlays, prediction rendering, and the layer-preserving style swap. The
// viewport itself is abstract; the controller drives any implementation of
// the Viewport interface.
package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geo-workbench/client/internal/eventbus"
)

// Viewport events.
const (
	EventLoad        = "load"
	EventStyleLoad   = "style.load"
	EventError       = "error"
	EventClick       = "click"
	EventContextMenu = "contextmenu"
	EventMouseMove   = "mousemove"
)

// Source types.
const (
	SourceGeoJSON = "geojson"
	SourceRaster  = "raster"
	SourceImage   = "image"
)

// Layer types.
const (
	LayerCircle = "circle"
	LayerLine   = "line"
	LayerFill   = "fill"
	LayerRaster = "raster"
)

type LngLat struct {
	Lng float64
	Lat float64
}

type ScreenPoint struct {
	X float64
	Y float64
}

type MouseEvent struct {
	LngLat LngLat
	Point  ScreenPoint
}

// SourceSpec describes a data source. Exactly one of Data, URL, or Tiles is
// set depending on Type.
type SourceSpec struct {
	Type string

	// geojson sources
	Data *geojson.FeatureCollection

	// image sources: corner coordinates in NW, NE, SE, SW order
	URL         string
	Coordinates [4][2]float64

	// raster tile sources
	Tiles    []string
	TileSize int
}

// LayerSpec describes a style layer. Filter uses the legacy comparison form
// ["==", property, value].
type LayerSpec struct {
	ID     string
	Type   string
	Source string
	Filter []any
	Paint  map[string]any
	Layout map[string]any
}

type FitOptions struct {
	Padding int
	MaxZoom float64
}

// Viewport is the abstract contract the controller requires from a vector
// map library: an id-addressed source/layer registry that a style swap
// destroys, bounds fitting, hit testing, and event emission.
type Viewport interface {
	AddSource(id string, src SourceSpec) error
	RemoveSource(id string) error
	GetSource(id string) (SourceSpec, bool)
	SetSourceData(id string, fc *geojson.FeatureCollection) error
	GetSourceData(id string) (*geojson.FeatureCollection, bool)

	AddLayer(layer LayerSpec, beforeID string) error
	RemoveLayer(id string) error
	GetLayer(id string) (LayerSpec, bool)
	// MoveLayer repositions a layer before beforeID, or to the top of the
	// stack when beforeID is empty.
	MoveLayer(id, beforeID string) error
	LayerOrder() []string

	SetStyle(style string)
	FitBounds(bound orb.Bound, opts FitOptions)
	Bounds() orb.Bound
	QueryRenderedFeatures(p ScreenPoint, layerIDs []string) []*geojson.Feature

	AddMarker(at LngLat, popupText string)
	ClearMarkers()
	SetCursor(cursor string)

	On(event string, handler eventbus.Handler) func()
	Once(event string, handler eventbus.Handler) func()
}
