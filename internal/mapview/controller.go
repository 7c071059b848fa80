package mapview

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/geo"
	"github.com/geo-workbench/client/internal/store"
	"github.com/geo-workbench/client/pkg/logger"
)

// Source and layer ids. The point layers must stay topmost; every overlay
// operation reasserts them.
const (
	sourcePoints       = "points"
	layerPointPositive = "point-positive"
	layerPointNegative = "point-negative"

	patchSourcePrefix = "source-patch-"
	patchLayerPrefix  = "layer-patch-"

	sourceDeployPredictions = "deployment-predictions"
	layerDeployPredictions  = "deployment-predictions-line"
	sourceDeployBBox        = "deployment-bbox"
	layerDeployBBox         = "deployment-bbox"

	sourcePredictions = "predictions"
	layerPredictions  = "predictions-line"

	sourceSentinelImagery = "sentinel-imagery"
	layerSentinelImagery  = "sentinel-imagery"
)

// Events the controller emits on the application bus.
const (
	EventProjectRequired = "projectRequired"
	EventStyleLoaded     = "styleLoaded"
)

const (
	colorPositive = "#3a86ff"
	colorNegative = "#ff3a5e"
	colorStroke   = "#ffffff"
	colorBBox     = "#00cc66"
	colorLine     = "#ffcc00"

	defaultRasterOpacity = 0.8
)

// PointContext supplies the context fields captured when a point is created.
// The panel manager implements it: control panel values win, then the imagery
// panel, then the extract panel.
type PointContext interface {
	PointContext() (startDate, endDate string, clearThreshold float64)
}

type Options struct {
	// DefaultCollection is used for single-point extraction when the project
	// does not declare a data source.
	DefaultCollection string
	VisType           string

	// SyncPipelines runs the add/remove point pipelines on the caller's
	// goroutine instead of the background. Tests use this.
	SyncPipelines bool
}

type Controller struct {
	viewport Viewport
	store    *store.Store
	api      *api.Client
	bus      *eventbus.Bus
	opts     Options

	ctxProvider PointContext

	mu          sync.Mutex
	patchTokens []string
	lastPointID int64

	wg sync.WaitGroup
}

func NewController(vp Viewport, st *store.Store, apiClient *api.Client, bus *eventbus.Bus, opts Options) *Controller {
	if opts.DefaultCollection == "" {
		opts.DefaultCollection = "S2"
	}
	if opts.VisType == "" {
		opts.VisType = "true_color"
	}

	c := &Controller{
		viewport: vp,
		store:    st,
		api:      apiClient,
		bus:      bus,
		opts:     opts,
	}

	// The map's point source is a projection of the store's point list. The
	// handler works from the emitted payload, never by reading back through
	// the store, which breaks the store<->map observation cycle.
	st.On(store.KeyPoints, func(payload any) {
		points, ok := payload.([]geo.LabeledPoint)
		if !ok {
			return
		}
		c.syncPointSource(points)
	})

	vp.On(EventClick, c.handleClick)
	vp.On(EventContextMenu, c.handleContextMenu)
	vp.On(EventMouseMove, c.handleMouseMove)
	vp.On(EventError, func(payload any) {
		logger.Warn("Viewport error", zap.Any("detail", payload))
	})

	return c
}

// SetContextProvider wires the panel manager in after construction; panels
// are built after the map.
func (c *Controller) SetContextProvider(p PointContext) {
	c.ctxProvider = p
}

// Wait blocks until background point pipelines finish. Tests and shutdown use it.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// EnsurePointLayers asserts the point-layer invariant: the points source
// exists, both circle layers exist with the canonical paint, and both sit on
// top of the layer stack.
func (c *Controller) EnsurePointLayers() {
	if _, ok := c.viewport.GetSource(sourcePoints); !ok {
		fc := geo.PointsToCollection(c.store.Points())
		if err := c.viewport.AddSource(sourcePoints, SourceSpec{Type: SourceGeoJSON, Data: fc}); err != nil {
			logger.Warn("Failed to recreate points source", zap.Error(err))
			return
		}
	}

	for _, spec := range []LayerSpec{pointLayer(layerPointPositive, geo.ClassPositive), pointLayer(layerPointNegative, geo.ClassNegative)} {
		if _, ok := c.viewport.GetLayer(spec.ID); !ok {
			if err := c.viewport.AddLayer(spec, ""); err != nil {
				logger.Warn("Failed to recreate point layer", zap.String("layer", spec.ID), zap.Error(err))
			}
			continue
		}
		if err := c.viewport.MoveLayer(spec.ID, ""); err != nil {
			logger.Warn("Failed to raise point layer", zap.String("layer", spec.ID), zap.Error(err))
		}
	}
}

func pointLayer(id string, class geo.PointClass) LayerSpec {
	color := colorPositive
	if class == geo.ClassNegative {
		color = colorNegative
	}
	return LayerSpec{
		ID:     id,
		Type:   LayerCircle,
		Source: sourcePoints,
		Filter: []any{"==", "class", string(class)},
		Paint: map[string]any{
			"circle-radius":       6,
			"circle-color":        color,
			"circle-stroke-width": 2,
			"circle-stroke-color": colorStroke,
		},
	}
}

func (c *Controller) syncPointSource(points []geo.LabeledPoint) {
	fc := geo.PointsToCollection(points)

	if _, ok := c.viewport.GetSource(sourcePoints); !ok {
		c.EnsurePointLayers()
		// EnsurePointLayers seeds the source from the store, which already
		// holds this payload.
		return
	}

	if err := c.viewport.SetSourceData(sourcePoints, fc); err != nil {
		logger.Warn("Failed to sync point source", zap.Error(err))
	}
}

func (c *Controller) handleClick(payload any) {
	ev, ok := payload.(*MouseEvent)
	if !ok {
		return
	}

	if c.store.CurrentProjectID() == "" {
		c.bus.Emit(EventProjectRequired, nil)
		return
	}

	if c.store.ClearPointsMode() {
		hits := c.viewport.QueryRenderedFeatures(ev.Point, []string{layerPointPositive, layerPointNegative})
		if len(hits) == 0 {
			return
		}
		if p, ok := geo.PointFromFeature(hits[0]); ok {
			c.runPipeline(func(ctx context.Context) {
				c.removePointFlow(ctx, p.ID)
			})
		}
		return
	}

	c.addLabeledPoint(ev.LngLat, geo.ClassPositive)
}

func (c *Controller) handleContextMenu(payload any) {
	ev, ok := payload.(*MouseEvent)
	if !ok {
		return
	}

	if c.store.CurrentProjectID() == "" || c.store.ClearPointsMode() {
		return
	}

	c.addLabeledPoint(ev.LngLat, geo.ClassNegative)
}

func (c *Controller) handleMouseMove(payload any) {
	ev, ok := payload.(*MouseEvent)
	if !ok {
		return
	}

	hits := c.viewport.QueryRenderedFeatures(ev.Point, []string{layerPointPositive, layerPointNegative})
	if len(hits) > 0 {
		c.viewport.SetCursor("pointer")
	} else {
		c.viewport.SetCursor("")
	}
}

// nextPointID issues strictly increasing ids. Two clicks can land in the same
// millisecond, and removal matches by id, so a raw timestamp is not enough.
func (c *Controller) nextPointID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= c.lastPointID {
		id = c.lastPointID + 1
	}
	c.lastPointID = id
	return id
}

func (c *Controller) addLabeledPoint(at LngLat, class geo.PointClass) {
	start, end, clear := c.pointContext()

	point := geo.LabeledPoint{
		ID:             c.nextPointID(),
		Longitude:      at.Lng,
		Latitude:       at.Lat,
		Class:          class,
		StartDate:      start,
		EndDate:        end,
		ClearThreshold: clear,
	}

	c.store.AddPoint(point)

	c.runPipeline(func(ctx context.Context) {
		c.runPointPipeline(ctx, point)
	})
}

func (c *Controller) pointContext() (string, string, float64) {
	if c.ctxProvider != nil {
		return c.ctxProvider.PointContext()
	}

	end := time.Now()
	start := end.AddDate(0, 0, -30)
	return start.Format("2006-01-02"), end.Format("2006-01-02"), 0.75
}

func (c *Controller) runPipeline(fn func(ctx context.Context)) {
	if c.opts.SyncPipelines {
		fn(context.Background())
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(context.Background())
	}()
}

// ViewportRegion returns the visible map area as a polygon feature, used as
// the default deployment region when the user has not drawn one.
func (c *Controller) ViewportRegion() *geojson.Feature {
	b := c.viewport.Bounds()
	return geojson.NewFeature(b.ToPolygon())
}

// ShowProjectLocation drops a marker at the project's default location and
// fits the viewport around it.
func (c *Controller) ShowProjectLocation(name string, loc api.Location) {
	c.viewport.ClearMarkers()
	c.viewport.AddMarker(LngLat{Lng: loc.Longitude, Lat: loc.Latitude}, name)

	corners := geo.PatchCorners(loc.Longitude, loc.Latitude, 1024)
	bound := boundFromCorners(corners)
	c.viewport.FitBounds(bound, FitOptions{Padding: 64, MaxZoom: 12})
}
