package mapview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/geo"
	"github.com/geo-workbench/client/internal/store"
)

type rig struct {
	viewport *Headless
	store    *store.Store
	ctl      *Controller
	bus      *eventbus.Bus
}

// newRig wires a headless viewport, a store backed by a fake backend, and the
// map controller with pipelines running synchronously. Unhandled backend
// paths answer with a bare success envelope.
func newRig(t *testing.T, handlers map[string]http.HandlerFunc) *rig {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	t.Cleanup(srv.Close)

	bus := eventbus.New()
	client := api.NewClient(srv.URL, 5*time.Second)
	st := store.New(bus, client, nil)
	vp := NewHeadless("satellite-streets-v12")
	ctl := NewController(vp, st, client, bus, Options{SyncPipelines: true})

	return &rig{viewport: vp, store: st, ctl: ctl, bus: bus}
}

func (r *rig) selectProject(id string) {
	r.store.SetCurrentProject(id, "Test Project")
}

func TestClickWithoutProjectEmitsProjectRequired(t *testing.T) {
	r := newRig(t, nil)

	fired := 0
	r.bus.On(EventProjectRequired, func(any) { fired++ })

	r.viewport.Click(10, 20)

	assert.Equal(t, 1, fired)
	assert.Empty(t, r.store.Points())
}

func TestClickAddsPositivePoint(t *testing.T) {
	exports := 0
	r := newRig(t, map[string]http.HandlerFunc{
		"/export_points": func(w http.ResponseWriter, req *http.Request) {
			exports++
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		},
	})
	r.selectProject("proj-1")

	r.viewport.Click(10, 20)

	points := r.store.Points()
	require.Len(t, points, 1)
	assert.Equal(t, geo.ClassPositive, points[0].Class)
	assert.Equal(t, 10.0, points[0].Longitude)
	assert.Equal(t, 20.0, points[0].Latitude)
	assert.NotZero(t, points[0].ID)

	// One point mutation drives exactly one export.
	assert.Equal(t, 1, exports)

	// The map's point source mirrors the store.
	data, ok := r.viewport.GetSourceData(sourcePoints)
	require.True(t, ok)
	require.Len(t, data.Features, 1)
	assert.Equal(t, "positive", data.Features[0].Properties["class"])
}

func TestContextMenuAddsNegativePoint(t *testing.T) {
	r := newRig(t, nil)
	r.selectProject("proj-1")

	r.viewport.ContextMenu(-5, 15)

	points := r.store.Points()
	require.Len(t, points, 1)
	assert.Equal(t, geo.ClassNegative, points[0].Class)
}

func TestContextMenuWithoutProjectIsIgnored(t *testing.T) {
	r := newRig(t, nil)

	r.viewport.ContextMenu(-5, 15)
	assert.Empty(t, r.store.Points())
}

func TestPointLayersCreatedOnFirstPoint(t *testing.T) {
	r := newRig(t, nil)
	r.selectProject("proj-1")

	r.viewport.Click(1, 2)

	order := r.viewport.LayerOrder()
	require.Len(t, order, 2)
	assert.Contains(t, order, layerPointPositive)
	assert.Contains(t, order, layerPointNegative)

	positive, ok := r.viewport.GetLayer(layerPointPositive)
	require.True(t, ok)
	assert.Equal(t, colorPositive, positive.Paint["circle-color"])
	assert.Equal(t, []any{"==", "class", "positive"}, positive.Filter)

	negative, ok := r.viewport.GetLayer(layerPointNegative)
	require.True(t, ok)
	assert.Equal(t, colorNegative, negative.Paint["circle-color"])
}

func TestRapidClicksAssignDistinctIDs(t *testing.T) {
	r := newRig(t, nil)
	r.selectProject("proj-1")

	// Synchronous back-to-back clicks land within one millisecond.
	r.viewport.Click(10, 20)
	r.viewport.Click(30, 40)

	points := r.store.Points()
	require.Len(t, points, 2)
	assert.Greater(t, points[1].ID, points[0].ID)

	// Removal by id takes out only the matching point.
	r.store.RemovePoint(points[0].ID)
	remaining := r.store.Points()
	require.Len(t, remaining, 1)
	assert.Equal(t, 30.0, remaining[0].Longitude)
}

func TestClearModeRemovesClickedPoint(t *testing.T) {
	exports := 0
	r := newRig(t, map[string]http.HandlerFunc{
		"/export_points": func(w http.ResponseWriter, req *http.Request) {
			exports++
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		},
	})
	r.selectProject("proj-1")

	r.viewport.Click(10, 20)
	r.viewport.Click(30, 40)
	require.Len(t, r.store.Points(), 2)
	exports = 0

	r.store.SetClearPointsMode(true)
	r.viewport.Click(10, 20)

	points := r.store.Points()
	require.Len(t, points, 1)
	assert.Equal(t, 30.0, points[0].Longitude)
	assert.Equal(t, 1, exports)
}

func TestClearModeClickOnEmptyAreaIsNoop(t *testing.T) {
	r := newRig(t, nil)
	r.selectProject("proj-1")

	r.viewport.Click(10, 20)
	r.store.SetClearPointsMode(true)

	r.viewport.Click(50, 60)
	assert.Len(t, r.store.Points(), 1)
}

func TestClearModeBlocksNegativePoints(t *testing.T) {
	r := newRig(t, nil)
	r.selectProject("proj-1")
	r.store.SetClearPointsMode(true)

	r.viewport.ContextMenu(1, 2)
	assert.Empty(t, r.store.Points())
}

func TestMouseMoveSetsCursorOverPoints(t *testing.T) {
	r := newRig(t, nil)
	r.selectProject("proj-1")

	r.viewport.Click(10, 20)

	r.viewport.MouseMove(10, 20)
	assert.Equal(t, "pointer", r.viewport.Cursor())

	r.viewport.MouseMove(50, 60)
	assert.Equal(t, "", r.viewport.Cursor())
}

func TestPointPipelineExtractsAndOverlaysPatch(t *testing.T) {
	var extractReq api.ExtractPointRequest
	r := newRig(t, map[string]http.HandlerFunc{
		"/get_project_info": func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"project": map[string]any{"chip_size": 128, "data_source": "S1"},
			})
		},
		"/extract_point_data": func(w http.ResponseWriter, req *http.Request) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&extractReq))
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		},
		"/list_extracted_data": func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"extractions": []api.Extraction{
					{Filename: "old.h5", Created: "2024-01-01T00:00:00"},
					{Filename: "new.h5", Created: "2024-03-01T00:00:00"},
				},
			})
		},
		"/get_patch_visualization": func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "new.h5", req.URL.Query().Get("file"))
			assert.NotEmpty(t, req.URL.Query().Get("point_id"))
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"patches": []api.Patch{{Image: "aGVsbG8=", Longitude: 10, Latitude: 20, ChipSize: 128}},
			})
		},
	})
	r.selectProject("proj-1")

	r.viewport.Click(10, 20)

	assert.Equal(t, 128, extractReq.ChipSize)
	assert.Equal(t, "S1", extractReq.Collection)
	assert.Equal(t, "proj-1", extractReq.ProjectID)
	require.NotNil(t, extractReq.Point)

	// One patch overlay landed, georeferenced around the point.
	var patchLayerID string
	for _, id := range r.viewport.LayerOrder() {
		if len(id) > len(patchLayerPrefix) && id[:len(patchLayerPrefix)] == patchLayerPrefix {
			patchLayerID = id
		}
	}
	require.NotEmpty(t, patchLayerID)

	layer, _ := r.viewport.GetLayer(patchLayerID)
	src, ok := r.viewport.GetSource(layer.Source)
	require.True(t, ok)
	assert.Equal(t, SourceImage, src.Type)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", src.URL)

	wantCorners := geo.PatchCorners(10, 20, 128)
	assert.Equal(t, wantCorners, src.Coordinates)

	// Point layers stay above the patch layer.
	order := r.viewport.LayerOrder()
	assert.Equal(t, layerPointNegative, order[len(order)-1])
	assert.Equal(t, layerPointPositive, order[len(order)-2])
}

func TestPipelineStopsWhenExportFails(t *testing.T) {
	extractCalls := 0
	r := newRig(t, map[string]http.HandlerFunc{
		"/export_points": func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "disk full"})
		},
		"/extract_point_data": func(w http.ResponseWriter, req *http.Request) {
			extractCalls++
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		},
	})
	r.selectProject("proj-1")

	r.viewport.Click(10, 20)

	// The point stays in the store even though the pipeline stopped.
	assert.Len(t, r.store.Points(), 1)
	assert.Equal(t, 0, extractCalls)
}

func TestViewportRegionUsesCurrentBounds(t *testing.T) {
	r := newRig(t, nil)

	region := r.ctl.ViewportRegion()
	require.NotNil(t, region)
	b := region.Geometry.Bound()
	assert.Equal(t, -180.0, b.Min.Lon())
	assert.Equal(t, 180.0, b.Max.Lon())
}

func TestShowProjectLocationFitsAndMarks(t *testing.T) {
	r := newRig(t, nil)

	r.ctl.ShowProjectLocation("Mines", api.Location{Longitude: 10, Latitude: 20})

	fit := r.viewport.LastFit()
	require.NotNil(t, fit)
	assert.True(t, fit.Contains(orb.Point{10, 20}))
}
