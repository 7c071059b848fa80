package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geo-workbench/client/internal/api"
	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/geo"
	"github.com/geo-workbench/client/internal/settings"
)

func TestProjectSelectionPersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	persisted, err := settings.Open(path)
	require.NoError(t, err)

	st := New(eventbus.New(), nil, persisted)
	st.SetCurrentProject("proj-9", "Quarries")
	require.NoError(t, persisted.Close())

	persisted, err = settings.Open(path)
	require.NoError(t, err)
	defer persisted.Close()

	restored := New(eventbus.New(), nil, persisted)
	assert.Equal(t, "proj-9", restored.CurrentProjectID())
	assert.Equal(t, "Quarries", restored.CurrentProjectName())
}

func TestLoadProjectPointsReplacesAndAnnounces(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geo.LabeledPoint{ID: 1, Longitude: 5, Latitude: 6, Class: geo.ClassPositive}.ToFeature())
	fc.Append(geo.LabeledPoint{ID: 2, Longitude: 7, Latitude: 8, Class: geo.ClassNegative}.ToFeature())

	st, bus := newTestStore(t, map[string]http.HandlerFunc{
		"/load_points": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "proj-1", r.URL.Query().Get("project_id"))
			json.NewEncoder(w).Encode(map[string]any{"success": true, "geojson": fc})
		},
	})
	st.SetCurrentProject("proj-1", "Mines")
	st.AddPoint(geo.LabeledPoint{ID: 99})

	var order []string
	bus.On(KeyPoints, func(any) { order = append(order, KeyPoints) })
	bus.On(EventPointsLoaded, func(payload any) {
		order = append(order, EventPointsLoaded)
		points, ok := payload.([]geo.LabeledPoint)
		assert.True(t, ok)
		assert.Len(t, points, 2)
	})

	require.NoError(t, st.LoadProjectPoints(context.Background(), ""))

	assert.Equal(t, []string{KeyPoints, EventPointsLoaded}, order)
	assert.Equal(t, PointCounts{Positive: 1, Negative: 1, Total: 2}, st.PointCountsSnapshot())

	points := st.Points()
	require.Len(t, points, 2)
	assert.Equal(t, int64(1), points[0].ID)
	assert.Equal(t, int64(2), points[1].ID)
}

func TestLoadProjectPointsRequiresProject(t *testing.T) {
	st, _ := newTestStore(t, nil)

	err := st.LoadProjectPoints(context.Background(), "")
	require.Error(t, err)
}

func TestLoadProjectPointsRejectionEmitsError(t *testing.T) {
	st, bus := newTestStore(t, map[string]http.HandlerFunc{
		"/load_points": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "No exported points"})
		},
	})
	st.SetCurrentProject("proj-1", "Mines")

	errs := make([]ErrorEvent, 0, 1)
	bus.On(EventError, func(payload any) {
		if e, ok := payload.(ErrorEvent); ok {
			errs = append(errs, e)
		}
	})

	err := st.LoadProjectPoints(context.Background(), "")
	require.Error(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "No exported points", errs[0].Message)
}

func TestExportPointsSendsCurrentSet(t *testing.T) {
	var gotBody struct {
		ProjectID string                     `json:"project_id"`
		GeoJSON   *geojson.FeatureCollection `json:"geojson"`
	}
	st, _ := newTestStore(t, map[string]http.HandlerFunc{
		"/export_points": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		},
	})
	st.SetCurrentProject("proj-1", "Mines")
	st.AddPoint(geo.LabeledPoint{ID: 1, Longitude: 3, Latitude: 4})

	require.NoError(t, st.ExportPoints(context.Background()))

	assert.Equal(t, "proj-1", gotBody.ProjectID)
	require.NotNil(t, gotBody.GeoJSON)
	require.Len(t, gotBody.GeoJSON.Features, 1)
	pt, ok := gotBody.GeoJSON.Features[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, orb.Point{3, 4}, pt)
}

func TestDeleteProjectRefreshesList(t *testing.T) {
	listCalls := 0
	st, _ := newTestStore(t, map[string]http.HandlerFunc{
		"/list_projects": func(w http.ResponseWriter, r *http.Request) {
			listCalls++
			json.NewEncoder(w).Encode(map[string]any{
				"success":  true,
				"projects": []api.Project{{Name: "remaining"}},
			})
		},
	})

	require.NoError(t, st.DeleteProject(context.Background(), "proj-1"))
	assert.Equal(t, 1, listCalls)

	projects, _ := st.Get(KeyProjects).([]api.Project)
	require.Len(t, projects, 1)
	assert.Equal(t, "remaining", projects[0].Name)
}

func TestCreateProjectReturnsSlug(t *testing.T) {
	st, _ := newTestStore(t, map[string]http.HandlerFunc{
		"/create_project": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": true, "project_id": "mines-2"})
		},
	})

	id, err := st.CreateProject(context.Background(), "Mines 2", 64)
	require.NoError(t, err)
	assert.Equal(t, "mines-2", id)
}

func TestCreateProjectRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Name taken"})
	}))
	t.Cleanup(srv.Close)

	st := New(eventbus.New(), api.NewClient(srv.URL, 5*time.Second), nil)

	_, err := st.CreateProject(context.Background(), "Mines", 0)
	require.Error(t, err)
}
