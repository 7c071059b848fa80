package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestCreateProject(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create_project", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"project_id": "proj-1",
		})
	})

	resp, err := client.CreateProject(context.Background(), "mines", 64)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "proj-1", resp.ProjectID)
	assert.Equal(t, "mines", gotBody["name"])
	assert.Equal(t, float64(64), gotBody["chip_size"])
}

func TestCreateProjectOmitsZeroChipSize(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	_, err := client.CreateProject(context.Background(), "mines", 0)
	require.NoError(t, err)
	assert.NotContains(t, gotBody, "chip_size")
}

func TestLoadPointsQueryAndDecode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/load_points", r.URL.Path)
		assert.Equal(t, "proj-1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "points_v2.geojson", r.URL.Query().Get("filename"))

		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(orb.Point{-122.4, 37.7}))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"geojson": fc,
		})
	})

	resp, err := client.LoadPoints(context.Background(), "proj-1", "points_v2.geojson")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.GeoJSON)
	require.Len(t, resp.GeoJSON.Features, 1)
}

func TestLoadPointsOmitsEmptyFilename(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["filename"]
		assert.False(t, present)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	_, err := client.LoadPoints(context.Background(), "proj-1", "")
	require.NoError(t, err)
}

func TestNonSuccessStatusReturnsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Project not found",
		})
	})

	_, err := client.GetProjectInfo(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Project not found", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "404")
}

func TestNonSuccessStatusWithUnparsableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>oops</html>"))
	})

	_, err := client.ListProjects(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "", apiErr.Message)
}

func TestSuccessFalseIsNotATransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "No points to export",
		})
	})

	resp, err := client.ExportPoints(context.Background(), "proj-1", geojson.NewFeatureCollection())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "No points to export", resp.Message)
}

func TestExtractDataPostsRequestBody(t *testing.T) {
	var got ExtractRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract_data", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	req := ExtractRequest{
		ProjectID:      "proj-1",
		Collection:     "S2",
		StartDate:      "2024-01-01",
		EndDate:        "2024-02-01",
		ChipSize:       64,
		ClearThreshold: 0.75,
	}
	_, err := client.ExtractData(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestDeployModelCarriesRegion(t *testing.T) {
	var got DeployRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deploy_model", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	region := geojson.NewFeature(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}.ToPolygon())
	_, err := client.DeployModel(context.Background(), DeployRequest{
		ProjectID: "proj-1",
		ModelName: "m1",
		StartDate: "2024-01-01",
		EndDate:   "2024-02-01",
		Region:    region,
	})
	require.NoError(t, err)
	require.NotNil(t, got.Region)
	assert.IsType(t, orb.Polygon{}, got.Region.Geometry)
}

func TestGetMapImageryQueryEncoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "-10.5", q.Get("west"))
		assert.Equal(t, "40", q.Get("south"))
		assert.Equal(t, "0.75", q.Get("clear_threshold"))
		assert.Equal(t, "S2", q.Get("collection"))

		json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"tile_url": "https://tiles.example/{z}/{x}/{y}",
			"bounds":   map[string]float64{"west": -10.5, "south": 40, "east": -9, "north": 41},
		})
	})

	resp, err := client.GetMapImagery(context.Background(), ImageryRequest{
		West: -10.5, South: 40, East: -9, North: 41,
		StartDate: "2024-01-01", EndDate: "2024-02-01",
		Collection: "S2", ClearThreshold: 0.75,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://tiles.example/{z}/{x}/{y}", resp.TileURL)
	assert.Equal(t, -10.5, resp.Bounds.West)
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Health(ctx)
	require.Error(t, err)
}
