// Package api is the typed facade over the workbench backend's REST surface.
// It performs no retries, no batching, and no caching; a non-2xx status is
// returned as *Error, and callers are responsible for checking the Success
// flag on parsed responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/pkg/logger"
)

// Error carries the HTTP status of a failed request.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api request failed with status %d", e.StatusCode)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) CreateProject(ctx context.Context, name string, chipSize int) (*CreateProjectResponse, error) {
	body := map[string]any{"name": name}
	if chipSize > 0 {
		body["chip_size"] = chipSize
	}

	var out CreateProjectResponse
	if err := c.post(ctx, "/create_project", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) (*OKResponse, error) {
	body := map[string]any{"project_id": projectID}

	var out OKResponse
	if err := c.post(ctx, "/delete_project", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProjects(ctx context.Context) (*ListProjectsResponse, error) {
	var out ListProjectsResponse
	if err := c.get(ctx, "/list_projects", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProjectInfo(ctx context.Context, projectID string) (*ProjectInfoResponse, error) {
	q := url.Values{"project_id": {projectID}}

	var out ProjectInfoResponse
	if err := c.get(ctx, "/get_project_info", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoadPoints(ctx context.Context, projectID, filename string) (*LoadPointsResponse, error) {
	q := url.Values{"project_id": {projectID}}
	if filename != "" {
		q.Set("filename", filename)
	}

	var out LoadPointsResponse
	if err := c.get(ctx, "/load_points", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExportPoints(ctx context.Context, projectID string, fc *geojson.FeatureCollection) (*OKResponse, error) {
	body := map[string]any{
		"geojson":    fc,
		"project_id": projectID,
	}

	var out OKResponse
	if err := c.post(ctx, "/export_points", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExtractData(ctx context.Context, req ExtractRequest) (*OKResponse, error) {
	var out OKResponse
	if err := c.post(ctx, "/extract_data", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExtractPointData(ctx context.Context, req ExtractPointRequest) (*OKResponse, error) {
	var out OKResponse
	if err := c.post(ctx, "/extract_point_data", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListExtractedData(ctx context.Context, projectID string) (*ListExtractionsResponse, error) {
	q := url.Values{"project_id": {projectID}}

	var out ListExtractionsResponse
	if err := c.get(ctx, "/list_extracted_data", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPatchVisualization(ctx context.Context, projectID, file, visType, pointID string) (*PatchVisualizationResponse, error) {
	q := url.Values{
		"project_id": {projectID},
		"file":       {file},
		"vis_type":   {visType},
	}
	if pointID != "" {
		q.Set("point_id", pointID)
	}

	var out PatchVisualizationResponse
	if err := c.get(ctx, "/get_patch_visualization", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TrainModel(ctx context.Context, req TrainRequest) (*OKResponse, error) {
	var out OKResponse
	if err := c.post(ctx, "/train_model", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListModels(ctx context.Context, projectID string) (*ListModelsResponse, error) {
	q := url.Values{"project_id": {projectID}}

	var out ListModelsResponse
	if err := c.get(ctx, "/list_models", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeployModel(ctx context.Context, req DeployRequest) (*OKResponse, error) {
	var out OKResponse
	if err := c.post(ctx, "/deploy_model", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPredictions(ctx context.Context, projectID string) (*ListPredictionsResponse, error) {
	q := url.Values{"project_id": {projectID}}

	var out ListPredictionsResponse
	if err := c.get(ctx, "/get_predictions", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPrediction(ctx context.Context, projectID, predictionID string) (*PredictionResponse, error) {
	q := url.Values{
		"project_id":    {projectID},
		"prediction_id": {predictionID},
	}

	var out PredictionResponse
	if err := c.get(ctx, "/get_prediction", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMapImagery(ctx context.Context, req ImageryRequest) (*MapImageryResponse, error) {
	q := url.Values{
		"west":            {formatFloat(req.West)},
		"south":           {formatFloat(req.South)},
		"east":            {formatFloat(req.East)},
		"north":           {formatFloat(req.North)},
		"start_date":      {req.StartDate},
		"end_date":        {req.EndDate},
		"collection":      {req.Collection},
		"clear_threshold": {formatFloat(req.ClearThreshold)},
	}

	var out MapImageryResponse
	if err := c.get(ctx, "/get_map_imagery", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", endpoint, err)
	}

	return c.do(req, endpoint, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.APIRequestTotal.WithLabelValues(endpoint, "transport_error").Inc()
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.APIRequestTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}

		var envelope Envelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			apiErr.Message = envelope.Message
		}

		logger.Debug("API request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
