package api

import "github.com/paulmach/orb/geojson"

// Envelope carries the success flag and failure message every backend
// response includes.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Project struct {
	Name             string `json:"name"`
	Created          string `json:"created"`
	Modified         string `json:"modified"`
	TotalPoints      int    `json:"total_points"`
	LatestExport     string `json:"latest_export"`
	HasExtractedData bool   `json:"has_extracted_data"`
	ExtractedFiles   int    `json:"extracted_files"`
}

type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type ProjectInfo struct {
	ChipSize        int       `json:"chip_size"`
	DataSource      string    `json:"data_source"`
	DefaultLocation *Location `json:"default_location,omitempty"`
}

type Extraction struct {
	Filename      string   `json:"filename"`
	Collection    string   `json:"collection"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	NumChips      int      `json:"num_chips"`
	ChipSize      int      `json:"chip_size"`
	Bands         []string `json:"bands"`
	FileSizeMB    float64  `json:"file_size_mb"`
	Created       string   `json:"created"`
	IsProjectData bool     `json:"is_project_data"`
}

type Model struct {
	Name            string   `json:"name"`
	InputShape      []int    `json:"input_shape"`
	FileSizeMB      float64  `json:"file_size_mb"`
	ExtractionFiles []string `json:"extraction_files"`
	Accuracy        float64  `json:"acc"`
	ValAccuracy     float64  `json:"val_acc"`
	Created         string   `json:"created"`
}

// Patch is one extracted chip rendered for display. Image holds base64 PNG
// bytes without a data-URL prefix.
type Patch struct {
	Image     string  `json:"image"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	ChipSize  int     `json:"chip_size"`
	Label     string  `json:"label"`
}

type PredictionSummary struct {
	ID        string `json:"id"`
	ModelName string `json:"model_name"`
	Created   string `json:"created"`
	NumTiles  int    `json:"num_tiles"`
}

type ImageryBounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Request bodies.

type ExtractRequest struct {
	ProjectID      string  `json:"project_id"`
	Collection     string  `json:"collection"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	ChipSize       int     `json:"chip_size"`
	ClearThreshold float64 `json:"clear_threshold"`
}

type ExtractPointRequest struct {
	ProjectID  string           `json:"project_id"`
	Point      *geojson.Feature `json:"point"`
	Collection string           `json:"collection"`
	ChipSize   int              `json:"chip_size"`
}

type TrainRequest struct {
	ProjectID       string   `json:"project_id"`
	ModelName       string   `json:"model_name"`
	ExtractionFiles []string `json:"extraction_files"`
	BatchSize       int      `json:"batch_size"`
	Epochs          int      `json:"epochs"`
	TestSplit       float64  `json:"test_split"`
	Augmentation    bool     `json:"augmentation"`
}

type DeployRequest struct {
	ProjectID      string           `json:"project_id"`
	ModelName      string           `json:"model_name"`
	StartDate      string           `json:"start_date"`
	EndDate        string           `json:"end_date"`
	PredThreshold  float64          `json:"pred_threshold"`
	ClearThreshold float64          `json:"clear_threshold"`
	TileSize       int              `json:"tile_size"`
	TilePadding    int              `json:"tile_padding"`
	BatchSize      int              `json:"batch_size"`
	Region         *geojson.Feature `json:"region"`
	Tries          int              `json:"tries"`
}

type ImageryRequest struct {
	West           float64
	South          float64
	East           float64
	North          float64
	StartDate      string
	EndDate        string
	Collection     string
	ClearThreshold float64
}

// Response bodies.

type CreateProjectResponse struct {
	Envelope
	ProjectID string `json:"project_id"`
}

type ListProjectsResponse struct {
	Envelope
	Projects []Project `json:"projects"`
}

type ProjectInfoResponse struct {
	Envelope
	Project ProjectInfo `json:"project"`
}

type LoadPointsResponse struct {
	Envelope
	GeoJSON *geojson.FeatureCollection `json:"geojson"`
}

type ListExtractionsResponse struct {
	Envelope
	Extractions []Extraction `json:"extractions"`
}

type PatchVisualizationResponse struct {
	Envelope
	Collection string  `json:"collection"`
	Patches    []Patch `json:"patches"`
}

type ListModelsResponse struct {
	Envelope
	Models []Model `json:"models"`
}

type ListPredictionsResponse struct {
	Envelope
	Predictions []PredictionSummary `json:"predictions"`
}

type PredictionResponse struct {
	Envelope
	Prediction  *geojson.FeatureCollection `json:"prediction"`
	BoundingBox *geojson.Feature           `json:"bounding_box"`
}

type MapImageryResponse struct {
	Envelope
	TileURL string        `json:"tile_url"`
	Bounds  ImageryBounds `json:"bounds"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type OKResponse struct {
	Envelope
}
