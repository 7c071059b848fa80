package push

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
)

// Server event names re-emitted on the channel's local bus.
const (
	EventExtractionProgress = "extraction_progress"
	EventExtractionComplete = "extraction_complete"
	EventExtractionError    = "extraction_error"
	EventTrainingProgress   = "training_progress"
	EventTrainingComplete   = "training_complete"
	EventTrainingError      = "training_error"
	EventDeploymentProgress = "deployment_progress"
	EventDeploymentComplete = "deployment_complete"
	EventDeploymentLog      = "deployment_log"
	EventDeploymentError    = "deployment_error"
)

// Connection-level events. These never mutate the store.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

type ExtractionProgress struct {
	ProjectID string  `json:"project_id"`
	Progress  float64 `json:"progress"`
	Current   int     `json:"current"`
	Total     int     `json:"total"`
}

type ExtractionMetadata struct {
	NumChips int `json:"num_chips"`
}

type ExtractionComplete struct {
	ProjectID string             `json:"project_id"`
	Metadata  ExtractionMetadata `json:"metadata"`
}

type ExtractionError struct {
	ProjectID string `json:"project_id"`
	Error     string `json:"error"`
}

// TrainingLogs normalizes the per-epoch metrics dictionary. The backend emits
// either long keys (accuracy, val_accuracy) or short ones (acc, val_acc)
// depending on the framework version.
type TrainingLogs struct {
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

func (l *TrainingLogs) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.Loss = raw["loss"]
	l.ValLoss = raw["val_loss"]

	if v, ok := raw["accuracy"]; ok {
		l.Accuracy = v
	} else {
		l.Accuracy = raw["acc"]
	}
	if v, ok := raw["val_accuracy"]; ok {
		l.ValAccuracy = v
	} else {
		l.ValAccuracy = raw["val_acc"]
	}

	return nil
}

type TrainingProgress struct {
	ProjectID    string       `json:"project_id"`
	Progress     float64      `json:"progress"`
	CurrentEpoch int          `json:"current_epoch"`
	TotalEpochs  int          `json:"total_epochs"`
	Logs         TrainingLogs `json:"logs"`
}

type TrainingMetrics struct {
	Epochs      int
	Accuracy    float64
	ValAccuracy float64
}

func (m *TrainingMetrics) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Epochs = int(raw["epochs"])

	if v, ok := raw["accuracy"]; ok {
		m.Accuracy = v
	} else {
		m.Accuracy = raw["acc"]
	}
	if v, ok := raw["val_accuracy"]; ok {
		m.ValAccuracy = v
	} else {
		m.ValAccuracy = raw["val_acc"]
	}

	return nil
}

type TrainingComplete struct {
	ProjectID string          `json:"project_id"`
	ModelName string          `json:"model_name"`
	Metrics   TrainingMetrics `json:"metrics"`
}

type TrainingError struct {
	ProjectID string `json:"project_id"`
	Error     string `json:"error"`
}

// DeploymentProgress carries fractional progress in [0,1] plus optional
// incremental prediction batches.
type DeploymentProgress struct {
	Progress               float64                    `json:"progress"`
	Status                 string                     `json:"status"`
	IncrementalPredictions *geojson.FeatureCollection `json:"incremental_predictions"`
	BoundingBox            *geojson.Feature           `json:"bounding_box"`
}

type DeploymentComplete struct {
	Predictions *geojson.FeatureCollection `json:"predictions"`
	BoundingBox *geojson.Feature           `json:"bounding_box"`
}

type DeploymentLog struct {
	Message string `json:"message"`
}

type DeploymentError struct {
	Error string `json:"error"`
}

type ConnectionError struct {
	Err error
}
