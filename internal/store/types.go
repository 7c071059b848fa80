package store

import "github.com/geo-workbench/client/internal/push"

type PointCounts struct {
	Positive int
	Negative int
	Total    int
}

// ExtractionState is the extraction progress snapshot. InProgress false with
// Percent 100 means success; InProgress false with Percent 0 means idle or
// failed.
type ExtractionState struct {
	InProgress bool
	Percent    float64
	Current    int
	Total      int
	Message    string
}

type TrainingState struct {
	InProgress  bool
	Percent     float64
	Epoch       int
	TotalEpochs int
	Logs        push.TrainingLogs
}

type DeploymentState struct {
	InProgress bool
	Percent    float64
	Message    string
}
