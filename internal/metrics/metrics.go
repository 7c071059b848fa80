package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workbench_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"endpoint"},
	)

	APIRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_api_request_total",
			Help: "Total backend API requests",
		},
		[]string{"endpoint", "status"},
	)

	PushEventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_push_events_received_total",
			Help: "Push channel events received by name",
		},
		[]string{"event"},
	)

	PushEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workbench_push_events_dropped_total",
			Help: "Push events dropped because they belong to another project",
		},
	)

	PushReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workbench_push_reconnects_total",
			Help: "Push channel reconnect attempts",
		},
	)

	StoreEventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_store_events_emitted_total",
			Help: "Store change events emitted by key",
		},
		[]string{"key"},
	)

	JobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_jobs_submitted_total",
			Help: "Jobs submitted to the backend",
		},
		[]string{"job", "status"},
	)

	PanelOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_panel_opens_total",
			Help: "Panel activations by panel name",
		},
		[]string{"panel"},
	)

	PatchOverlays = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workbench_patch_overlays",
			Help: "Patch overlays currently on the map",
		},
	)
)

func Init() {
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(APIRequestTotal)
	prometheus.MustRegister(PushEventsReceived)
	prometheus.MustRegister(PushEventsDropped)
	prometheus.MustRegister(PushReconnects)
	prometheus.MustRegister(StoreEventsEmitted)
	prometheus.MustRegister(JobsSubmitted)
	prometheus.MustRegister(PanelOpens)
	prometheus.MustRegister(PatchOverlays)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
