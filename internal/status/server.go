// Package status runs a small localhost HTTP server for operability: health,
// a JSON snapshot of the store for debugging, and prometheus metrics.
package status

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/internal/store"
	"github.com/geo-workbench/client/pkg/logger"
)

type Server struct {
	app   *fiber.App
	store *store.Store
	addr  string
}

func New(st *store.Store, host string, port int) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:   app,
		store: st,
		addr:  fmt.Sprintf("%s:%d", host, port),
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/state", s.handleState)
	app.Get("/metrics", metrics.Handler())

	return s
}

func (s *Server) handleState(c *fiber.Ctx) error {
	keys := []string{
		store.KeyCurrentProjectID,
		store.KeyCurrentProjectName,
		store.KeyPointCounts,
		store.KeyExtractionProgress,
		store.KeyTrainingProgress,
		store.KeyDeploymentProgress,
		store.KeyClearPointsMode,
	}

	snapshot := make(map[string]any, len(keys))
	for _, key := range keys {
		snapshot[key] = s.store.Get(key)
	}

	return c.JSON(snapshot)
}

func (s *Server) Start() {
	go func() {
		logger.Info("Status server listening", zap.String("addr", s.addr))
		if err := s.app.Listen(s.addr); err != nil {
			logger.Warn("Status server stopped", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
