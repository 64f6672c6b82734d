// Package api implements the HTTP and websocket surface of the
// scheduler daemon.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/collector"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/config"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/events"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     logger.Interface
}

// Params holds the dependencies for building the server.
type Params struct {
	Config     config.APIConfig
	Scheduler  Scheduler
	Logs       CollectionLogStore
	Collectors *collector.Registry
	Bus        *events.Bus
	Registry   *prometheus.Registry
	Logger     logger.Interface
}

// NewServer builds the router and server.
func NewServer(p Params) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	jobs := NewJobsHandler(p.Scheduler)
	ingestion := NewIngestionHandler(p.Logs)
	collectors := NewCollectorsHandler(p.Collectors)
	ws := NewWSHandler(p.Bus, p.Logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})))
	router.GET("/ws/scheduler", ws.Handle)

	apiGroup := router.Group("/api")
	{
		schedGroup := apiGroup.Group("/scheduler")
		schedGroup.POST("/jobs", jobs.CreateJob)
		schedGroup.GET("/jobs", jobs.ListJobs)
		schedGroup.GET("/jobs/:id", jobs.GetJob)
		schedGroup.PATCH("/jobs/:id", jobs.UpdateJob)
		schedGroup.DELETE("/jobs/:id", jobs.DeleteJob)
		schedGroup.POST("/jobs/:id/trigger", jobs.TriggerJob)
		schedGroup.POST("/jobs/:id/pause", jobs.PauseJob)
		schedGroup.POST("/jobs/:id/resume", jobs.ResumeJob)
		schedGroup.GET("/jobs/:id/executions", jobs.ListExecutions)
		schedGroup.GET("/stats", jobs.Stats)

		apiGroup.GET("/ingestion/logs", ingestion.ListLogs)

		collGroup := apiGroup.Group("/collectors")
		collGroup.GET("/metadata", collectors.Metadata)
		collGroup.GET("/:asset_type/options", collectors.Options)
		collGroup.GET("/:asset_type/search", collectors.Search)
		collGroup.POST("/validate", collectors.Validate)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         p.Config.Address(),
			Handler:      router,
			ReadTimeout:  p.Config.ReadTimeout,
			WriteTimeout: p.Config.WriteTimeout,
		},
		logger: p.Logger.WithComponent("api"),
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
