// Package server assembles the HTTP surface: gin engine, module wiring and
// the service status endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"storyreel/internal/compositor"
	"storyreel/internal/config"
	"storyreel/internal/events"
	"storyreel/internal/modules/exportmodule"
	"storyreel/internal/modules/playbackmodule"
	"storyreel/internal/modules/timelinemodule"
	"storyreel/internal/transcode/ffmpeg"
)

// Server owns the assembled service
type Server struct {
	logger    hclog.Logger
	cfg       *config.Config
	engine    *gin.Engine
	timelines *timelinemodule.Manager
	playback  *playbackmodule.Manager
	exports   *exportmodule.Manager
	watcher   *timelinemodule.Watcher
}

// New wires every module together. The preview compositor is created once and
// shared between the scheduler and the frame endpoints; export jobs build
// their own renderer per run.
func New(logger hclog.Logger, cfg *config.Config, db *gorm.DB) *Server {
	bus := events.NewBus(logger)

	timelines := timelinemodule.NewManager(logger, cfg.Timeline.ManifestPath)

	extractor := ffmpeg.NewExtractor(logger, cfg.Preview.Width, cfg.Preview.Height)
	previewCompositor := compositor.New(logger, extractor, cfg.Preview.Width, cfg.Preview.Height)
	playback := playbackmodule.NewManager(logger, bus, timelines, previewCompositor, cfg.Preview.TickInterval)

	store := exportmodule.NewSessionStore(db, logger)
	newRenderer := func(timeline *timelinemodule.Timeline) exportmodule.Renderer {
		comp := compositor.New(logger, extractor, cfg.Preview.Width, cfg.Preview.Height)
		comp.SetTimeline(timeline)
		return comp
	}
	newEncoder := func(fps int) exportmodule.Encoder {
		return ffmpeg.NewBufferEncoder(logger, cfg.Preview.Width, cfg.Preview.Height, fps)
	}
	exports := exportmodule.NewManager(logger, bus, store, timelines, newRenderer, newEncoder, cfg.Export.FPS, cfg.Export.FrameTimeout)

	s := &Server{
		logger:    logger.Named("server"),
		cfg:       cfg,
		timelines: timelines,
		playback:  playback,
		exports:   exports,
	}

	if cfg.Timeline.ManifestPath != "" && cfg.Timeline.Watch {
		s.watcher = timelinemodule.NewWatcher(logger, timelines, cfg.Timeline.ManifestPath)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.Use(corsMiddleware())

	api := engine.Group("/api")
	{
		timelines.RegisterRoutes(api)
		hub := playbackmodule.NewPreviewHub(logger, bus, playback)
		playback.RegisterRoutes(api, hub)
		exports.RegisterRoutes(api)
		api.GET("/status", s.handleStatus)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	s.engine = engine
	return s
}

// Start launches background loops and serves HTTP until ctx is done
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Timeline.ManifestPath != "" {
		if _, err := s.timelines.Reload(); err != nil {
			// An absent or malformed manifest at boot is not fatal; the
			// service starts with an empty timeline.
			s.logger.Warn("initial manifest load failed", "error", err)
		}
	}

	s.playback.Start(ctx)
	if s.watcher != nil {
		go func() {
			if err := s.watcher.Run(ctx); err != nil && err != context.Canceled {
				s.logger.Error("manifest watcher exited", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: s.engine}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		s.playback.Compositor().Destroy()
	}()

	s.logger.Info("server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Engine exposes the router for tests
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	log := s.logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
