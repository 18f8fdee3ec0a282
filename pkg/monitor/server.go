// Package monitor exposes the running application over HTTP: the newest
// frame as a JPEG, the calibration status, and start/cancel of a session.
package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/capture"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/intothevoid/calibcam/pkg/latest"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const subscriber = "monitor"

// Controller is the part of calib.Controller the server drives.
type Controller interface {
	Start(req calib.Request) (string, error)
	Cancel() bool
	Active() bool
}

// Config wires the server to the rest of the application.
type Config struct {
	Addr       string
	Controller Controller
	Statuses   *latest.Hub[calib.Status]
	Frames     *latest.Hub[frame.Frame]
	// Defaults fills fields a start request leaves out.
	Defaults calib.Request
	// Stats is optional.
	Stats func() capture.Stats
	Log   zerolog.Logger
}

// Server is the HTTP surface. It keeps the newest frame and status it has
// seen so requests never wait for the camera.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	http     *http.Server
	statuses *latest.Slot[calib.Status]
	frames   *latest.Slot[frame.Frame]
	log      zerolog.Logger
	started  time.Time

	mu     sync.Mutex
	status calib.Status
	frame  frame.Frame
}

// New subscribes to the hubs and registers the routes. Close releases the
// subscriptions.
func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   gin.New(),
		statuses: cfg.Statuses.Subscribe(subscriber),
		frames:   cfg.Frames.Subscribe(subscriber),
		log:      cfg.Log.With().Str("component", "monitor").Logger(),
		started:  time.Now(),
		status:   calib.Status{Kind: cfg.Defaults.Kind},
	}
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.setupRoutes()

	s.http = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.engine,
		ReadTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/frame.jpg", s.handleFrame)
	api.POST("/calibration", s.handleStart)
	api.DELETE("/calibration", s.handleCancel)
}

// Handler is the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return errors.Wrap(err, "monitor server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "monitor shutdown")
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

func (s *Server) Close() {
	s.cfg.Statuses.Unsubscribe(subscriber)
	s.cfg.Frames.Unsubscribe(subscriber)
}

// snapshot drains both slots into the cached values and returns them.
func (s *Server) snapshot() (calib.Status, frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses.TryRecv(); ok {
		s.status = st
	}
	if f, ok := s.frames.TryRecv(); ok {
		s.frame = f
	}
	return s.status, s.frame
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
