package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/probe"
	"github.com/sanverite/tweakd/internal/tweak"
)

// Constants for route prefixing. Versioning is explicit to allow non-breaking additions.
const (
	APIVersion     = "v1"
	DefaultAddress = "127.0.0.1:8787"
)

// ServerOptions configures the HTTP server.
// Timeouts are conservative defaults suitable for a local control-plane server.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	// WriteTimeout of zero leaves writes unbounded; patch requests and the
	// live log stream can run for minutes.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// PatchTimeout bounds a feature patch. The patch keeps running if the
	// client disconnects.
	PatchTimeout time.Duration
	Probe        probe.Config
	Logger       *slog.Logger
}

// Deps are the engine components the API drives. Features may be nil when
// the feature backend is not configured.
type Deps struct {
	State    *core.State
	Tweaks   *tweak.Registry
	Features *feature.Controller
}

// Server hosts the HTTP API for the daemon.
type Server struct {
	http     *http.Server
	router   *gin.Engine
	state    *core.State
	tweaks   *tweak.Registry
	features *feature.Controller
	logger   *slog.Logger
	opts     ServerOptions
}

// NewServer constructs a new API server bound to the provided components.
// The server does not start listening until Start is called.
func NewServer(deps Deps, opts ServerOptions) *Server {
	if deps.State == nil {
		panic("api.NewServer: state is nil")
	}
	if deps.Tweaks == nil {
		panic("api.NewServer: tweak registry is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.PatchTimeout == 0 {
		opts.PatchTimeout = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "api")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router:   router,
		state:    deps.State,
		tweaks:   deps.Tweaks,
		features: deps.Features,
		logger:   logger,
		opts:     opts,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
			BaseContext: func(l net.Listener) context.Context {
				return context.Background()
			},
		},
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/" + APIVersion)
	v1.GET("/healthz", s.handleHealthz)
	v1.GET("/status", s.handleStatus)
	v1.POST("/probe", s.handleProbe)

	v1.GET("/tweaks", s.handleListTweaks)
	v1.GET("/tweaks/:name", s.handleGetTweak)
	v1.PATCH("/tweaks/:name", s.handleUpdateTweak)
	v1.POST("/tweaks/:name/load", s.handleLoadTweak)
	v1.POST("/tweaks/:name/save", s.handleSaveTweak)
	v1.POST("/tweaks/:name/apply", s.handleApplyTweak)
	v1.POST("/presets/:name/apply", s.handleApplyPreset)
	v1.GET("/export", s.handleExport)
	v1.POST("/import", s.handleImport)

	if s.features != nil {
		v1.GET("/features", s.handleGetFeatures)
		v1.POST("/features/load", s.handleLoadFeatures)
		v1.PUT("/features/toggles", s.handleSetToggles)
		v1.PUT("/features/pending", s.handleSetPending)
		v1.DELETE("/features/pending", s.handleClearPending)
		v1.POST("/features/patch", s.handlePatch)
		v1.GET("/features/log", s.handleFeatureLog)
	}

	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not found")
	})
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving HTTP in a background goroutine.
// It returns immediately; use Stop for graceful shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ListenAndServe failed", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}

// handleHealthz is a simple readiness/liveness endpoint.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": TimeNow().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the current daemon snapshot.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, FromCoreSnapshot(s.state.GetSnapshot()))
}

// handleProbe runs is_available for every tweak and returns the summaries.
// Method: POST
// Response (200): ProbeResponse JSON, also visible under /v1/status
// Errors:
//   - 502 when any probe failed; state still updates
func (s *Server) handleProbe(c *gin.Context) {
	var probers []probe.Prober
	for _, name := range s.tweaks.Names() {
		if ctrl, err := s.tweaks.Controller(name); err == nil {
			probers = append(probers, ctrl)
		}
	}
	err := probe.ProbeAll(c.Request.Context(), s.state, probers, s.opts.Probe)
	resp := ProbeResponse{Availability: availabilityViews(s.state.GetSnapshot().Availability)}
	if err != nil {
		s.logger.Warn("probe failed", "error", err)
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// requestLogger logs method, path, status and duration for every request.
// No CORS or auth because this is a local control-plane service.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := TimeNow()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ua", c.Request.UserAgent(),
		)
	}
}
