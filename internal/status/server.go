// Package status serves a read-only HTTP view of a running verification.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/CactiLab/FIDO2Verif/internal/auth"
	"github.com/CactiLab/FIDO2Verif/internal/logging"
	"github.com/CactiLab/FIDO2Verif/internal/observability"
	"github.com/CactiLab/FIDO2Verif/internal/orchestrator"
)

const shutdownGrace = 5 * time.Second

// Source is what the server reports on.
type Source interface {
	Snapshot() []orchestrator.Progress
	Done() bool
}

type Options struct {
	RunID       string
	Addr        string
	CorsOrigins []string
	// Token, when set, is required as a bearer token on every route but
	// /health.
	Token string
}

type Server struct {
	RunID   string
	Addr    string
	Started time.Time

	source Source
	router *gin.Engine
	guard  gin.HandlerFunc
}

func New(opts Options, source Source) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		RunID:   opts.RunID,
		Addr:    opts.Addr,
		Started: time.Now(),
		source:  source,
		router:  r,
		guard:   func(c *gin.Context) { c.Next() },
	}
	if opts.Token != "" {
		s.guard = auth.RequireBearer(auth.StaticToken{Token: opts.Token})
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"run_id": s.RunID,
			"uptime": time.Since(s.Started).String(),
		})
	})

	routes := s.router.Group("/", s.guard)

	// ready flips once every phase worker has finished
	routes.GET("/ready", func(c *gin.Context) {
		done := s.source.Done()
		status := http.StatusOK
		if !done {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":  done,
			"run_id": s.RunID,
			"uptime": time.Since(s.Started).String(),
		})
	})

	routes.GET("/phases", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"run_id": s.RunID,
			"phases": s.source.Snapshot(),
		})
	})

	routes.GET("/phases/:phase", func(c *gin.Context) {
		name := c.Param("phase")
		for _, p := range s.source.Snapshot() {
			if p.Phase == name {
				c.JSON(http.StatusOK, p)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "phase not tracked: " + name})
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Serve listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("status.Server.Serve listening addr=%s run_id=%s", s.Addr, s.RunID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
