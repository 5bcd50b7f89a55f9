// Package api exposes the engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/config"
	"civicpulse.app/engagement/internal/features/activity"
	"civicpulse.app/engagement/internal/features/engagement"
	"civicpulse.app/engagement/internal/features/moderation"
)

// Deps are the services the API serves. Moderation may be nil when the
// moderation feature is off.
type Deps struct {
	Scoring    *engagement.Service
	Moderation *moderation.Service
	Activity   *activity.Service
	Health     func(ctx context.Context) error
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	limiter *RateLimiter
}

// NewServer builds the router.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(Recovery(), RequestLogger(), SecurityHeaders())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.HTTPCORSOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", AdminTokenHeader},
		ExposeHeaders: []string{"Content-Length"},
	}))

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		limiter: NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
	}
	h := &Handler{
		scoring:    deps.Scoring,
		moderation: deps.Moderation,
		activity:   deps.Activity,
		health:     deps.Health,
		maxPage:    cfg.LeaderboardMaxLimit,
	}
	s.routes(h)
	return s
}

func (s *Server) routes(h *Handler) {
	s.engine.GET("/healthz", h.Health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	{
		v1.PUT("/members/:id", h.UpsertMember)
		v1.POST("/members/:id/points", s.limiter.Middleware(), h.AwardPoints)
		v1.GET("/members/:id/points", h.PointHistory)
		v1.GET("/members/:id/stats", h.MemberStats)
		v1.GET("/members/:id/activity", h.Activity)
		v1.GET("/leaderboard", h.Leaderboard)
	}

	if h.moderation == nil {
		return
	}
	v1.GET("/petitions/:id/moderation", h.ModerationHistory)
	v1.GET("/moderation/stats", h.ModerationStats)

	admin := v1.Group("/admin", AdminAuth(s.cfg.AdminTokenHash))
	admin.PUT("/petitions/:id", h.SyncPetition)
	admin.POST("/moderation/run", h.RunModeration)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Close()

	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("HTTP server stopped")
	return nil
}

// Close releases background resources when Run was never called.
func (s *Server) Close() {
	s.limiter.Close()
}
