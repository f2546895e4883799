package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/config"
	"github.com/emilythestrangee/grievance-portal/backend/internal/handlers"
	"github.com/emilythestrangee/grievance-portal/backend/internal/middleware"
)

// HealthChecker reports dependency health for /health.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// Pinger is an optional dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg         *config.Config
	handler     *handlers.Handler
	tokens      middleware.TokenParser
	health      HealthChecker
	cache       Pinger
	voteLimiter *middleware.RateLimiter
	logg        logrus.FieldLogger
}

// New wires the router. cache may be nil when Redis is not configured.
func New(cfg *config.Config, handler *handlers.Handler, tokens middleware.TokenParser, health HealthChecker, cache Pinger, logg logrus.FieldLogger) *Server {
	return &Server{
		cfg:         cfg,
		handler:     handler,
		tokens:      tokens,
		health:      health,
		cache:       cache,
		voteLimiter: middleware.NewRateLimiter(cfg.VoteRateLimit.PerSecond, cfg.VoteRateLimit.Burst),
		logg:        logg,
	}
}

// HTTPServer wraps the router in an http.Server listening on cfg.Port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(s.logg))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(s.cfg.AllowOrigins),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)

	h := s.handler
	api := r.Group("/api")
	{
		api.POST("/register", h.Auth.Register)
		api.POST("/login", h.Auth.Login)
		api.GET("/stats", h.Grievance.GetStats)
		api.GET("/departments", h.Admin.GetDepartments)

		// Public reads; a valid token adds the caller's own votes
		public := api.Group("")
		public.Use(middleware.OptionalAuth(s.tokens))
		{
			public.GET("/grievances", h.Grievance.GetGrievances)
			public.GET("/grievances/:id", h.Grievance.GetGrievance)
			public.GET("/grievances/:id/comments", h.Comment.GetComments)
			public.GET("/users/:id", h.User.GetUserProfile)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.tokens))
		{
			protected.GET("/me", h.Auth.GetMe)

			protected.POST("/grievances", h.Grievance.CreateGrievance)
			protected.PATCH("/grievances/:id", h.Grievance.UpdateGrievance)
			protected.DELETE("/grievances/:id", h.Grievance.DeleteGrievance)

			protected.POST("/grievances/:id/comments", h.Comment.CreateComment)
			protected.PATCH("/comments/:id", h.Comment.UpdateComment)
			protected.DELETE("/comments/:id", h.Comment.DeleteComment)

			voting := protected.Group("")
			voting.Use(middleware.VoteRateLimit(s.voteLimiter))
			{
				voting.POST("/grievances/:id/vote", h.Grievance.VoteGrievance)
				voting.POST("/comments/:id/vote", h.Comment.VoteComment)
			}
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(s.tokens), middleware.RequireAdmin())
		{
			admin.GET("/grievances", h.Admin.GetQueue)
			admin.POST("/grievances/:id/assignments", h.Admin.CreateAssignment)
			admin.POST("/grievances/:id/recount", h.Admin.RecountGrievance)
			admin.GET("/assignments", h.Admin.GetAssignments)
			admin.PATCH("/assignments/:id", h.Admin.UpdateAssignment)
			admin.POST("/departments", h.Admin.CreateDepartment)
		}
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	stats := s.health.Health(ctx)
	if s.cache != nil {
		stats["redis"] = "up"
		if err := s.cache.Ping(ctx); err != nil {
			// the stats cache is optional, so a Redis outage does not fail the check
			stats["redis"] = "down"
		}
	}
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}
