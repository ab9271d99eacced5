// Package server exposes the HTTP API: routing, auth, and the error taxonomy.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	assignmentdomain "github.com/Romeobluesky/callup-api/internal/assignment/domain"
	"github.com/Romeobluesky/callup-api/internal/config"
	dispositiondomain "github.com/Romeobluesky/callup-api/internal/disposition/domain"
	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
	"github.com/Romeobluesky/callup-api/internal/observability/logger"
	"github.com/Romeobluesky/callup-api/internal/observability/metrics"
	"github.com/Romeobluesky/callup-api/internal/observability/tracing"
	statsdomain "github.com/Romeobluesky/callup-api/internal/stats/domain"
)

type ServerParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Engine *gin.Engine

	LeadSvc        leaddomain.Service
	DispositionSvc dispositiondomain.Service
	StatsSvc       statsdomain.Service
	AssignmentSvc  assignmentdomain.Service
}

// Server holds the route handlers and their collaborators.
type Server struct {
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	engine *gin.Engine

	leadSvc        leaddomain.Service
	dispositionSvc dispositiondomain.Service
	statsSvc       statsdomain.Service
	assignmentSvc  assignmentdomain.Service

	claimLimiter *rateLimiter
}

func NewServer(p ServerParam) *Server {
	return &Server{
		cfg:    p.Config,
		log:    p.Log.Named("server"),
		db:     p.DB,
		engine: p.Engine,

		leadSvc:        p.LeadSvc,
		dispositionSvc: p.DispositionSvc,
		statsSvc:       p.StatsSvc,
		assignmentSvc:  p.AssignmentSvc,

		claimLimiter: newRateLimiter(p.Config.ClaimRateLimit, p.Config.ClaimRateWindow),
	}
}

type EngineParam struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

// NewEngine builds the gin engine with the shared middleware chain.
func NewEngine(p EngineParam) *gin.Engine {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz"},
	}))
	engine.Use(tracing.GinMiddleware(p.Config.ServiceName))
	if p.HTTPMetrics != nil {
		engine.Use(metrics.GinMiddleware(p.HTTPMetrics))
	}
	return engine
}

// RegisterAPIRoutes mounts the v1 surface. Everything under /v1 requires a
// verified principal; /healthz does not.
func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/healthz", s.Healthz)

	v1 := s.engine.Group("/v1")
	v1.Use(s.RequirePrincipal())
	{
		v1.POST("/claims", s.rateLimitClaims(), s.ClaimLeads)
		v1.POST("/dispositions", s.RecordDisposition)
		v1.GET("/dispositions", s.ListDispositions)
		v1.GET("/leads", s.ListLeads)
		v1.GET("/pools", s.ListPools)
		v1.GET("/pools/:id/next", s.NextLead)
		v1.GET("/stats", s.GetStats)
		v1.POST("/assignments", s.RequireAdmin(), s.BulkAssign)
	}
}

// Healthz reports liveness and store reachability.
func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener on the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
