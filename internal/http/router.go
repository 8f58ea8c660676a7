package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/finpulse-backend/internal/http/handlers"
	httpMW "github.com/yungbote/finpulse-backend/internal/http/middleware"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware
	HealthHandler  *httpH.HealthHandler
	RunHandler     *httpH.RunHandler
	UserHandler    *httpH.UserHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Runs
		if cfg.RunHandler != nil {
			api.POST("/runs/pipeline", cfg.RunHandler.RunPipeline)
			api.POST("/runs/suggestions", cfg.RunHandler.RunSuggestions)
		}

		// Users
		if cfg.UserHandler != nil {
			api.GET("/users/:user_id/profile", cfg.UserHandler.GetProfile)
			api.GET("/users/:user_id/suggestions", cfg.UserHandler.ListSuggestions)
		}
	}

	return r
}
