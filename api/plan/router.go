package plan

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/kilianp07/hems/infra/logger"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	Metrics        http.Handler
	Release        bool
}

// NewRouter builds the gin engine with health, metrics and /api/v1 routes.
func NewRouter(p Planner, history History, o ServerOptions) *gin.Engine {
	if o.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.New("http")))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if o.Metrics != nil {
		router.GET("/metrics", gin.WrapH(o.Metrics))
	}
	NewHandler(p, history, o.MaxBodyBytes).Register(router.Group("/api/v1"))
	return router
}

// NewServer wraps the router with CORS handling.
func NewServer(addr string, p Planner, history History, o ServerOptions) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins: o.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return &http.Server{Addr: addr, Handler: c.Handler(NewRouter(p, history, o))}
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("request", map[string]any{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		})
	}
}
