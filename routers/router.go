package routers

import (
	"net/http"
	"time"

	"make-comics-server/routers/api"
	"make-comics-server/routers/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

type Options struct {
	AllowedOrigins []string
	// Metrics registers the gin request collectors and GET /metrics.
	Metrics bool
}

func InitRouter(h *api.Handler, verifier *middleware.JWTVerifier, logger *zap.Logger, opts Options) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ZapLogger(logger))
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	if opts.Metrics {
		p := ginprometheus.NewPrometheus("gin")
		p.Use(r)
	}

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/health", health)
	r.HEAD("/health", health)

	requireAuth := middleware.RequireAuth(verifier)
	optionalAuth := middleware.OptionalAuth(verifier)

	v1 := r.Group("/v1/api")
	{
		v1.POST("/generate-comic", requireAuth, h.GenerateComic)
		v1.POST("/pages/:page_id/redraw", requireAuth, h.RedrawPage)
		v1.GET("/pages/:page_id/ws", h.PageStatusWebSocket)
		v1.GET("/stories", requireAuth, h.ListStories)
		v1.GET("/stories/:slug", optionalAuth, h.GetStory)
		v1.POST("/uploads", requireAuth, h.UploadCharacterImage)
		v1.GET("/styles", h.ListStyles)
	}

	return r
}
