package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantrychef/internal/auth"
)

// RouterConfig holds what NewRouter needs beyond the handler.
type RouterConfig struct {
	AuthMode       string
	Verifier       auth.Verifier
	AllowOrigins   []string
	MaxUploadBytes int64
	ImagesDir      string
	ImagesURL      string
}

// NewRouter registers middleware and routes.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:8081"}
	}

	r := gin.New()

	r.Use(requestid.New())
	r.Use(Recovery(logger))
	r.Use(RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", auth.UserHeader, "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", h.Health)
	if cfg.ImagesDir != "" {
		r.Static(cfg.ImagesURL, cfg.ImagesDir)
	}

	apiGroup := r.Group("/api")
	if cfg.MaxUploadBytes > 0 {
		apiGroup.Use(BodySizeLimit(cfg.MaxUploadBytes))
	}
	apiGroup.Use(auth.Middleware(cfg.AuthMode, cfg.Verifier, logger))

	apiGroup.POST("/search/ingredients", h.SearchIngredients)
	apiGroup.POST("/search/images", h.SearchImages)
	apiGroup.GET("/recipes/:title", h.GetResult)

	apiGroup.GET("/bookmarks", h.ListBookmarks)
	apiGroup.POST("/bookmarks", h.SaveBookmark)
	apiGroup.GET("/bookmarks/status", h.BookmarkStatus)
	apiGroup.DELETE("/bookmarks/:id", h.DeleteBookmark)

	apiGroup.GET("/profile", h.GetProfile)

	return r
}
