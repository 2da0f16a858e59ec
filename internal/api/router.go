package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justyntemme/exlibris/internal/auth"
)

// NewRouter wires the handlers onto a gin engine. Reads are public; every
// route that changes the catalog requires a bearer token, and deleting
// images is reserved for admins.
func NewRouter(h *Handler, ah *AuthHandler, tokens *auth.Manager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/health", h.HealthCheck)

	apiGroup := r.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/login", ah.Login)
			authGroup.POST("/refresh", ah.RefreshToken)
		}

		// Public reads
		apiGroup.GET("/isbn/convert", h.ConvertISBN)
		apiGroup.GET("/isbn/:isbn/lookup", h.LookupISBN)
		apiGroup.GET("/authors", h.ListAuthors)
		apiGroup.GET("/works", h.ListWorks)
		apiGroup.GET("/volumes", h.ListVolumes)
		apiGroup.GET("/volumes/:id", h.GetVolume)
		apiGroup.GET("/booksets", h.ListBookSets)
		apiGroup.GET("/images/:id/:size", h.ServeImage)

		protected := apiGroup.Group("")
		protected.Use(tokens.Middleware())
		{
			protected.GET("/auth/me", ah.GetCurrentUser)

			protected.POST("/authors", h.CreateAuthor)
			protected.POST("/authors/:id/aliases", h.AddAlias)
			protected.POST("/works", h.CreateWork)

			protected.POST("/volumes", h.CreateVolume)
			protected.POST("/volumes/:id/cover/cache", h.CacheVolumeCover)
			protected.POST("/volumes/:id/images", h.UploadVolumeImages)

			protected.POST("/booksets", h.CreateBookSet)
			protected.POST("/booksets/:id/cover/cache", h.CacheBookSetCover)

			protected.DELETE("/images/:id", auth.RequireAdmin(), h.DeleteImage)
		}
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
