package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mint-desk/pkg/middleware"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handlers, admins middleware.AdminChecker, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ZapLogger(log))
	router.Use(middleware.CORS(h.config.CORSOrigins))

	router.GET("/health", h.HealthCheck)
	router.GET("/", h.Storefront)

	mint := router.Group("/api/mint-requests")
	mint.POST("", h.HandleMintRequest)
	mint.PATCH("/:id/status", h.HandleStatusUpdate)

	admin := router.Group("/admin")
	admin.GET("/people", middleware.AdminWallets(admins, log), h.People)
	admin.GET("/people/stream", middleware.AdminWalletsForStream(admins, log), h.PeopleStream)

	return router
}
