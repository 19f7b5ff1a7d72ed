package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/demandly/casefile-backend/internal/handlers"
	"github.com/demandly/casefile-backend/internal/middleware"
	"github.com/demandly/casefile-backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	CaseHandler     *handlers.CaseHandler
	DocumentHandler *handlers.DocumentHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			envutil.String("FRONTEND_ORIGIN", "http://localhost:3000"),
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.POST("/register", cfg.AuthHandler.Register)
	api.POST("/login", cfg.AuthHandler.Login)

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	protected.POST("/cases", cfg.CaseHandler.CreateCase)
	protected.GET("/cases", cfg.CaseHandler.ListCases)
	protected.GET("/cases/:id", cfg.CaseHandler.GetCase)
	protected.GET("/cases/:id/events", cfg.CaseHandler.GetEvents)
	protected.GET("/cases/:id/chronology", cfg.CaseHandler.GetChronology)
	protected.POST("/cases/:id/documents", cfg.DocumentHandler.Upload)

	protected.GET("/documents/:id", cfg.DocumentHandler.GetDocument)
	protected.GET("/documents/:id/download", cfg.DocumentHandler.DownloadURL)
	protected.POST("/documents/:id/reprocess", cfg.DocumentHandler.Reprocess)
	protected.DELETE("/documents/:id", cfg.DocumentHandler.DeleteDocument)

	return router
}
