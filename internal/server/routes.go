package server

import (
	"github.com/OFFIS-RIT/fundtrace/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Identification
	apiRoutes.POST("/cases/:case_id/chains/identify", routes.IdentifyChainsHandler, middleware.RequirePermission(middleware.PermChainIdentify))
	apiRoutes.POST("/cases/:case_id/chains/identify/async", routes.IdentifyChainsAsyncHandler, middleware.RequirePermission(middleware.PermChainIdentify))

	// Stored chains
	apiRoutes.GET("/cases/:case_id/chains", routes.GetChainsHandler, middleware.RequirePermission(middleware.PermChainView))
	apiRoutes.GET("/cases/:case_id/chains/visualization", routes.GetVisualizationHandler, middleware.RequirePermission(middleware.PermChainView))
	apiRoutes.GET("/chains/:id", routes.GetChainDetailHandler, middleware.RequirePermission(middleware.PermChainView))
	apiRoutes.DELETE("/chains/:id", routes.DeleteChainHandler, middleware.RequirePermission(middleware.PermChainDelete))
}
