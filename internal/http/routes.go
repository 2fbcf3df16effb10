package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minigame_bot/internal/http/handlers"
	"minigame_bot/internal/http/middleware"
	"minigame_bot/internal/session"
	"minigame_bot/internal/store"
)

// RegisterRoutes wires the admin surface: health probes, prometheus
// metrics and the JWT-protected room endpoints.
func RegisterRoutes(r *gin.Engine, st store.Store, mgr *session.Manager, version string) {
	r.Use(middleware.Metrics())

	healthHandler := handlers.NewHealthHandler(st, version)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	roomsHandler := handlers.NewRoomsHandler(mgr)
	admin := r.Group("/admin", middleware.AdminAuth())
	{
		admin.GET("/rooms", roomsHandler.List)
		admin.GET("/rooms/:id", roomsHandler.Get)
		admin.POST("/rooms/:id/end", roomsHandler.ForceEnd)
	}
}
