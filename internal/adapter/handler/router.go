package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coach-sidekick/coach-sidekick-api/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	webhookHandler *Webhook
	sessionHandler *Session
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, webhookHandler *Webhook, sessionHandler *Session) *Router {
	return &Router{
		cfg:            cfg,
		webhookHandler: webhookHandler,
		sessionHandler: sessionHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group
	v1 := e.Group("/v1")

	rt.setupWebhookRoutes(v1)
	rt.setupSessionRoutes(v1)
}

// setupWebhookRoutes configures inbound provider webhooks
func (rt *Router) setupWebhookRoutes(g *echo.Group) {
	webhooks := g.Group("/webhooks")

	if rt.webhookHandler != nil {
		webhooks.POST("/recall", rt.webhookHandler.HandleRecallEvent)
	} else {
		webhooks.POST("/recall", rt.notImplemented)
	}
}

// setupSessionRoutes configures session management routes
func (rt *Router) setupSessionRoutes(g *echo.Group) {
	sessions := g.Group("/sessions")

	if rt.sessionHandler == nil {
		sessions.GET("", rt.notImplemented)
		sessions.POST("", rt.notImplemented)
		return
	}

	sessions.GET("", rt.sessionHandler.List)
	sessions.POST("", rt.sessionHandler.Start)
	sessions.GET("/:botId", rt.sessionHandler.Get)
	sessions.POST("/:botId/stop", rt.sessionHandler.Stop)
	sessions.GET("/:botId/batch-status", rt.sessionHandler.BatchStatus)
	sessions.POST("/:botId/force-save", rt.sessionHandler.ForceSave)
	sessions.POST("/:botId/analyze", rt.sessionHandler.Analyze)
	sessions.GET("/:botId/analysis", rt.sessionHandler.GetAnalysis)
	sessions.GET("/:botId/suggestions", rt.sessionHandler.Suggestions)
	sessions.GET("/:botId/transcript", rt.sessionHandler.Transcript)
	sessions.DELETE("/:botId/transcript", rt.sessionHandler.DeleteTranscript)
	sessions.GET("/:botId/analyses", rt.sessionHandler.AnalysisHistory)
	sessions.GET("/:botId/summary", rt.sessionHandler.Summary)
	sessions.GET("/:botId/archives", rt.sessionHandler.Archives)
}

// notImplemented returns 501 Not Implemented response
func (rt *Router) notImplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]interface{}{
		"error":   "This endpoint is not yet implemented",
		"path":    c.Request().URL.Path,
		"method":  c.Request().Method,
		"message": "Please initialize the required handler in main.go",
	})
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
