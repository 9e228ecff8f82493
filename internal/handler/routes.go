package handler

import (
	"github.com/kassenwart/kassenwart-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, dashboardHandler *DashboardHandler, memberHandler *MemberHandler, mandateHandler *MandateHandler, batchHandler *BatchHandler, transmissionHandler *TransmissionHandler, notificationHandler *NotificationHandler, wsHandler *WebSocketHandler) {
	// API version 1
	api := e.Group("/api/v1")

	dd := api.Group("/directdebit")
	dd.Use(authMiddleware.Authenticate())

	// Bank submissions go through the rate limiter so a stuck client
	// cannot hammer the banking backend with initiation attempts.
	bankLimiter := middleware.RateLimitMiddleware(middleware.NewRateLimiter())

	// Dashboard routes (protected)
	dd.GET("/dashboard", dashboardHandler.GetSummary)
	dd.GET("/debit-date", dashboardHandler.GetDebitDate)

	// Member routes (protected)
	dd.GET("/members", memberHandler.List)
	dd.GET("/members/:id/notifications", notificationHandler.ListByMember)

	// Mail outbox routes for the delivery collaborator (protected)
	dd.GET("/notifications", notificationHandler.ListUnsent)
	dd.POST("/notifications/:id/sent", notificationHandler.MarkSent)

	// Mandate routes (protected)
	dd.POST("/mandates/assign", mandateHandler.Assign)

	// Batch routes (protected)
	dd.POST("/batches", batchHandler.Prepare)
	dd.GET("/batches", batchHandler.List)
	dd.GET("/batches/:id", batchHandler.Get)

	// Transmission routes (protected)
	dd.GET("/connections", transmissionHandler.Connections)
	dd.POST("/batches/:id/transmit", transmissionHandler.Transmit, bankLimiter)
	dd.GET("/batches/:id/tan/:token", transmissionHandler.ChallengeForm)
	dd.POST("/batches/:id/tan/:token", transmissionHandler.Confirm, bankLimiter)
	dd.POST("/batches/:id/executed", transmissionHandler.MarkExecuted)
	dd.POST("/payments/:id/bounce", transmissionHandler.MarkPaymentBounced)

	// WebSocket endpoint (token auth via query parameter)
	e.GET("/ws", wsHandler.HandleWS)
}
