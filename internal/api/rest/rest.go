package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/clearmint/captable/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Investor endpoints
		v1.POST("/investors", middleware.Auth(authCfg), handler.CreateInvestor)
		v1.GET("/investors/:investor_id", handler.GetInvestor)
		v1.PATCH("/investors/:investor_id", middleware.Auth(authCfg), handler.UpdateInvestor)

		// Subscription lifecycle endpoints
		v1.POST("/subscriptions", middleware.Auth(authCfg), handler.CreateSubscription)
		v1.POST("/subscriptions/import", middleware.Auth(authCfg), handler.ImportSubscriptions)
		v1.GET("/subscriptions/:subscription_id", handler.GetSubscription)
		v1.PATCH("/subscriptions/:subscription_id", middleware.Auth(authCfg), handler.UpdateSubscription)
		v1.DELETE("/subscriptions/:subscription_id", middleware.Auth(authCfg), handler.DeleteSubscription)
		v1.POST("/subscriptions/:subscription_id/confirm", middleware.Auth(authCfg), handler.ConfirmSubscription)
		v1.POST("/subscriptions/:subscription_id/allocation", middleware.Auth(authCfg), handler.AllocateSubscription)
		v1.DELETE("/subscriptions/:subscription_id/allocation", middleware.Auth(authCfg), handler.RemoveAllocation)

		// Batch distribution
		v1.POST("/distributions", middleware.Auth(authCfg), handler.DistributeTokens)

		// Manual KYC expiration sweep
		v1.POST("/kyc/sweep", middleware.Auth(authCfg), handler.SweepKYC)

		// Project endpoints
		v1.GET("/projects", handler.ListProjects)
		v1.POST("/projects", middleware.Auth(authCfg), handler.CreateProject)
		v1.DELETE("/projects/:project_id", middleware.Auth(authCfg), handler.DeleteProject)

		// Cap table endpoints
		v1.POST("/cap-tables", middleware.Auth(authCfg), handler.CreateCapTable)
		v1.GET("/cap-tables/:cap_table_id", handler.GetCapTable)
		v1.DELETE("/cap-tables/:cap_table_id", middleware.Auth(authCfg), handler.DeleteCapTable)
		v1.GET("/cap-tables/:cap_table_id/investors", handler.ListCapTableInvestors)
		v1.POST("/cap-tables/:cap_table_id/investors", middleware.Auth(authCfg), handler.AddCapTableInvestor)
		v1.POST("/cap-tables/:cap_table_id/investors/import", middleware.Auth(authCfg), handler.ImportInvestors)
		v1.DELETE("/cap-tables/:cap_table_id/investors/:investor_id", middleware.Auth(authCfg), handler.RemoveCapTableInvestor)
		v1.GET("/cap-tables/:cap_table_id/summary", handler.GetCapTableSummary)
		v1.GET("/cap-tables/:cap_table_id/export", handler.ExportCapTable)

		// Changes endpoint (public read access)
		v1.GET("/changes", handler.GetChanges)
	}
}
