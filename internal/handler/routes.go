package handler

import (
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler the API serves
type Handlers struct {
	Auth        *AuthHandler
	Milestone   *MilestoneHandler
	Wallet      *WalletHandler
	Transaction *TransactionHandler
	Budget      *BudgetHandler
	Backup      *BackupHandler
	Report      *ReportHandler
	WebSocket   *WebSocketHandler
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, h Handlers) {
	// Token comes in the query string; the handler validates it itself
	if h.WebSocket != nil {
		e.GET("/ws", h.WebSocket.HandleWS)
	}

	// API version 1 (protected)
	api := e.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())
	if rateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	if h.Auth != nil {
		api.GET("/auth/me", h.Auth.Me)
	}

	// Milestone routes
	milestones := api.Group("/milestones")
	milestones.POST("", h.Milestone.CreateMilestone)
	milestones.GET("", h.Milestone.GetMilestones)
	milestones.GET("/:id", h.Milestone.GetMilestone)
	milestones.PATCH("/:id", h.Milestone.UpdateMilestone)
	milestones.DELETE("/:id", h.Milestone.DeleteMilestone)
	milestones.PATCH("/:id/status", h.Milestone.UpdateStatus)
	milestones.GET("/:id/check-progress", h.Milestone.CheckProgress)

	// Wallet routes
	wallets := api.Group("/wallets")
	wallets.POST("", h.Wallet.CreateWallet)
	wallets.GET("", h.Wallet.GetWallets)
	wallets.GET("/net-worth", h.Wallet.GetNetWorth)
	wallets.GET("/:id", h.Wallet.GetWallet)
	wallets.PUT("/:id", h.Wallet.UpdateWallet)
	wallets.DELETE("/:id", h.Wallet.DeleteWallet)

	// Transaction routes
	transactions := api.Group("/transactions")
	transactions.POST("", h.Transaction.CreateTransaction)
	transactions.GET("", h.Transaction.GetTransactions)
	transactions.GET("/:id", h.Transaction.GetTransaction)
	transactions.PUT("/:id", h.Transaction.UpdateTransaction)
	transactions.DELETE("/:id", h.Transaction.DeleteTransaction)

	// Budget routes
	budgets := api.Group("/budgets")
	budgets.POST("", h.Budget.CreateBudget)
	budgets.GET("", h.Budget.GetBudgets)
	budgets.GET("/:id", h.Budget.GetBudget)
	budgets.DELETE("/:id", h.Budget.DeleteBudget)

	// Backup routes
	backups := api.Group("/backups")
	backups.POST("", h.Backup.Export)
	backups.GET("", h.Backup.List)
	backups.GET("/download", h.Backup.Download)
	backups.POST("/restore", h.Backup.Restore)

	if h.Report != nil {
		reports := api.Group("/reports")
		reports.GET("/summary", h.Report.GetSummary)
		reports.GET("/by-category", h.Report.GetByCategory)
		reports.GET("/by-wallet", h.Report.GetByWallet)
	}
}
