package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/auth"
	"github.com/nftlender/backend/internal/config"
	"github.com/nftlender/backend/internal/http/handlers"
	"github.com/nftlender/backend/internal/http/middleware"
	"github.com/nftlender/backend/internal/version"
	"github.com/nftlender/backend/internal/ws"
)

type Dependencies struct {
	ReadyChecks      map[string]handlers.Pinger
	SessionHandler   *handlers.SessionHandler
	LoanHandler      *handlers.LoanHandler
	PiggyBankHandler *handlers.PiggyBankHandler
	AncillaryHandler *handlers.AncillaryHandler
	ViewHandler      *handlers.ViewHandler
	WSHandler        *ws.Handler
	Sessions         middleware.SessionSource
	JWTManager       *auth.JWTManager
	MetricsHandler   http.Handler
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		logger.Info("request", "method", c.Request.Method, "path", c.Request.URL.Path)
		c.Next()
	})
	r.Use(middleware.RequestBodyLimit(cfg.MaxBodyBytes))

	health := handlers.NewHealthHandler(deps.ReadyChecks)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, cfg.ChainMode, cfg.LoanContractAddress)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	if deps.AncillaryHandler != nil {
		r.POST("/send-transaction", deps.AncillaryHandler.SendTransaction)
		r.POST("/generate-image", deps.AncillaryHandler.GenerateImage)
		r.GET("/transactions", deps.AncillaryHandler.RecentTransactions)
		r.GET("/v1/news", deps.AncillaryHandler.LatestNews)
		r.GET("/v1/history/:address", deps.AncillaryHandler.AddressHistory)
	}

	if deps.SessionHandler != nil && deps.JWTManager != nil && deps.Sessions != nil {
		requireSession := middleware.RequireSession(deps.JWTManager, deps.Sessions)

		sessionGroup := r.Group("/v1/session")
		sessionGroup.POST("/connect", deps.SessionHandler.Connect)
		sessionGroup.GET("", deps.SessionHandler.Get)
		sessionGroup.POST("/logout", requireSession, deps.SessionHandler.Logout)

		if deps.WSHandler != nil {
			r.GET("/ws", requireSession, deps.WSHandler.HandleWebSocket)
		}

		if deps.ViewHandler != nil {
			r.GET("/v1/view", middleware.OptionalSession(deps.JWTManager, deps.Sessions), deps.ViewHandler.GetView)
			r.POST("/v1/view/:panel", requireSession, deps.ViewHandler.SelectPanel)
		}

		if deps.LoanHandler != nil {
			loanGroup := r.Group("/v1/loans")
			loanGroup.Use(requireSession)
			loanGroup.GET("", deps.LoanHandler.ListOpenLoans)
			loanGroup.POST("", deps.LoanHandler.CreateLoanRequest)
			loanGroup.POST("/refresh", deps.LoanHandler.ListOpenLoans)
			loanGroup.GET("/:loanId", deps.LoanHandler.GetLoan)
			loanGroup.GET("/:loanId/events", deps.LoanHandler.GetLoanEvents)
			loanGroup.POST("/:loanId/fund", deps.LoanHandler.FundLoan)
			loanGroup.POST("/:loanId/cancel", deps.LoanHandler.CancelLoanRequest)
			loanGroup.POST("/:loanId/repay", deps.LoanHandler.RepayLoan)
		}

		if deps.PiggyBankHandler != nil {
			piggyGroup := r.Group("/v1/piggybank")
			piggyGroup.Use(requireSession)
			piggyGroup.GET("", deps.PiggyBankHandler.Balance)
			piggyGroup.POST("/deposit", deps.PiggyBankHandler.Deposit)
			piggyGroup.POST("/break", deps.PiggyBankHandler.Break)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
