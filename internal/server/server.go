package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/aiclient"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/auth"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/catalog"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/config"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/gate"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/purchase"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/room"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/wallet"
)

type Deps struct {
	Config    *config.Config
	Catalog   catalog.Service
	Wallets   wallet.Manager
	Purchases purchase.Processor
	AI        aiclient.Upstream
	Rooms     room.Service
	Checks    []Check
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(d Deps) *Server {
	cfg := d.Config

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)
	router.Use(limiter.Middleware())

	router.GET("/health", Health)
	router.GET("/status", Status(d.Checks...))
	router.GET("/metrics", Metrics())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	catalogHandler := catalog.NewHandler(d.Catalog)
	walletHandler := wallet.NewHandler(d.Wallets)
	purchaseHandler := purchase.NewHandler(d.Purchases)
	aiHandler := aiclient.NewHandler(d.AI)
	roomHandler := room.NewHandler(d.Rooms)
	charge := gate.New(d.Wallets)

	v1 := router.Group("/api/v1")
	v1.GET("/plans", catalogHandler.ListPlans)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	protected := v1.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/wallet", walletHandler.GetWallet)
		protected.POST("/wallet/deduct", walletHandler.Deduct)
		protected.POST("/wallet/purchase", purchaseHandler.Purchase)
		protected.GET("/wallet/purchases", purchaseHandler.ListPurchases)
		protected.GET("/transactions", walletHandler.ListTransactions)

		protected.POST("/interview/create", aiHandler.ValidateInterview, charge.Require(catalog.ServiceTextInterview), aiHandler.CreateInterview)
		protected.POST("/voice-interview/create", aiHandler.ValidateVoiceInterview, charge.Require(catalog.ServiceVoiceInterview), aiHandler.CreateVoiceInterview)
		protected.POST("/rag", aiHandler.ValidateRAG, charge.Require(catalog.ServiceAIChat), aiHandler.Query)

		protected.GET("/interview/:session_id/question", aiHandler.InterviewQuestion)
		protected.POST("/interview/:session_id/answer", aiHandler.SubmitAnswer)
		protected.GET("/interview/:session_id/analysis", aiHandler.InterviewAnalysis)
		protected.GET("/interview/:session_id/status", aiHandler.InterviewStatus)

		protected.POST("/voice-interview/transcribe", aiHandler.Transcribe)
		protected.POST("/voice-interview/start", aiHandler.StartVoiceInterview)
		protected.POST("/voice-interview/process", aiHandler.ProcessVoiceMessage)
		protected.GET("/voice-interview/:session_id/state", aiHandler.VoiceState)
		protected.GET("/voice-interview/:session_id/status", aiHandler.VoiceStatus)
		protected.GET("/voice-interview/:session_id/analysis", aiHandler.VoiceAnalysis)

		protected.POST("/room/create", charge.Require(catalog.ServiceGroupPractice), roomHandler.Create)
		protected.POST("/room/join", roomHandler.ValidateJoin, charge.Require(catalog.ServiceGroupPractice), roomHandler.Join)
		protected.POST("/room/leave", roomHandler.Leave)
		protected.GET("/room/:roomID", roomHandler.Get)
	}

	admin := v1.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleService))
	{
		admin.GET("/wallets/:userID/reconcile", walletHandler.Reconcile)
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
