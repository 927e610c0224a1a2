package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/driftlab/market-backend/internal/config"
	"github.com/driftlab/market-backend/internal/handler"
	"github.com/driftlab/market-backend/internal/mail"
	appmw "github.com/driftlab/market-backend/internal/middleware"
	"github.com/driftlab/market-backend/internal/payment"
	"github.com/driftlab/market-backend/internal/repository"
	"github.com/driftlab/market-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type Server struct {
	e                *echo.Echo
	userRepo         repository.UserRepository
	listingRepo      repository.ListingRepository
	purchaseRepo     repository.PurchaseRepository
	notificationRepo repository.NotificationRepository
	sha              string
	build            string
}

func New(db *gorm.DB, cfg *config.Config, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			if strings.HasSuffix(u.Hostname(), "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	mailer := mail.NewResendMailer(cfg.ResendAPIKey, cfg.FromEmail)
	notifySvc := service.NewNotificationService(notificationRepo, mailer)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey)

	limiter := service.NewLimiterService(purchaseRepo, listingRepo)
	listingSvc := service.NewListingService(listingRepo, userRepo, limiter)
	purchaseSvc := service.NewPurchaseService(purchaseRepo, listingRepo, userRepo, limiter, notifySvc)
	disputeSvc := service.NewDisputeService(purchaseRepo, userRepo, notifySvc, cfg.OpsEmail)
	settlementSvc := service.NewSettlementService(purchaseRepo, userRepo, gateway, notifySvc,
		time.Duration(cfg.StaleThresholdHours)*time.Hour)

	listingHandler := handler.NewListingHandler(listingSvc)
	purchaseHandler := handler.NewPurchaseHandler(purchaseSvc)
	disputeHandler := handler.NewDisputeHandler(disputeSvc)
	notificationHandler := handler.NewNotificationHandler(notifySvc)
	jobsHandler := handler.NewJobsHandler(settlementSvc)
	adminHandler := handler.NewAdminHandler(settlementSvc)

	authMw, err := appmw.NewAuthMiddleware(context.Background())
	if err != nil {
		e.Logger.Fatalf("failed to init firebase auth: %v", err)
	}
	var userHandler *handler.UserHandler
	if authMw != nil && authMw.Client() != nil {
		userHandler = handler.NewUserHandler(userRepo, authMw.Client())
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api")
	api.GET("/listings", listingHandler.List)
	api.GET("/listings/:id", listingHandler.Get)
	api.POST("/webhooks/payment", purchaseHandler.CaptureWebhook, appmw.RequireJobToken(cfg.JobToken))
	if authMw != nil {
		api.POST("/listings", listingHandler.Create, authMw.RequireAuth)
		api.DELETE("/listings/:id", listingHandler.Remove, authMw.RequireAuth)
		api.GET("/me/listings", listingHandler.ListMine, authMw.RequireAuth)
		api.POST("/listings/:id/checkout", purchaseHandler.Checkout, authMw.OptionalAuth)
		api.GET("/purchases/:id", purchaseHandler.Get, authMw.RequireAuth)
		api.POST("/purchases/:id/dispute", disputeHandler.Open, authMw.RequireAuth)
		api.GET("/me/purchases", purchaseHandler.ListMine, authMw.RequireAuth)
		api.GET("/me/sales", purchaseHandler.ListSales, authMw.RequireAuth)
		api.GET("/me/notifications", notificationHandler.List, authMw.RequireAuth)
		api.POST("/me/notifications/read", notificationHandler.MarkAllRead, authMw.RequireAuth)
		api.POST("/admin/purchases/:id/resolve", adminHandler.Resolve,
			authMw.RequireAuth, appmw.RequireAdmin(cfg.AdminUIDs))
		if userHandler != nil {
			api.POST("/me/sync", userHandler.Sync, authMw.RequireAuth)
			api.GET("/me", userHandler.Me, authMw.RequireAuth)
		}
	}

	jobs := e.Group("/internal/jobs", appmw.RequireJobToken(cfg.JobToken))
	jobs.POST("/release-escrow", jobsHandler.ReleaseEscrow)
	jobs.POST("/reap-stale", jobsHandler.ReapStale)

	return &Server{
		e:                e,
		userRepo:         userRepo,
		listingRepo:      listingRepo,
		purchaseRepo:     purchaseRepo,
		notificationRepo: notificationRepo,
		sha:              sha,
		build:            buildTime,
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// SetDB swaps the late-arriving database connection into every repository.
// The server starts answering /healthz before the pool is ready.
func (s *Server) SetDB(db *gorm.DB) {
	if s.userRepo != nil {
		s.userRepo.SetDB(db)
	}
	if s.listingRepo != nil {
		s.listingRepo.SetDB(db)
	}
	if s.purchaseRepo != nil {
		s.purchaseRepo.SetDB(db)
	}
	if s.notificationRepo != nil {
		s.notificationRepo.SetDB(db)
	}
}
