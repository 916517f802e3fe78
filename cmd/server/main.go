package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"gradlink-backend/pkg/alumni"
	"gradlink-backend/pkg/config"
	"gradlink-backend/pkg/handlers"
	"gradlink-backend/pkg/logging"
	"gradlink-backend/pkg/marketplace"
	custommw "gradlink-backend/pkg/middleware"
	"gradlink-backend/pkg/notify"
	"gradlink-backend/pkg/storage"
	"gradlink-backend/pkg/tenant"
	"gradlink-backend/pkg/utils"
)

func main() {
	cfg := config.GetCached()

	logger, err := logging.New(cfg.Environment, cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	store, err := storage.NewRecordStore(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}

	registry, err := tenant.NewRegistry(store, tenant.SeedConfig{
		ID:                     cfg.DefaultTenantID,
		Name:                   cfg.DefaultTenantName,
		InstitutionDomain:      cfg.DefaultTenantDomain,
		SharetribeClientID:     cfg.DefaultSharetribeID,
		SharetribeClientSecret: cfg.DefaultSharetribeSecret,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build tenant registry", zap.Error(err))
	}

	transport := notify.NewSendGridTransport(cfg.SendGridAPIKey)
	var gatewayTransport notify.Transport
	if transport != nil {
		gatewayTransport = transport
	}

	gateway, err := notify.NewGateway(notify.GatewayConfig{
		Enabled:       cfg.EmailEnabled,
		FromName:      cfg.EmailFromName,
		From:          cfg.EmailFrom,
		RatePerMinute: cfg.EmailRatePerMinute,
		MaxRetries:    cfg.EmailMaxRetries,
		Backoff: notify.BackoffConfig{
			Base: cfg.EmailRetryBaseDelay,
			Max:  cfg.EmailRetryMaxDelay,
		},
		LogMaxEntries: cfg.EmailLogMaxEntries,
	}, gatewayTransport, store, logger)
	if err != nil {
		logger.Fatal("failed to build notification gateway", zap.Error(err))
	}

	templates := notify.NewTemplateRegistry()
	dispatcher := notify.NewDispatcher(gateway, templates, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	requests, err := tenant.NewRequests(store, registry, dispatcher, logger)
	if err != nil {
		logger.Fatal("failed to build tenant request workflow", zap.Error(err))
	}

	uploadsDir := filepath.Join(cfg.DataDir, "uploads")
	tenantService := tenant.NewService(registry, uploadsDir, logger)

	alumniService, err := alumni.NewService(store, dispatcher, logger)
	if err != nil {
		logger.Fatal("failed to build alumni service", zap.Error(err))
	}

	mpClient := marketplace.NewClient(cfg.SharetribeBaseURL, logger)
	jwtService := utils.NewJWTService(cfg.JWTSecret)

	router := chi.NewRouter()
	setupMiddleware(router, cfg, logger)
	setupRoutes(router, cfg, logger, routeDeps{
		registry:      registry,
		requests:      requests,
		tenantService: tenantService,
		alumniService: alumniService,
		gateway:       gateway,
		templates:     templates,
		mpClient:      mpClient,
		jwtService:    jwtService,
		uploadsDir:    uploadsDir,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("base_domain", cfg.BaseDomain))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, logger *zap.Logger) {
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(custommw.RestoreForwardedHost)
	router.Use(custommw.RequestLogger(logger))
	router.Use(custommw.Recoverer(logger))
	router.Use(custommw.CORS(cfg.AllowedOrigins))
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(chimiddleware.Compress(5))
	router.Use(custommw.ContentTypeJSON)
	router.Use(custommw.MaxBodySize(8 << 20))

	if cfg.IsDevelopment() {
		router.Use(chimiddleware.Heartbeat("/ping"))
	}
}

type routeDeps struct {
	registry      *tenant.Registry
	requests      *tenant.Requests
	tenantService *tenant.Service
	alumniService *alumni.Service
	gateway       *notify.Gateway
	templates     *notify.TemplateRegistry
	mpClient      *marketplace.Client
	jwtService    *utils.JWTService
	uploadsDir    string
}

func setupRoutes(router *chi.Mux, cfg *config.Config, logger *zap.Logger, deps routeDeps) {
	publicHandler := handlers.NewPublicHandler(cfg, deps.registry, logger)
	adminTenants := handlers.NewAdminTenantsHandler(cfg, deps.registry, deps.mpClient, logger)
	tenantRequests := handlers.NewTenantRequestsHandler(cfg, deps.requests, logger)
	education := handlers.NewEducationHandler(cfg, deps.registry, deps.tenantService, deps.mpClient, logger)
	alumniHandler := handlers.NewAlumniHandler(cfg, deps.alumniService, deps.registry, deps.mpClient, logger)
	emailAdmin := handlers.NewEmailAdminHandler(cfg, deps.gateway, deps.templates, logger)

	auth := custommw.Authenticate(deps.jwtService)
	resolveTenant := custommw.ResolveTenant(deps.registry, custommw.ResolverConfig{
		BaseDomain:      cfg.BaseDomain,
		OverrideEnabled: cfg.TenantOverrideEnabled,
	}, logger)

	router.Get("/healthz", publicHandler.Health)

	// Stored logos and other uploaded assets.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.uploadsDir)))
	router.Get("/uploads/*", fileServer.ServeHTTP)

	router.Route("/api", func(r chi.Router) {
		// Public, hostname-independent.
		r.Get("/tenants/resolve", publicHandler.Resolve)

		// Public, scoped to the marketplace the hostname resolves to.
		r.Group(func(r chi.Router) {
			r.Use(resolveTenant)
			r.Get("/tenant", publicHandler.Current)
		})

		// System administration.
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth)
			r.Use(custommw.RequireSystemAdmin)

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", adminTenants.List)
				r.Post("/", adminTenants.Create)
				r.Get("/{id}", adminTenants.Get)
				r.Put("/{id}", adminTenants.Update)
				r.Delete("/{id}", adminTenants.Delete)
			})

			r.Route("/tenant-requests", func(r chi.Router) {
				r.Get("/", tenantRequests.List)
				r.Get("/{id}", tenantRequests.Get)
				r.Post("/{id}/approve", tenantRequests.Approve)
				r.Post("/{id}/reject", tenantRequests.Reject)
			})

			r.Route("/email", func(r chi.Router) {
				r.Get("/status", emailAdmin.Status)
				r.Post("/verify", emailAdmin.Verify)
				r.Get("/preview", emailAdmin.Preview)
				r.Get("/preview/{templateName}", emailAdmin.Preview)
				r.Post("/test", emailAdmin.Test)
				r.Get("/log", emailAdmin.Log)
			})
		})

		r.Route("/education", func(r chi.Router) {
			// Public onboarding and invitation redemption.
			r.Post("/tenant-request", tenantRequests.Submit)
			r.Get("/alumni/verify-invitation/{code}", alumniHandler.Verify)
			r.Post("/alumni/accept-invitation", alumniHandler.Accept)

			// Institution administration.
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Use(custommw.RequireInstitutionAdmin)

				r.Route("/tenant", func(r chi.Router) {
					r.Get("/", education.GetMarketplace)
					r.Put("/branding", education.UpdateBranding)
					r.Put("/settings", education.UpdateSettings)
					r.Post("/activate", education.Activate)
					r.Post("/logo", education.UploadLogo)
					r.Post("/verify-credentials", education.VerifyCredentials)
				})

				r.Route("/marketplace", func(r chi.Router) {
					r.Get("/users", education.Users)
					r.Get("/listings", education.Listings)
					r.Get("/transactions", education.Transactions)
				})

				r.Get("/alumni", alumniHandler.List)
				r.Post("/alumni/invite", alumniHandler.Invite)
				r.Put("/alumni/{id}/resend", alumniHandler.Resend)
				r.Delete("/alumni/{id}", alumniHandler.Delete)
			})
		})
	})
}
