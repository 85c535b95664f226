package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/auth"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/events"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/handler"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/report"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	"github.com/farmatrack/farmatrack-backend/pkg/config"
	"github.com/farmatrack/farmatrack-backend/pkg/database"
	"github.com/farmatrack/farmatrack-backend/pkg/httputil"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
	"github.com/farmatrack/farmatrack-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Apply schema on startup; every statement is idempotent
	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewPharmacyEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	thresholds := domain.Thresholds{
		LowStock:        cfg.Inventory.LowStockThreshold,
		AlertWindowDays: cfg.Inventory.ExpiryAlertWindowDays,
	}

	// Initialize repositories
	medicationRepo := repository.NewMedicationRepository(db)
	lotRepo := repository.NewLotRepository(db)
	dispensationRepo := repository.NewDispensationRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	reportRepo := repository.NewReportRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize services
	jwtManager := auth.NewManager(&cfg.JWT)
	catalogService := service.NewCatalogService(medicationRepo, lotRepo, thresholds, log)
	ledgerService := service.NewLedgerService(lotRepo, medicationRepo, publisher, thresholds, log)
	dispensationService := service.NewDispensationService(db, lotRepo, dispensationRepo, publisher, thresholds, log)
	analyticsService := service.NewAnalyticsService(analyticsRepo, thresholds, log)
	reportService := service.NewReportService(reportRepo, report.NewRenderer(thresholds), thresholds, log)
	authService := service.NewAuthService(userRepo, jwtManager, log)

	// Initialize handlers
	medicationHandler := handler.NewMedicationHandler(catalogService, log)
	lotHandler := handler.NewLotHandler(ledgerService, log)
	dispensationHandler := handler.NewDispensationHandler(dispensationService, log)
	dashboardHandler := handler.NewDashboardHandler(analyticsService, log)
	reportHandler := handler.NewReportHandler(reportService, log)
	authHandler := handler.NewAuthHandler(authService, log)

	// Create router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Public auth routes
	r.Post("/api/v1/auth/login", authHandler.Login)

	// API routes, token required
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtManager))

		r.Route("/medications", func(r chi.Router) {
			r.Get("/", medicationHandler.List)
			r.Post("/", medicationHandler.Create)
			r.Get("/{id}", medicationHandler.Get)
			r.Patch("/{id}", medicationHandler.Update)
			r.Delete("/{id}", medicationHandler.Delete)
			r.Get("/{id}/lots", lotHandler.ListByMedication)
		})

		r.Route("/lots", func(r chi.Router) {
			r.Get("/", lotHandler.List)
			r.Post("/", lotHandler.Create)
			r.Get("/{id}", lotHandler.Get)
			r.Patch("/{id}", lotHandler.Update)
			r.Get("/by-number/{lotNumber}", lotHandler.GetByNumber)
		})

		r.Route("/dispensations", func(r chi.Router) {
			r.Get("/", dispensationHandler.List)
			r.Post("/", dispensationHandler.Register)
			r.Get("/{id}", dispensationHandler.Get)
		})

		r.Get("/dashboard", dashboardHandler.Get)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/inventory", reportHandler.Get)
			r.Get("/inventory/pdf", reportHandler.GetPDF)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
