package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/foxxcyber/equiptrack/internal/config"
	"github.com/foxxcyber/equiptrack/internal/database"
	"github.com/foxxcyber/equiptrack/internal/handlers"
	"github.com/foxxcyber/equiptrack/internal/metrics"
	"github.com/foxxcyber/equiptrack/internal/middleware"
	"github.com/foxxcyber/equiptrack/internal/services"
)

const cleanupInterval = 24 * time.Hour

func main() {
	// Load .env file if it exists
	godotenv.Load()

	cfg := config.Load()
	log := config.NewLogger(cfg)

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	if err := database.EnsureAdminUser(ctx, db, cfg); err != nil {
		log.WithError(err).Warn("Could not ensure admin user")
	}

	metrics.Register(db)

	// Services
	extractor := services.NewDocumentExtractor()
	matcher := services.NewModelMatcher(db, log)

	reconciler := services.NewMACReconciler(log)
	reconciler.SlowThreshold = cfg.ReconcileSlowThreshold

	ocrService, err := services.NewOCRService(cfg.OCRLanguages, log)
	if err != nil {
		log.WithError(err).Warn("OCR unavailable, document scanning disabled")
		ocrService = nil
	} else {
		defer ocrService.Close()
	}

	storageService := initStorage(ctx, cfg, log)
	if storageService != nil {
		go runDocumentCleanup(ctx, db, storageService, log)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    int(cfg.MaxUploadBytes()) + 1024*1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(metrics.Middleware())

	h := handlers.New(db, cfg, log)
	docs := handlers.NewDocumentHandler(db, cfg, log, extractor, ocrService, storageService, matcher)
	recon := handlers.NewReconciliationHandler(db, log, reconciler)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")
	authRequired := middleware.AuthRequired(cfg)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Get("/me", authRequired, h.GetCurrentUser)
	auth.Post("/refresh", authRequired, h.RefreshToken)

	// Document routes
	documents := api.Group("/documents", authRequired)
	documents.Post("/extract", docs.ExtractDocument)
	documents.Post("/scan", docs.ScanDocument)
	documents.Post("/", docs.SaveDocument)
	documents.Get("/", docs.ListDocuments)
	documents.Get("/:id", docs.GetDocument)
	documents.Get("/:id/export", docs.ExportDocument)
	documents.Get("/:id/image", docs.GetDocumentImage)
	documents.Delete("/:id", docs.DeleteDocument)

	// Reconciliation routes
	reconciliations := api.Group("/reconciliations", authRequired)
	reconciliations.Post("/", recon.Reconcile)
	reconciliations.Get("/", recon.ListReconciliations)
	reconciliations.Get("/:id", recon.GetReconciliation)
	reconciliations.Get("/:id/export", recon.ExportReconciliation)
	reconciliations.Delete("/:id", recon.DeleteReconciliation)

	// Catalog routes (public read)
	catalog := api.Group("/equipment-models")
	catalog.Get("/", h.ListEquipmentModels)
	catalog.Get("/search", h.SearchEquipmentModels)
	catalog.Get("/:id", h.GetEquipmentModel)

	// Admin routes
	admin := api.Group("/admin", authRequired, middleware.AdminRequired())
	admin.Post("/equipment-models", h.CreateEquipmentModel)
	admin.Put("/equipment-models/:id", h.UpdateEquipmentModel)
	admin.Delete("/equipment-models/:id", h.DeleteEquipmentModel)

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("Server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Error("Server stopped")
	}
}

// initStorage returns nil when storage is disabled or unreachable; scanning still works without it
func initStorage(ctx context.Context, cfg *config.Config, log *logrus.Logger) *services.StorageService {
	if !cfg.StorageConfigured() {
		log.Info("S3 storage not configured, scanned images will not be kept")
		return nil
	}

	storage, err := services.NewStorageService(services.StorageOptions{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to initialize storage service")
		return nil
	}

	if err := storage.EnsureBucket(ctx); err != nil {
		log.WithError(err).WithField("bucket", cfg.S3Bucket).Warn("Failed to ensure S3 bucket exists")
	}

	log.WithField("bucket", storage.GetBucketName()).Info("Document storage initialized")
	return storage
}

// runDocumentCleanup removes expired documents at startup and then once per interval
func runDocumentCleanup(ctx context.Context, db *database.DB, storage *services.StorageService, log *logrus.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		keys, err := db.CleanupExpiredDocuments(ctx)
		if err != nil {
			log.WithError(err).Warn("Failed to cleanup expired documents")
		} else if len(keys) > 0 {
			log.WithField("count", len(keys)).Info("Cleaned up expired documents")
			if err := storage.DeleteMultiple(ctx, keys); err != nil {
				log.WithError(err).Warn("Failed to delete some document images")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
