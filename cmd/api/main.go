package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docstore/internal/config"
	handlers "docstore/internal/http/handler"
	"docstore/internal/http/middleware"
	"docstore/internal/otel"
	"docstore/internal/repository/jsonfile"
	"docstore/internal/service"
	"docstore/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	// Initialize tracing; degrades to a noop provider when the exporter is unreachable
	shutdownTracing, err := otel.Init(context.Background(), time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize the blob store backend
	var blobStore storage.Storage
	switch cfg.Blob.Backend {
	case "fs":
		blobStore, err = storage.NewFS(cfg.Blob)
	case "s3":
		blobStore, err = storage.NewMinIO(cfg.MinIO)
	default:
		log.Fatalf("unknown blob backend: %q", cfg.Blob.Backend)
	}
	if err != nil {
		log.Fatalf("failed to initialize blob storage: %v", err)
	}

	// Initialize the metadata store (single JSON document, created if missing)
	docRepo, err := jsonfile.NewDocumentJSONFile(cfg.MetadataFile)
	if err != nil {
		log.Fatalf("failed to initialize metadata store: %v", err)
	}

	limits := service.LimitsFromConfig(cfg.Upload)
	docSvc := service.NewDocumentService(blobStore, docRepo, limits)

	// The whole multipart body must fit under the batch ceiling
	bodyLimit := int(limits.MaxFileSize)*limits.MaxFilesPerBatch + 1024*1024

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    bodyLimit,
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	reg := prometheus.NewRegistry()
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, docRepo, docSvc, limits)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
