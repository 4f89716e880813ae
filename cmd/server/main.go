package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/audit"
	"github.com/finhub-labs/invoiceflow/internal/config"
	"github.com/finhub-labs/invoiceflow/internal/dedup"
	"github.com/finhub-labs/invoiceflow/internal/extraction"
	"github.com/finhub-labs/invoiceflow/internal/hours"
	httpapi "github.com/finhub-labs/invoiceflow/internal/interfaces/http"
	"github.com/finhub-labs/invoiceflow/internal/notify"
	"github.com/finhub-labs/invoiceflow/internal/ocr"
	"github.com/finhub-labs/invoiceflow/internal/orchestrator"
	"github.com/finhub-labs/invoiceflow/internal/pipeline"
	"github.com/finhub-labs/invoiceflow/internal/register"
	"github.com/finhub-labs/invoiceflow/internal/repository"
	"github.com/finhub-labs/invoiceflow/internal/storage"
	trisync "github.com/finhub-labs/invoiceflow/internal/sync"
	"github.com/finhub-labs/invoiceflow/pkg/database"
	"github.com/finhub-labs/invoiceflow/pkg/utils"
)

func main() {
	// Local development credentials; absent in deployed environments
	_ = gotenv.Load()

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice ingestion service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Create data directories
	for _, dir := range []string{
		cfg.Storage.BasePath,
		filepath.Dir(cfg.Database.Path),
		filepath.Dir(cfg.Register.Path),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create data directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Tri-store: authoritative record store, spreadsheet register mirror,
	// append-only audit files.
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	excelRegister := register.NewExcelRegister(cfg.Register.Path, cfg.Register.SheetName, logger)
	files := storage.NewLocalFileStore(cfg.Storage.BasePath, logger)
	auditStore := audit.NewStore(files, cfg.Storage.AuditFolder, logger)
	synchronizer := trisync.NewSynchronizer(invoiceRepo, excelRegister, auditStore, logger)

	// Document analysis: remote OCR when configured, local PDF text always
	// available as fallback.
	var remoteOCR ocr.Analyzer
	if cfg.OCR.Endpoint != "" {
		remoteOCR = ocr.NewClient(ocr.Config{
			Endpoint:     cfg.OCR.Endpoint,
			APIKey:       cfg.OCR.APIKey,
			Timeout:      cfg.OCR.Timeout,
			PollInterval: cfg.OCR.PollInterval,
		}, logger)
	} else {
		logger.Info("No OCR endpoint configured, running on local PDF text extraction only")
	}
	localText := ocr.NewLocalPDFText(logger)

	// AI orchestrator: dedicated endpoint when deployed, OpenAI-backed
	// otherwise. Both speak the same session-scoped contract.
	var (
		extractor orchestrator.Extractor
		validator hours.Validator
	)
	if cfg.Orchestrator.Endpoint != "" {
		client := orchestrator.NewClient(orchestrator.Config{
			Endpoint: cfg.Orchestrator.Endpoint,
			APIKey:   cfg.Orchestrator.APIKey,
			Timeout:  cfg.Orchestrator.Timeout,
		}, logger)
		extractor, validator = client, client
	} else {
		openAI := orchestrator.NewOpenAIOrchestrator(orchestrator.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Timeout:     cfg.OpenAI.Timeout,
		}, logger)
		extractor, validator = openAI, openAI
	}

	var notifier notify.Notifier
	if cfg.Lark.AppID != "" {
		notifier = notify.NewLarkNotifier(notify.LarkConfig{
			AppID:      cfg.Lark.AppID,
			AppSecret:  cfg.Lark.AppSecret,
			ChatID:     cfg.Lark.ChatID,
			APITimeout: cfg.Lark.APITimeout,
		}, logger)
	} else {
		logger.Info("Lark notifications disabled")
	}

	pipe := pipeline.New(pipeline.Options{
		Files:         files,
		RemoteOCR:     remoteOCR,
		LocalText:     localText,
		Extractor:     extractor,
		Reconciler:    extraction.NewReconciler(logger),
		Detector:      dedup.NewDetector(invoiceRepo, logger),
		HoursEngine:   hours.NewEngine(validator, cfg.Orchestrator.Timeout, logger),
		Reader:        invoiceRepo,
		Synchronizer:  synchronizer,
		Notifier:      notifier,
		InvoiceFolder: cfg.Storage.InvoiceFolder,
	}, logger)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, pipe, invoiceRepo, files, httpapi.NewZapLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
