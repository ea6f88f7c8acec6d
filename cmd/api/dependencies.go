package api

import (
	"fmt"
	"log/slog"

	"github.com/freightwatch/threepl-audit/internal/domain/audit"
	classifyhandler "github.com/freightwatch/threepl-audit/internal/domain/classify/handler"
	classifyrepo "github.com/freightwatch/threepl-audit/internal/domain/classify/repository"
	classifyservice "github.com/freightwatch/threepl-audit/internal/domain/classify/service"
	invoicehandler "github.com/freightwatch/threepl-audit/internal/domain/invoice/handler"
	invoicerepo "github.com/freightwatch/threepl-audit/internal/domain/invoice/repository"
	invoiceservice "github.com/freightwatch/threepl-audit/internal/domain/invoice/service"

	"github.com/freightwatch/threepl-audit/pkg/config"
	"github.com/freightwatch/threepl-audit/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	InvoiceRepo invoicerepo.InvoiceRepository
	RulesRepo   classifyrepo.RulesRepository

	// Services
	IngestService   *invoiceservice.IngestService
	ClassifyService *classifyservice.Service
	AuditService    *audit.Service

	// Handlers
	InvoiceHandler *invoicehandler.InvoiceHandler
	RulesHandler   *classifyhandler.RulesHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: d.Config.Database.MaxConnLifetime,
		MaxConnIdleTime: d.Config.Database.MaxConnIdleTime,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.InvoiceRepo = invoicerepo.NewPostgresInvoiceRepository(d.DB.Pool)
	d.RulesRepo = classifyrepo.NewPostgresRulesRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	d.IngestService = invoiceservice.NewIngestService(d.InvoiceRepo, d.Logger)
	d.ClassifyService = classifyservice.NewService(d.RulesRepo, d.InvoiceRepo, d.Logger)
	d.AuditService = audit.NewService(d.InvoiceRepo, d.Logger)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.InvoiceHandler = invoicehandler.NewInvoiceHandler(
		d.IngestService,
		d.ClassifyService,
		d.AuditService,
		d.InvoiceRepo,
		d.Logger,
		d.Config.Ingest.MaxUploadBytes,
	)
	d.RulesHandler = classifyhandler.NewRulesHandler(d.RulesRepo, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
