package config

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/orderflow/fulfillment-system/catalog-service/application"
	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/catalog-service/handlers"
	"github.com/orderflow/fulfillment-system/catalog-service/infrastructure"
	"github.com/orderflow/fulfillment-system/shared/events"
	sharedinfra "github.com/orderflow/fulfillment-system/shared/infrastructure"
	"github.com/orderflow/fulfillment-system/shared/telemetry"
	"go.uber.org/zap"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	ProductRepository     *infrastructure.PostgresProductRepository
	ReservationRepository *infrastructure.PostgresReservationRepository
	InventoryWriter       *infrastructure.PostgresInventoryWriter
	EventStore            *sharedinfra.PostgresEventStore

	// Locks
	LockManager *domain.ProductLockManager

	// Use Cases
	ReserveStock       *application.ReserveStock
	ConfirmReservation *application.ConfirmReservation
	ReleaseReservation *application.ReleaseReservation
	CreateProduct      *application.CreateProduct
	GetProduct         *application.GetProduct
	AdjustStock        *application.AdjustStock

	// HTTP Handlers
	CatalogHandlers *handlers.CatalogHandlers

	// Event Handlers
	CatalogEventHandlers *handlers.CatalogEventHandlers

	// Infrastructure
	SNSPublisher    *sharedinfra.SNSPublisherAdapter
	EventPublisher  events.Publisher
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.CatalogServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	snsPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.SNSPublisher = snsPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Every published event is also appended to the local event stream
	// before it leaves the service
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)
	deps.EventPublisher = sharedinfra.NewAuditPublisher(deps.EventStore, snsPublisher, logger)

	// Initialize repositories and locks
	deps.ProductRepository = infrastructure.NewPostgresProductRepository(db)
	deps.ReservationRepository = infrastructure.NewPostgresReservationRepository(db)
	deps.InventoryWriter = infrastructure.NewPostgresInventoryWriter(db, deps.ProductRepository, deps.ReservationRepository)
	deps.LockManager = domain.NewProductLockManager()

	// Initialize use cases
	deps.ReserveStock = application.NewReserveStock(deps.ProductRepository, deps.ReservationRepository, deps.InventoryWriter, deps.LockManager, deps.EventPublisher, logger)
	deps.ConfirmReservation = application.NewConfirmReservation(deps.ReservationRepository, deps.EventPublisher, logger)
	deps.ReleaseReservation = application.NewReleaseReservation(deps.ProductRepository, deps.ReservationRepository, deps.InventoryWriter, deps.LockManager, deps.EventPublisher, logger)
	deps.CreateProduct = application.NewCreateProduct(deps.ProductRepository, deps.EventPublisher, logger)
	deps.GetProduct = application.NewGetProduct(deps.ProductRepository)
	deps.AdjustStock = application.NewAdjustStock(deps.ProductRepository, deps.LockManager, deps.EventPublisher, logger)

	// Initialize handlers
	deps.CatalogHandlers = handlers.NewCatalogHandlers(
		deps.ReserveStock,
		deps.ConfirmReservation,
		deps.ReleaseReservation,
		deps.CreateProduct,
		deps.GetProduct,
		deps.AdjustStock,
		logger,
	)
	deps.CatalogEventHandlers = handlers.NewCatalogEventHandlers(deps.ReleaseReservation, logger)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.SNSPublisher != nil {
		if err := d.SNSPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
