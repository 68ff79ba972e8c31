package config

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/orderflow/fulfillment-system/order-service/application"
	"github.com/orderflow/fulfillment-system/order-service/handlers"
	"github.com/orderflow/fulfillment-system/order-service/infrastructure"
	"github.com/orderflow/fulfillment-system/shared/events"
	sharedinfra "github.com/orderflow/fulfillment-system/shared/infrastructure"
	"github.com/orderflow/fulfillment-system/shared/telemetry"
	"go.uber.org/zap"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	OrderRepository *infrastructure.PostgresOrderRepository
	EventStore      *sharedinfra.PostgresEventStore

	// Inventory client
	InventoryClient *infrastructure.HTTPInventoryClient

	// Use Cases
	CreateOrder       *application.CreateOrder
	GetOrder          *application.GetOrder
	UpdateOrderStatus *application.UpdateOrderStatus
	CancelOrder       *application.CancelOrder

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Infrastructure
	SNSPublisher   *sharedinfra.SNSPublisherAdapter
	EventPublisher events.Publisher

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.OrderServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
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

	// Every published event is also appended to the local event stream
	// before it leaves the service
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)
	deps.EventPublisher = sharedinfra.NewAuditPublisher(deps.EventStore, snsPublisher, logger)

	// Initialize repositories and clients
	deps.OrderRepository = infrastructure.NewPostgresOrderRepository(db)
	deps.InventoryClient = infrastructure.NewHTTPInventoryClient(config.Catalog.BaseURL, config.Catalog.RequestTimeout, logger)

	// Initialize use cases
	deps.CreateOrder = application.NewCreateOrder(deps.OrderRepository, deps.InventoryClient, deps.EventPublisher, logger)
	deps.GetOrder = application.NewGetOrder(deps.OrderRepository)
	deps.UpdateOrderStatus = application.NewUpdateOrderStatus(deps.OrderRepository, deps.EventPublisher, logger)
	deps.CancelOrder = application.NewCancelOrder(deps.OrderRepository, deps.EventPublisher, logger)

	// Initialize handlers
	deps.OrderHandlers = handlers.NewOrderHandlers(deps.CreateOrder, deps.GetOrder, deps.UpdateOrderStatus, deps.CancelOrder, logger)

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

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
