package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artisanshop/api/internal/notify"
	"github.com/artisanshop/api/internal/platform/config"
	"github.com/artisanshop/api/internal/repositories"
	"github.com/artisanshop/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders  services.OrderService
	Reports services.ReportService
	System  services.SystemService
}

// Dependencies collects externally constructed collaborators that the
// container cannot build from the registry alone.
type Dependencies struct {
	Gateway  services.PaymentGateway
	Invoices notify.Dispatcher
	Effects  *services.EffectRunner
	Build    services.BuildInfo
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Dependencies) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(ctx context.Context, reg repositories.Registry, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = time.Now().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	ordersRepo := reg.Orders()
	if ordersRepo != nil && deps.Gateway != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:          ordersRepo,
			Products:        reg.Products(),
			Users:           reg.Users(),
			Counters:        reg.Counters(),
			Gateway:         deps.Gateway,
			Invoices:        deps.Invoices,
			Effects:         deps.Effects,
			UnitOfWork:      reg,
			DefaultCurrency: cfg.PSP.DefaultCurrency,
			GatewayTimeout:  cfg.PSP.GatewayTimeout,
			Clock:           time.Now,
			Logger:          deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if ordersRepo != nil {
		reportSvc, err := services.NewReportService(services.ReportServiceDeps{
			Orders: ordersRepo,
			Clock:  time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build report service: %w", err)
		}
		svc.Reports = reportSvc
	}

	return svc, nil
}
