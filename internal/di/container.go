package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/platform/config"
	"github.com/elite-furniture/api/internal/platform/observability"
	"github.com/elite-furniture/api/internal/repositories"
	"github.com/elite-furniture/api/internal/services"
)

// Services bundles the service-layer contracts the handlers rely on. Concrete
// implementations are assembled in NewContainer.
type Services struct {
	Catalog  services.CatalogService
	Cart     services.CartService
	Wishlist services.WishlistService
	Checkout services.CheckoutService
	Orders   services.OrderService
	Payments services.PaymentService
	Reviews  services.ReviewService
	Users    services.UserService
	System   services.SystemService
}

// Infrastructure carries the collaborators built outside the repository
// registry: the payment gateway manager, receipt storage, and the
// notification publisher. Fields left nil disable the surfaces that need
// them, which keeps test wiring small.
type Infrastructure struct {
	Gateway     services.GatewayManager
	Uploader    services.ReceiptUploader
	Signer      services.ReceiptSigner
	Publisher   services.NotificationPublisher
	Version     string
	Environment string
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependency graph. Production wiring
// provides a Firestore-backed registry; tests can pass in-memory fakes.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources held by the repository registry.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	pricing := pricingFromConfig(cfg.Pricing)
	logger := observability.EventLogger()

	usersSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:  reg.Users(),
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = usersSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:        reg.Products(),
		Categories:      reg.Categories(),
		Clock:           time.Now,
		DefaultCurrency: cfg.Pricing.Currency,
		Logger:          logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Pricing:  pricing,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	wishlistSvc, err := services.NewWishlistService(services.WishlistServiceDeps{
		Wishlists: reg.Wishlists(),
		Products:  reg.Products(),
		Clock:     time.Now,
		Logger:    logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wishlist service: %w", err)
	}
	svc.Wishlist = wishlistSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Counters:   reg.Counters(),
		UnitOfWork: reg,
		Pricing:    pricing,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	if infra.Gateway != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Attempts:   reg.CheckoutAttempts(),
			Cart:       svc.Cart,
			Orders:     svc.Orders,
			Gateway:    infra.Gateway,
			Pricing:    pricing,
			AttemptTTL: cfg.Checkout.AttemptTTL,
			Clock:      time.Now,
			Logger:     logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	if svc.Checkout != nil && infra.Uploader != nil && infra.Signer != nil {
		paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
			Attempts:         reg.PaymentAttempts(),
			CheckoutAttempts: reg.CheckoutAttempts(),
			Checkout:         svc.Checkout,
			Orders:           svc.Orders,
			Uploader:         infra.Uploader,
			Signer:           infra.Signer,
			Bucket:           cfg.Storage.ReceiptsBucket,
			DownloadTTL:      cfg.Storage.SignedURLTTL,
			Publisher:        infra.Publisher,
			Clock:            time.Now,
			Logger:           logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build payment service: %w", err)
		}
		svc.Payments = paymentSvc
	}

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:  reg.Reviews(),
		Products: reg.Products(),
		Orders:   reg.Orders(),
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			Health:      healthRepo,
			Version:     infra.Version,
			Environment: infra.Environment,
			Clock:       time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func pricingFromConfig(cfg config.PricingConfig) domain.PricingConfig {
	pricing := domain.PricingConfig{
		FreeShippingThreshold: cfg.FreeShippingOver,
		FlatShippingFee:       cfg.FlatShippingFee,
		TaxRateBasisPoints:    cfg.TaxRateBasisPoints,
	}
	if pricing == (domain.PricingConfig{}) {
		return domain.DefaultPricing()
	}
	return pricing
}
