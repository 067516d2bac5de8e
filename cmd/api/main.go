package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elite-furniture/api/internal/di"
	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/handlers"
	"github.com/elite-furniture/api/internal/payments"
	"github.com/elite-furniture/api/internal/platform/auth"
	"github.com/elite-furniture/api/internal/platform/config"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/platform/jobs"
	"github.com/elite-furniture/api/internal/platform/observability"
	"github.com/elite-furniture/api/internal/platform/secrets"
	platformstorage "github.com/elite-furniture/api/internal/platform/storage"
	"github.com/elite-furniture/api/internal/repositories"
	firestorerepo "github.com/elite-furniture/api/internal/repositories/firestore"
)

const (
	paystackWebhookSecretName    = "gateways/paystack-webhook"
	flutterwaveWebhookSecretName = "gateways/flutterwave-webhook"

	receiptContentTypeJPEG = "image/jpeg"
	receiptContentTypePNG  = "image/png"
	receiptContentTypePDF  = "application/pdf"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(
			"Gateways.PaystackSecretKey",
			"Gateways.PaystackWebhookSecret",
			"Gateways.FlutterwaveSecretKey",
		),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	version, environment := buildInfoFromEnv(envValues)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var storageOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		storageOpts = append(storageOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	storageClient, err := gcs.NewClient(ctx, storageOpts...)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	uploader, err := platformstorage.NewUploader(platformstorage.UploaderConfig{
		Client:              storageClient,
		Bucket:              cfg.Storage.ReceiptsBucket,
		MaxBytes:            cfg.Storage.ReceiptMaxBytes,
		AllowedContentTypes: []string{receiptContentTypeJPEG, receiptContentTypePNG, receiptContentTypePDF},
	})
	if err != nil {
		logger.Fatal("failed to initialise receipt uploader", zap.Error(err))
	}

	signer, err := newReceiptSigner(envValues, cfg)
	if err != nil {
		logger.Fatal("failed to initialise storage signer", zap.Error(err))
	}
	signedURLClient, err := platformstorage.NewClient(signer)
	if err != nil {
		logger.Fatal("failed to initialise signed url client", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	notificationTopic := pubsubClient.Topic(cfg.PubSub.NotificationTopic)
	defer notificationTopic.Stop()

	publisher, err := jobs.NewPubSubNotificationPublisher(notificationTopic)
	if err != nil {
		logger.Fatal("failed to initialise notification publisher", zap.Error(err))
	}

	gatewayManager, err := newGatewayManager(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise payment gateways", zap.Error(err))
	}

	healthRepo, err := newHealthRepository(firestoreClient, notificationTopic, fetcher)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	registry, err := firestorerepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repository registry", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry, di.Infrastructure{
		Gateway:     gatewayManager,
		Uploader:    uploader,
		Signer:      signedURLClient,
		Publisher:   publisher,
		Version:     version,
		Environment: environment,
	})
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	svc := container.Services
	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog, svc.Reviews)
	reviewHandlers := handlers.NewReviewHandlers(authenticator, svc.Reviews)
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Cart)
	wishlistHandlers := handlers.NewWishlistHandlers(authenticator, svc.Wishlist)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, svc.Checkout)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, svc.Payments)
	meHandlers := handlers.NewMeHandlers(authenticator, svc.Users)
	adminHandlers := handlers.NewAdminHandlers(authenticator, svc.Catalog, svc.Orders, svc.Payments, svc.Reviews)
	webhookHandlers := handlers.NewWebhookHandlers(svc.Payments)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(svc.System),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firebase.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithReviewRoutes(reviewHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithWishlistRoutes(wishlistHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithWebhookMiddlewares(newWebhookMiddleware(cfg, logger.Named("webhooks"))),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string) (version, environment string) {
	version = strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	environment = strings.TrimSpace(env["API_ENVIRONMENT"])
	if environment == "" {
		environment = "local"
	}
	return version, environment
}

// newGatewayManager wires the Paystack and Flutterwave providers behind a
// shared HTTP client. Bank transfer needs no provider; it settles through
// manual evidence review.
func newGatewayManager(cfg config.Config, logger *zap.Logger) (*payments.Manager, error) {
	httpClient := &http.Client{Timeout: cfg.Gateways.RequestTimeout}

	paystack, err := payments.NewPaystackProvider(cfg.Gateways.PaystackSecretKey,
		payments.WithPaystackBaseURL(cfg.Gateways.PaystackBaseURL),
		payments.WithPaystackHTTPClient(httpClient),
		payments.WithPaystackLogger(logger.Named("paystack")),
	)
	if err != nil {
		return nil, fmt.Errorf("paystack provider: %w", err)
	}

	flutterwave, err := payments.NewFlutterwaveProvider(cfg.Gateways.FlutterwaveSecretKey,
		payments.WithFlutterwaveBaseURL(cfg.Gateways.FlutterwaveBaseURL),
		payments.WithFlutterwaveHTTPClient(httpClient),
		payments.WithFlutterwaveLogger(logger.Named("flutterwave")),
	)
	if err != nil {
		return nil, fmt.Errorf("flutterwave provider: %w", err)
	}

	return payments.NewManager(map[domain.PaymentMethod]payments.Provider{
		domain.PaymentMethodPaystack:    paystack,
		domain.PaymentMethodFlutterwave: flutterwave,
	})
}

// newWebhookMiddleware picks the gateway-specific signature check by route.
// Paystack signs the raw body with HMAC-SHA512; Flutterwave sends the static
// verification hash configured on its dashboard.
func newWebhookMiddleware(cfg config.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	paystackSecret := strings.TrimSpace(cfg.Gateways.PaystackWebhookSecret)
	if paystackSecret == "" {
		paystackSecret = strings.TrimSpace(cfg.Gateways.PaystackSecretKey)
	}
	provider := staticSecretProvider{secrets: map[string]string{
		paystackWebhookSecretName:    paystackSecret,
		flutterwaveWebhookSecretName: strings.TrimSpace(cfg.Gateways.FlutterwaveSecretKey),
	}}
	validator := auth.NewWebhookValidator(provider, logger)

	requirePaystack := validator.RequirePaystackSignature(paystackWebhookSecretName)
	requireFlutterwave := validator.RequireFlutterwaveHash(flutterwaveWebhookSecretName)

	return func(next http.Handler) http.Handler {
		paystack := requirePaystack(next)
		flutterwave := requireFlutterwave(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/paystack"):
				paystack.ServeHTTP(w, r)
			case strings.HasSuffix(r.URL.Path, "/flutterwave"):
				flutterwave.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

type staticSecretProvider struct {
	secrets map[string]string
}

func (p staticSecretProvider) GetSecret(_ context.Context, name string) (string, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return "", errors.New("secret name required")
	}
	if secret, ok := p.secrets[key]; ok && secret != "" {
		return secret, nil
	}
	return "", fmt.Errorf("secret %q not configured", key)
}

// newReceiptSigner loads the service account key used to mint signed receipt
// download URLs. A dedicated signer key can be supplied; otherwise the
// Firebase credentials file doubles as the signing identity.
func newReceiptSigner(env map[string]string, cfg config.Config) (*platformstorage.ServiceAccountSigner, error) {
	keyFile := strings.TrimSpace(env["API_STORAGE_SIGNER_KEY_FILE"])
	if keyFile == "" {
		keyFile = strings.TrimSpace(cfg.Firebase.CredentialsFile)
	}
	if keyFile == "" {
		return nil, errors.New("no signer key file configured")
	}
	return platformstorage.NewServiceAccountSignerFromFile(keyFile)
}

func newHealthRepository(client *firestore.Client, topic *pubsub.Topic, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	probes := make([]repositories.DependencyProbe, 0, 3)

	if client != nil {
		c := client
		probes = append(probes, repositories.DependencyProbe{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		probes = append(probes, repositories.DependencyProbe{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				ok, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		probes = append(probes, repositories.DependencyProbe{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}

	return repositories.NewDependencyHealthRepository(probes)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	projectID := lookup("API_SECRET_PROJECT_ID")
	if projectID == "" {
		projectID = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectID != "" {
		opts = append(opts, secrets.WithProject(projectID))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
