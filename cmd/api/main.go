package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/inkwell-press/api/internal/handlers"
	"github.com/inkwell-press/api/internal/payments"
	"github.com/inkwell-press/api/internal/platform/auth"
	"github.com/inkwell-press/api/internal/platform/config"
	pfirestore "github.com/inkwell-press/api/internal/platform/firestore"
	"github.com/inkwell-press/api/internal/platform/intent"
	"github.com/inkwell-press/api/internal/platform/jobs"
	"github.com/inkwell-press/api/internal/platform/observability"
	"github.com/inkwell-press/api/internal/platform/secrets"
	platformstorage "github.com/inkwell-press/api/internal/platform/storage"
	firestoreRepo "github.com/inkwell-press/api/internal/repositories/firestore"
	"github.com/inkwell-press/api/internal/services"
)

const (
	intentCleanupInterval = time.Hour
	intentCleanupBatch    = 100
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

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
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets("PSP.PaystackSecretKey", "Webhooks.PaystackSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	designStorage, err := platformstorage.NewClient(cfg.Storage.DesignsBucket, cfg.Storage.PublicBaseURL)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := designStorage.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	webhookVerifier, err := auth.NewWebhookVerifier(cfg.Webhooks.PaystackSecret)
	if err != nil {
		logger.Fatal("failed to initialise webhook verifier", zap.Error(err))
	}

	customizationRepo, err := firestoreRepo.NewCustomizationRepository(firestoreProvider,
		firestoreRepo.WithCustomizationLogger(firestoreRepo.CustomizationLogger(eventLogger(logger.Named("customizations")))),
	)
	if err != nil {
		logger.Fatal("failed to initialise customization repository", zap.Error(err))
	}
	catalogRepo, err := firestoreRepo.NewCatalogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}
	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}

	paystackProvider, err := payments.NewPaystackProvider(payments.PaystackProviderConfig{
		SecretKey: cfg.PSP.PaystackSecretKey,
		BaseURL:   cfg.PSP.PaystackBaseURL,
		Logger:    payments.PaystackLogger(eventLogger(logger.Named("paystack"))),
		Clock:     time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise paystack provider", zap.Error(err))
	}

	providers := map[string]payments.Provider{
		"paystack": paystackProvider,
	}
	if cfg.Features.EnableStripe {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Logger: payments.StripeLogger(eventLogger(logger.Named("stripe"))),
			Clock:  time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		providers["stripe"] = stripeProvider
	}
	paymentManager, err := payments.NewManager(providers)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	intentStore := intent.NewFirestoreStore(firestoreProvider)

	var submissionEvents services.SubmissionEventPublisher
	var pubsubClient *pubsub.Client
	if cfg.Features.EnableEvents {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		publisher, err := jobs.NewPubSubSubmissionPublisher(pubsubClient.Topic(cfg.Events.TopicID))
		if err != nil {
			logger.Fatal("failed to initialise submission publisher", zap.Error(err))
		}
		submissionEvents = publisher
	}
	defer func() {
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Repository: catalogRepo,
		Clock:      time.Now,
		Logger:     eventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository:      cartRepo,
		Clock:           time.Now,
		DefaultCurrency: cfg.Payments.Currency,
		Logger:          eventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	uploadService, err := services.NewUploadService(services.UploadServiceDeps{
		Storage:    designStorage,
		PathPrefix: cfg.Storage.DesignsPathPrefix,
		MaxBytes:   cfg.Uploads.MaxBytes,
		Clock:      time.Now,
		Logger:     eventLogger(logger.Named("uploads")),
	})
	if err != nil {
		logger.Fatal("failed to initialise upload service", zap.Error(err))
	}

	customizationService, err := services.NewCustomizationService(services.CustomizationServiceDeps{
		Repository: customizationRepo,
		Catalog:    catalogRepo,
		Events:     submissionEvents,
		Clock:      time.Now,
		Currency:   cfg.Payments.Currency,
		Logger:     eventLogger(logger.Named("customizations")),
	})
	if err != nil {
		logger.Fatal("failed to initialise customization service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Intents:        intentStore,
		Gateway:        paymentManager,
		Customizations: customizationService,
		Clock:          time.Now,
		Currency:       cfg.Payments.Currency,
		CallbackURL:    cfg.Payments.CallbackURL,
		IntentTTL:      cfg.Intents.TTL,
		Logger:         eventLogger(logger.Named("payments")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	catalogHandlers, err := handlers.NewCatalogHandlers(catalogService)
	if err != nil {
		logger.Fatal("failed to initialise catalog handlers", zap.Error(err))
	}
	cartHandlers, err := handlers.NewCartHandlers(cartService)
	if err != nil {
		logger.Fatal("failed to initialise cart handlers", zap.Error(err))
	}
	uploadHandlers, err := handlers.NewUploadHandlers(uploadService, cfg.Uploads.MaxBytes)
	if err != nil {
		logger.Fatal("failed to initialise upload handlers", zap.Error(err))
	}
	customizationHandlers, err := handlers.NewCustomizationHandlers(customizationService)
	if err != nil {
		logger.Fatal("failed to initialise customization handlers", zap.Error(err))
	}
	paymentHandlers, err := handlers.NewPaymentHandlers(handlers.PaymentHandlersDeps{
		Payments: paymentService,
		Verifier: webhookVerifier,
		Logger:   eventLogger(logger.Named("webhooks")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment handlers", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(envValues, startedAt)),
		handlers.WithReadinessCheck("firestore", func(ctx context.Context) error {
			iter := firestoreClient.Collections(ctx)
			_, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return err
		}),
	)

	// Pending intents past their TTL are swept in the background so abandoned
	// checkouts do not accumulate.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(intentCleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("intents")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := intentStore.CleanupExpired(runCtx, time.Now().UTC(), intentCleanupBatch)
				cancel()
				if err != nil {
					cleanupLogger.Error("intent cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("intent cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(catalogHandlers.RegisterPublic),
		handlers.WithMeRoutes(func(r chi.Router) {
			cartHandlers.RegisterMe(r)
			uploadHandlers.RegisterMe(r)
			customizationHandlers.RegisterMe(r)
			paymentHandlers.RegisterMe(r)
		}),
		handlers.WithMeMiddlewares(authenticator.RequireAuth(auth.RoleUser, auth.RoleAdmin)),
		handlers.WithAdminRoutes(func(r chi.Router) {
			catalogHandlers.RegisterAdmin(r)
			customizationHandlers.RegisterAdmin(r)
		}),
		handlers.WithAdminMiddlewares(authenticator.RequireAuth(auth.RoleAdmin)),
		handlers.WithWebhookRoutes(paymentHandlers.RegisterWebhooks),
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
		serverLogger.Info("inkwell press api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// eventLogger adapts a zap logger to the services event callback.
func eventLogger(logger *zap.Logger) services.Logger {
	return func(ctx context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service log", zFields...)
	}
}

func buildInfoFromEnv(env map[string]string, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(env["API_ENVIRONMENT"])
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project := lookup("API_SECRET_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithProject(project))
	} else if project := lookup("API_FIREBASE_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
