package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ideaboard-app/ideaboard/internal/ai"
	"github.com/ideaboard-app/ideaboard/internal/api"
	"github.com/ideaboard-app/ideaboard/internal/auth"
	"github.com/ideaboard-app/ideaboard/internal/billing"
	"github.com/ideaboard-app/ideaboard/internal/config"
	"github.com/ideaboard-app/ideaboard/internal/database"
	"github.com/ideaboard-app/ideaboard/internal/generate"
	"github.com/ideaboard-app/ideaboard/internal/ideas"
	"github.com/ideaboard-app/ideaboard/internal/middleware"
	inats "github.com/ideaboard-app/ideaboard/internal/nats"
	"github.com/ideaboard-app/ideaboard/internal/notify"
	"github.com/ideaboard-app/ideaboard/internal/quota"
	iredis "github.com/ideaboard-app/ideaboard/internal/redis"
	"github.com/ideaboard-app/ideaboard/internal/server"
	"github.com/ideaboard-app/ideaboard/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Migrations
	if cfg.DB.MigrationsPath != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Notifications: request path enqueues, consumer delivers
	publisher := inats.NewPublisher(natsClient.JetStream())
	trigger := notify.NewTrigger(publisher)

	mailer := notify.NewMailer(cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.From)
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
	emailConsumer := notify.NewConsumer(mailer, consumerMgr)
	go func() {
		if err := emailConsumer.Start(ctx); err != nil {
			slog.Error("email consumer stopped", "error", err)
		}
	}()

	// Ideas
	ideaRepo := ideas.NewRepository(pool)
	ideaSvc := ideas.NewService(ideaRepo)
	ideaHandler := ideas.NewHandler(ideaSvc)

	// Billing
	paymentStore := billing.NewPaymentStore(pool)
	subStore := billing.NewSubscriptionStore(pool)
	couponStore := billing.NewCouponStore(pool)
	reconciler := billing.NewReconciler(cfg.Razorpay.WebhookSecret, paymentStore, subStore, couponStore, userRepo, trigger)
	billingHandler := billing.NewHandler(reconciler, subStore, paymentStore, couponStore)

	// Generation
	aiClient := ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	burst := quota.NewBurstLimiter(redisClient)
	generateSvc := generate.NewService(userRepo, subStore, aiClient, trigger, burst, cfg.Limits.GenerateBurstPerMinute)
	generateHandler := generate.NewHandler(generateSvc, ideaSvc)

	// Router
	authLimiter := middleware.NewRateLimiter(redisClient, cfg.Limits.AuthMaxRequests, cfg.Limits.AuthWindowSec)
	router := api.NewRouter(pool, natsClient,
		api.RouterConfig{
			CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
			AuthRateLimiter:    authLimiter.Middleware,
		},
		api.HandlerSet{
			Register: authHandler.Register,
			Login:    authHandler.Login,
			Refresh:  authHandler.Refresh,
			Logout:   authHandler.Logout,

			Generate:     generateHandler.Generate,
			GeneratePlan: generateHandler.GeneratePlan,
			Usage:        generateHandler.Usage,

			ListIdeas:           ideaHandler.List,
			GetIdea:             ideaHandler.Get,
			DeleteIdea:          ideaHandler.Delete,
			OwnershipMiddleware: ideaHandler.OwnershipMiddleware,

			GetSubscription:    billingHandler.GetSubscription,
			CancelSubscription: billingHandler.CancelSubscription,
			ListPayments:       billingHandler.ListPayments,
			ValidateCoupon:     billingHandler.ValidateCoupon,

			RazorpayWebhook: billingHandler.Webhook,

			AuthMiddleware: auth.Middleware(authSvc),
		})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
