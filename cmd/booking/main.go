package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/ride-booking/internal/availability"
	"github.com/richxcame/ride-booking/internal/boarding"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/payments"
	"github.com/richxcame/ride-booking/internal/roundtrip"
	"github.com/richxcame/ride-booking/internal/routes"
	"github.com/richxcame/ride-booking/internal/subscriptions"
	"github.com/richxcame/ride-booking/internal/tickets"
	"github.com/richxcame/ride-booking/migrations"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/database"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/health"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/middleware"
	"github.com/richxcame/ride-booking/pkg/rabbitmq"
	"github.com/richxcame/ride-booking/pkg/ratelimit"
	pkgredis "github.com/richxcame/ride-booking/pkg/redis"
	"github.com/richxcame/ride-booking/pkg/secrets"
	"github.com/richxcame/ride-booking/pkg/storage"
	"github.com/richxcame/ride-booking/pkg/tracing"
	"github.com/richxcame/ride-booking/pkg/validation"
	ws "github.com/richxcame/ride-booking/pkg/websocket"
	"go.uber.org/zap"
)

const (
	serviceName    = "booking-service"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     serviceName + "@" + serviceVersion,
		}); err != nil {
			logger.Warn("Failed to initialize Sentry", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	shutdownTracing, err := tracing.Init(ctx, serviceName, serviceVersion, cfg.Tracing)
	if err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	if err := resolveSecrets(ctx, cfg); err != nil {
		logger.Fatal("Failed to resolve secrets", zap.Error(err))
	}

	if cfg.Database.MigrateOnBoot {
		if err := database.Migrate(cfg.Database.URL(), migrations.FS); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("Connected to PostgreSQL database")

	checks := map[string]func() error{"database": health.DatabaseChecker(pool)}

	var redisClient *pkgredis.Client
	if cfg.Booking.LockBackend == "redis" || cfg.RateLimit.Enabled {
		redisClient, err = pkgredis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = health.RedisChecker(redisClient)
	}

	var locker inventory.Locker = inventory.NewLocalLocker()
	if cfg.Booking.LockBackend == "redis" {
		locker = pkgredis.NewLocker(redisClient, "trip-inventory:", cfg.Redis.LockTTL)
		logger.Info("Using Redis trip locks")
	}

	hub := ws.NewHub()
	go hub.Run()
	feed := availability.NewFeed(hub)

	publishers := eventbus.MultiPublisher{feed}
	if cfg.NATS.Enabled {
		bus, err := eventbus.Connect(cfg.NATS, serviceName)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
		publishers = append(publishers, bus)
		checks["nats"] = health.NATSChecker(bus.Conn())
	}
	if cfg.RabbitMQ.Enabled {
		mirror, err := rabbitmq.NewPublisher(cfg.RabbitMQ)
		if err != nil {
			logger.Warn("RabbitMQ mirror disabled", zap.Error(err))
		} else {
			defer mirror.Close()
			publishers = append(publishers, mirror)
		}
	}

	confirmer, err := payments.NewConfirmer(cfg.Payment, cfg.Breaker)
	if err != nil {
		logger.Fatal("Failed to configure payments", zap.Error(err))
	}

	store := booking.NewPgStore(pool, cfg.Booking.LockWait)
	service := booking.NewService(
		store,
		inventory.NewManager(locker, cfg.Booking.LockWait),
		subscriptions.NewTracker(cfg.Booking.Location(), cfg.Booking.CommuteSplitHour),
		boarding.NewVerifier(cfg.Booking.OTPTTL),
		confirmer,
		publishers,
		booking.PolicyFromConfig(cfg.Booking),
	)

	stopRepo := routes.NewStopRepository(pool)
	stopIndex := routes.NewStopIndex()
	if err := stopIndex.Reload(ctx, stopRepo); err != nil {
		logger.Warn("Failed to build stop index", zap.Error(err))
	}

	if err := validation.RegisterGinValidators(); err != nil {
		logger.Fatal("Failed to register validators", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	if cfg.Sentry.Enabled {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.MaxBodySize(1 << 20))

	origins := splitOrigins(cfg.Server.CORSOrigins)
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	health.Register(router, serviceName, serviceVersion, checks)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwtSecret := cfg.JWT.Secret
	bookingHandler := booking.NewHandler(service, cfg.Booking.BusyRetries)
	if cfg.RateLimit.Enabled {
		bookingHandler.Use(middleware.RateLimit(ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)))
	}
	bookingHandler.RegisterRoutes(router, jwtSecret)
	roundtrip.NewHandler(roundtrip.NewLinker(service, store), cfg.Booking.BusyRetries).RegisterRoutes(router, jwtSecret)
	subscriptions.NewHandler(subscriptions.NewService(subscriptions.NewRepository(pool))).RegisterRoutes(router, jwtSecret)
	routes.NewHandler(stopRepo, stopIndex).RegisterRoutes(router, jwtSecret)
	availability.NewHandler(service, hub, origins).RegisterRoutes(router)

	if cfg.Storage.Enabled {
		s3, err := storage.NewS3Storage(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("Failed to configure ticket storage", zap.Error(err))
		}
		tickets.NewHandler(service, s3).RegisterRoutes(router, jwtSecret)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Booking service starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down booking service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

// resolveSecrets replaces provider credentials given as *_REF references.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	if cfg.Secrets.Provider == "" {
		return nil
	}
	manager, err := secrets.NewManager(ctx, cfg.Secrets)
	if err != nil {
		return err
	}
	defer manager.Close()

	if err := manager.ResolveInto(ctx, &cfg.Payment.StripeSecretKey, cfg.Payment.StripeKeyRef); err != nil {
		return fmt.Errorf("stripe key: %w", err)
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			origins = append(origins, o)
		}
	}
	return origins
}
