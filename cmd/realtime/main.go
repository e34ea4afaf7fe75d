package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/ride-booking/internal/availability"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/notifications"
	"github.com/richxcame/ride-booking/internal/payments"
	"github.com/richxcame/ride-booking/internal/tickets"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/database"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/health"
	"github.com/richxcame/ride-booking/pkg/i18n"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/middleware"
	"github.com/richxcame/ride-booking/pkg/push"
	"github.com/richxcame/ride-booking/pkg/resilience"
	"github.com/richxcame/ride-booking/pkg/secrets"
	"github.com/richxcame/ride-booking/pkg/sms"
	"github.com/richxcame/ride-booking/pkg/storage"
	ws "github.com/richxcame/ride-booking/pkg/websocket"
	"go.uber.org/zap"
)

const (
	serviceName    = "realtime-service"
	serviceVersion = "1.0.0"
)

// tripAvailability answers snapshot requests straight from Postgres.
type tripAvailability struct {
	manager *inventory.Manager
	trips   inventory.TripReader
}

func (t tripAvailability) Availability(ctx context.Context, tripID uuid.UUID) (*inventory.Availability, error) {
	return t.manager.Availability(ctx, t.trips, tripID, time.Now())
}

// The realtime service consumes booking events from NATS. It pushes seat
// availability to websocket subscribers, sends rider notifications, issues
// e-tickets and refunds cancelled payments.
func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.NATS.Enabled {
		logger.Fatal("The realtime service needs NATS_ENABLED=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Secrets.Provider != "" {
		manager, err := secrets.NewManager(ctx, cfg.Secrets)
		if err != nil {
			logger.Fatal("Failed to create secrets manager", zap.Error(err))
		}
		if err := manager.ResolveInto(ctx, &cfg.Twilio.AuthToken, cfg.Twilio.AuthRef); err != nil {
			logger.Fatal("Failed to resolve Twilio token", zap.Error(err))
		}
		if err := manager.ResolveInto(ctx, &cfg.Payment.StripeSecretKey, cfg.Payment.StripeKeyRef); err != nil {
			logger.Fatal("Failed to resolve Stripe key", zap.Error(err))
		}
		_ = manager.Close()
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)

	bus, err := eventbus.Connect(cfg.NATS, serviceName)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer bus.Close()

	hub := ws.NewHub()
	go hub.Run()
	logger.Info("WebSocket hub started")

	feed := availability.NewFeed(hub)
	if err := bus.Broadcast(ctx, eventbus.SubjectTrips+".availability.>", feed.HandleEvent); err != nil {
		logger.Fatal("Failed to subscribe to availability events", zap.Error(err))
	}

	if err := startNotifications(ctx, cfg, bus); err != nil {
		logger.Fatal("Failed to start notifications", zap.Error(err))
	}

	if cfg.Storage.Enabled {
		store, err := storage.NewS3Storage(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("Failed to configure ticket storage", zap.Error(err))
		}
		if err := tickets.NewIssuer(store, cfg.Booking.Location()).RegisterSubscriptions(ctx, bus); err != nil {
			logger.Fatal("Failed to subscribe ticket issuer", zap.Error(err))
		}
	}

	if cfg.Payment.Provider == payments.ProviderStripe && cfg.Payment.StripeSecretKey != "" {
		refunds := payments.NewEventHandler(payments.NewStripeAPI(cfg.Payment.StripeSecretKey))
		if err := refunds.RegisterSubscriptions(ctx, bus); err != nil {
			logger.Fatal("Failed to subscribe refunds", zap.Error(err))
		}
	}

	trips := inventory.NewTripRepository(pool)
	source := tripAvailability{manager: inventory.NewManager(inventory.NewLocalLocker(), 0), trips: trips}

	var origins []string
	for _, o := range strings.Split(cfg.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			origins = append(origins, o)
		}
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))

	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	health.Register(router, serviceName, serviceVersion, map[string]func() error{
		"database": health.DatabaseChecker(pool),
		"nats":     health.NATSChecker(bus.Conn()),
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/api/v1/realtime/stats", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"connected_clients": hub.GetClientCount()})
	})
	availability.NewHandler(source, hub, origins).RegisterRoutes(router)

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		logger.Info("Real-time service starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

func startNotifications(ctx context.Context, cfg *config.Config, bus *eventbus.Bus) error {
	var sender sms.Sender
	if cfg.Twilio.Enabled {
		sender = sms.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	}

	var notifier push.Notifier
	if cfg.Firebase.Enabled {
		fcm, err := push.NewFCMNotifier(ctx, cfg.Firebase)
		if err != nil {
			return err
		}
		notifier = fcm
	}

	lang := cfg.Server.Language
	if !i18n.Supported(lang) {
		lang = i18n.DefaultLang
	}

	service := notifications.NewService(sender, notifier, lang, cfg.Booking.Location())
	service.SetCircuitBreakers(
		resilience.NewCircuitBreaker(resilience.SettingsFor("twilio", cfg.Breaker), resilience.Degrade("twilio")),
		resilience.NewCircuitBreaker(resilience.SettingsFor("fcm", cfg.Breaker), resilience.Degrade("fcm")),
	)
	return notifications.NewEventHandler(service).RegisterSubscriptions(ctx, bus)
}
