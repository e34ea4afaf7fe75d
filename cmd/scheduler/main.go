package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/richxcame/ride-booking/internal/boarding"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/payments"
	"github.com/richxcame/ride-booking/internal/scheduler"
	"github.com/richxcame/ride-booking/internal/subscriptions"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/database"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	pkgredis "github.com/richxcame/ride-booking/pkg/redis"
	"go.uber.org/zap"
)

const serviceName = "booking-scheduler"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)

	// Holds are released under the same trip lock the API takes.
	var locker inventory.Locker = inventory.NewLocalLocker()
	if cfg.Booking.LockBackend == "redis" {
		redisClient, err := pkgredis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = pkgredis.NewLocker(redisClient, "trip-inventory:", cfg.Redis.LockTTL)
	}

	var events eventbus.Publisher = eventbus.NopPublisher{}
	if cfg.NATS.Enabled {
		bus, err := eventbus.Connect(cfg.NATS, serviceName)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
		events = bus
	}

	// The sweep never confirms payments; the manual confirmer satisfies the wiring.
	service := booking.NewService(
		booking.NewPgStore(pool, cfg.Booking.LockWait),
		inventory.NewManager(locker, cfg.Booking.LockWait),
		subscriptions.NewTracker(cfg.Booking.Location(), cfg.Booking.CommuteSplitHour),
		boarding.NewVerifier(cfg.Booking.OTPTTL),
		payments.ManualConfirmer{},
		events,
		booking.PolicyFromConfig(cfg.Booking),
	)

	worker := scheduler.NewWorker(pool, service, logger.Get(), cfg.Sweep)
	worker.Start(ctx)
	logger.Info("Scheduler exited")
}
