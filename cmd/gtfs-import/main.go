package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/richxcame/ride-booking/internal/routes"
	"github.com/richxcame/ride-booking/migrations"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/database"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// gtfs-import loads routes and their ordered stops from a GTFS static feed.
//
//	gtfs-import -feed https://example.org/gtfs.zip
//	gtfs-import -feed ./feed.zip -dry-run
func main() {
	feed := flag.String("feed", os.Getenv("GTFS_FEED"), "URL or path of a GTFS static zip")
	dryRun := flag.Bool("dry-run", false, "parse the feed and print what would be imported")
	migrate := flag.Bool("migrate", false, "apply pending migrations first")
	flag.Parse()

	if *feed == "" {
		log.Fatal("gtfs-import: -feed is required")
	}

	cfg, err := config.Load("gtfs-import")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	static, err := routes.LoadFeed(ctx, *feed)
	if err != nil {
		logger.Fatal("Failed to load feed", zap.Error(err))
	}

	if *dryRun {
		for _, ir := range routes.BuildRoutes(static) {
			logger.Info("route",
				zap.String("code", ir.Route.Code),
				zap.String("name", ir.Route.Name),
				zap.Int("stops", len(ir.Stops)))
		}
		return
	}

	if *migrate {
		if err := database.Migrate(cfg.Database.URL(), migrations.FS); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)

	n, err := routes.Import(ctx, pool, static)
	if err != nil {
		logger.Fatal("Import failed", zap.Error(err))
	}
	logger.Info("GTFS import finished", zap.Int("routes", n))
}
