// Netward - ISP network operations console
//
// This is the main entry point for the Netward application. Netward
// manages PPPoE subscribers across a fleet of MikroTik routers: it keeps
// the subscriber database and router secrets in step, classifies who is
// online, offline, or isolated, and pushes live status to the web console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/reznoir/netward/migrations"

	"github.com/reznoir/netward/internal/api"
	"github.com/reznoir/netward/internal/auth"
	"github.com/reznoir/netward/internal/device"
	"github.com/reznoir/netward/internal/infrastructure/config"
	"github.com/reznoir/netward/internal/infrastructure/database"
	"github.com/reznoir/netward/internal/infrastructure/influxdb"
	"github.com/reznoir/netward/internal/infrastructure/logging"
	"github.com/reznoir/netward/internal/infrastructure/mqtt"
	"github.com/reznoir/netward/internal/plan"
	"github.com/reznoir/netward/internal/plant"
	"github.com/reznoir/netward/internal/routeros"
	"github.com/reznoir/netward/internal/subscriber"
	syncengine "github.com/reznoir/netward/internal/sync"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Netward",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	subscriberRepo := subscriber.NewSQLiteRepository(db.DB)
	deviceRepo := device.NewSQLiteRepository(db.DB)
	packageRepo := plan.NewSQLiteRepository(db.DB)
	plantRepo := plant.NewSQLiteRepository(db.DB)
	userRepo := auth.NewSQLiteUserRepository(db.DB)

	// Seed the first operator account on an empty database
	if _, seedErr := auth.EnsureAdmin(ctx, userRepo, cfg.Security.AdminUser, cfg.Security.AdminPassword, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// WebSocket hub: status deltas from the sync engine fan out here
	hub := api.NewHub(cfg.WebSocket, log)

	notifiers := []syncengine.StatusNotifier{hub}

	// Optional MQTT status mirror
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPub, err = mqtt.Connect(cfg.MQTT, log.Logger)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttPub.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		notifiers = append(notifiers, mqttPub)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
			"client_id", cfg.MQTT.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Sync engine
	dialer := routeros.NewDialer(cfg.GetConnectTimeout())
	engine := syncengine.NewEngine(syncengine.Config{
		Subscribers:    subscriberRepo,
		Devices:        deviceRepo,
		Dialer:         dialer,
		Notifier:       multiNotifier(notifiers),
		Logger:         log.Logger,
		BatchSize:      cfg.Sync.BatchSize,
		CommandTimeout: cfg.GetCommandTimeout(),
	})

	// Optional InfluxDB bandwidth telemetry
	var telemetry *influxdb.Writer
	if cfg.InfluxDB.Enabled {
		telemetry = influxdb.New(cfg.InfluxDB, log.Logger)
		defer func() {
			log.Info("closing InfluxDB connection")
			telemetry.Close()
		}()
		if pingErr := telemetry.HealthCheck(ctx); pingErr != nil {
			log.Warn("InfluxDB not reachable at startup", "error", pingErr)
		}
		log.Info("InfluxDB telemetry enabled",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Subscribers: subscriberRepo,
		Devices:     deviceRepo,
		Packages:    packageRepo,
		Plant:       plantRepo,
		Users:       userRepo,
		Engine:      engine,
		Dialer:      dialer,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Background reconciliation
	if interval := cfg.GetSyncInterval(); interval > 0 {
		go engine.Run(ctx, interval)
		log.Info("background sync started", "interval", interval)

		if telemetry != nil {
			go sampleBandwidth(ctx, engine, deviceRepo, telemetry, interval, log)
		}
	} else {
		log.Info("background sync disabled")
	}

	if err := healthCheck(ctx, db, server, mqttPub); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Netward stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NETWARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NETWARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional components that are disabled pass vacuously.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttPub *mqtt.Publisher) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttPub != nil {
		if err := mqttPub.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	return nil
}

// multiNotifier fans one status delta batch out to several notifiers.
type multiNotifier []syncengine.StatusNotifier

// NotifyStatus implements sync.StatusNotifier.
func (m multiNotifier) NotifyStatus(deltas []syncengine.StatusDelta) {
	for _, n := range m {
		n.NotifyStatus(deltas)
	}
}

// sampleBandwidth periodically probes each reachable router and records
// its traffic figures to InfluxDB. Probe failures are logged by the
// engine and skipped; telemetry is never load-bearing.
func sampleBandwidth(ctx context.Context, engine *syncengine.Engine, devices device.Repository, telemetry *influxdb.Writer, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			all, err := devices.List(ctx)
			if err != nil {
				log.Warn("telemetry device list failed", "error", err)
				continue
			}
			for _, dev := range all {
				if !dev.HasConnectionParams() {
					continue
				}
				stats, err := engine.CollectDeviceStats(ctx, dev.ID)
				if err != nil {
					log.Debug("telemetry probe failed", "device_id", dev.ID, "error", err)
					continue
				}
				telemetry.WriteDeviceStats(ctx, *stats)
			}
		}
	}
}
