// Verdant Core - Irrigation Control Engine
//
// This is the main entry point for the Verdant Core daemon. Verdant runs
// grow cycles against local relay outputs: lifecycle management, a 1-second
// evaluation loop with autopilot and scheduled dosing, and reboot recovery
// that restores a known actuation state before the loop starts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/verdant-core/migrations"

	"github.com/nerrad567/verdant-core/internal/actuator"
	"github.com/nerrad567/verdant-core/internal/api"
	"github.com/nerrad567/verdant-core/internal/cycle"
	"github.com/nerrad567/verdant-core/internal/infrastructure/config"
	"github.com/nerrad567/verdant-core/internal/infrastructure/database"
	"github.com/nerrad567/verdant-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/verdant-core/internal/infrastructure/logging"
	"github.com/nerrad567/verdant-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/verdant-core/internal/point"
	"github.com/nerrad567/verdant-core/internal/sampling"
	"github.com/nerrad567/verdant-core/internal/schedule"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Verdant Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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
	db, err := database.Open(database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise point registry
	points := point.NewRegistry(point.NewSQLiteRepository(db.DB))
	points.SetLogger(log.With("component", "point"))
	if refreshErr := points.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading point registry: %w", refreshErr)
	}
	log.Info("point registry initialised")

	// Build the actuator engine over the configured output driver
	driver, closeDriver, err := buildDriver(cfg.IO.RelayOutputs)
	if err != nil {
		return fmt.Errorf("initialising output driver: %w", err)
	}
	if closeDriver != nil {
		defer func() {
			if closeErr := closeDriver(); closeErr != nil {
				log.Error("error closing output driver", "error", closeErr)
			}
		}()
	}

	outputBank := actuator.NewRegistry(
		cfg.IO.RelayOutputs.PointIDPrefix,
		cfg.IO.RelayOutputs.StartIndex,
		cfg.IO.RelayOutputs.Count,
	)
	actuation := actuator.NewEngine(outputBank, driver, cfg.Engine.CommandQueueSize)
	actuation.SetLogger(log.With("component", "actuator"))
	actuation.Start()
	defer func() {
		log.Info("stopping actuator engine")
		actuation.Close()
	}()
	log.Info("actuator engine started",
		"driver", cfg.IO.RelayOutputs.Driver,
		"channels", cfg.IO.RelayOutputs.Count,
	)

	// Connect to MQTT broker (optional: without it the core runs blind to
	// sensors and autopilot falls back to scheduled mode)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled, running without sensor feed")
	}

	// Sample cache, fed from MQTT when available
	samples := sampling.NewCache(cfg.SampleMaxAge())
	samples.SetLogger(log.With("component", "sampling"))
	if mqttClient != nil {
		if bindErr := sampling.Bind(samples, mqttClient, byte(cfg.MQTT.QoS)); bindErr != nil {
			return fmt.Errorf("subscribing to sample topics: %w", bindErr)
		}
		log.Info("sample cache bound to broker")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Schedule store
	schedules := schedule.NewStore(db.DB)
	schedules.SetLogger(log.With("component", "schedule"))

	// Cycle manager
	cycleRepo := cycle.NewSQLiteRepository(db.DB)
	cycles := cycle.NewManager(cycleRepo, schedules)
	cycles.SetLogger(log.With("component", "cycle"))
	if loadErr := cycles.LoadAll(ctx); loadErr != nil {
		return fmt.Errorf("loading cycles: %w", loadErr)
	}
	log.Info("cycles loaded", "active", len(cycles.EvaluationSet()))

	// Orphaned-instance janitor
	janitor, err := schedule.NewJanitor(schedules, cycleRepo.ReferencedInstanceIDs, cfg.Engine.JanitorSpec)
	if err != nil {
		return fmt.Errorf("creating schedule janitor: %w", err)
	}
	janitor.SetLogger(log.With("component", "janitor"))
	janitor.Start()
	defer func() {
		log.Info("stopping schedule janitor")
		janitor.Stop()
	}()

	// Cycle engine
	engine := cycle.NewEngine(cycles, actuation, samples, schedules, points, cfg.TickDuration())
	engine.SetLogger(log.With("component", "engine"))

	// Telemetry fan-out
	wireObservers(actuation, engine, cycles, mqttClient, influxClient, byte(cfg.MQTT.QoS), log)

	// Recovery must finish before the first tick so every output is in a
	// known state when evaluation begins
	engine.Recover(ctx)
	log.Info("reboot recovery complete")

	engine.Start(ctx)
	defer func() {
		log.Info("stopping cycle engine")
		engine.Stop()
	}()
	log.Info("cycle engine started", "tick", cfg.TickDuration())

	// HTTP snapshot API
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log.With("component", "api"),
			Cycles:    cycles,
			Points:    points,
			Actuation: actuation,
			Samples:   samples,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API, engine, janitor,
	// InfluxDB, MQTT, actuator, driver, database.

	log.Info("Verdant Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VERDANT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VERDANT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildDriver constructs the output driver selected in config. The second
// return value closes any underlying device and may be nil.
func buildDriver(cfg config.RelayOutputConfig) (actuator.Driver, func() error, error) {
	switch cfg.Driver {
	case "memory":
		return actuator.NewMemoryDriver(cfg.Count), nil, nil
	case "shift_register":
		port, err := actuator.OpenSPIPort(cfg.SPIDevice)
		if err != nil {
			return nil, nil, err
		}
		return actuator.NewShiftRegister(cfg.Count, port), port.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown output driver %q", cfg.Driver)
	}
}

// wireObservers fans engine events out to MQTT and InfluxDB. Both sinks
// are optional; a nil client simply drops its leg.
func wireObservers(
	actuation *actuator.Engine,
	engine *cycle.Engine,
	cycles *cycle.Manager,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	qos byte,
	log *logging.Logger,
) {
	topics := mqtt.Topics{}

	actuation.AddObserver(func(pointID string, on bool, source string) {
		if influxClient != nil {
			influxClient.WriteSwitchEvent(pointID, on, source)
		}
		if mqttClient != nil {
			payload, err := json.Marshal(map[string]any{
				"on":     on,
				"source": source,
			})
			if err != nil {
				return
			}
			if pubErr := mqttClient.Publish(topics.Actuation(pointID), payload, qos, true); pubErr != nil {
				log.Warn("failed to publish actuation event", "point_id", pointID, "error", pubErr)
			}
		}
	})

	engine.AddDoseObserver(func(cycleID, pointID, mode string, durationSeconds int) {
		if influxClient != nil {
			influxClient.WriteDoseEvent(cycleID, pointID, mode, durationSeconds)
		}
	})

	cycles.AddTransitionObserver(func(cycleID string, from, to cycle.State) {
		if influxClient != nil {
			influxClient.WriteCycleTransition(cycleID, string(from), string(to))
		}
		if mqttClient != nil {
			payload, err := json.Marshal(map[string]any{
				"state": string(to),
				"from":  string(from),
			})
			if err != nil {
				return
			}
			if pubErr := mqttClient.Publish(topics.CycleState(cycleID), payload, qos, true); pubErr != nil {
				log.Warn("failed to publish cycle state", "cycle_id", cycleID, "error", pubErr)
			}
		}
	})
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil when their subsystem is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
