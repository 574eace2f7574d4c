// BioStream Core - Sensor Recording Orchestrator
//
// This is the main entry point for the BioStream Core application.
// BioStream Core manages wearable sensor devices end to end:
//   - Device discovery, connection lifecycle, and capability negotiation
//   - Per-stream supervision with bounded retry
//   - Recording sessions fanned out to file, SQLite, MQTT, and InfluxDB sinks
//   - REST + WebSocket control surface for operator frontends
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/biostream-core/migrations"

	"github.com/nerrad567/biostream-core/internal/api"
	"github.com/nerrad567/biostream-core/internal/core"
	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/infrastructure/database"
	"github.com/nerrad567/biostream-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/biostream-core/internal/infrastructure/logging"
	"github.com/nerrad567/biostream-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/negotiate"
	"github.com/nerrad567/biostream-core/internal/recording"
	"github.com/nerrad567/biostream-core/internal/scan"
	"github.com/nerrad567/biostream-core/internal/sensor"
	"github.com/nerrad567/biostream-core/internal/sim"
	"github.com/nerrad567/biostream-core/internal/sink"
	"github.com/nerrad567/biostream-core/internal/stream"
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
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting BioStream Core",
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
	if applied, pending, statusErr := db.MigrationStatus(ctx); statusErr == nil {
		log.Info("database migrations complete",
			"applied", len(applied),
			"pending", len(pending),
		)
	} else {
		log.Info("database migrations complete")
	}

	// Connect to MQTT broker (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the sensor transport
	transport, transportCleanup, err := buildTransport(cfg, log)
	if err != nil {
		return fmt.Errorf("building transport: %w", err)
	}
	defer transportCleanup()

	// Operator-facing journal (surfaced via GET /api/v1/logs and the
	// WebSocket hub)
	journal := logbuf.New()
	defer journal.Close()

	// Device registry and recording components
	registry := device.NewRegistry()
	registry.SetLogger(log.With("component", "device"))

	negotiator := negotiate.New(transport, registry, journal, cfg.Recorder)
	negotiator.SetLogger(log.With("component", "negotiate"))

	scanner := scan.New(transport, registry, journal, cfg.Recorder)
	scanner.SetLogger(log.With("component", "scan"))
	defer scanner.StopPeriodic()

	streams := stream.New(transport, journal, cfg.Recorder)
	streams.SetLogger(log.With("component", "stream"))

	sinks := buildSinks(cfg, db, mqttClient, influxClient, log)

	session := recording.NewSession(registry, streams, journal, sinks, cfg.Recorder)
	session.SetLogger(log.With("component", "recording"))
	streams.SetIngestor(session)

	// Core orchestration service
	svc := core.New(transport, registry, negotiator, scanner, session, journal)
	svc.SetLogger(log.With("component", "core"))

	// API server with WebSocket hub wired to core state changes
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Core:    svc,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	svc.SetNotifier(server.Hub())

	// Remote recording control over MQTT
	if mqttClient != nil {
		if subErr := subscribeRecordingCommands(ctx, mqttClient, svc, log); subErr != nil {
			return fmt.Errorf("subscribing to recording commands: %w", subErr)
		}
		log.Info("listening for recording commands", "topic", mqtt.Topics{}.RecordingCommand())
	}

	// Start the event dispatcher
	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.Run(ctx)
	}()

	// Start the API server
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal or dispatcher exit. Run only returns
	// before cancellation when the transport event channel closes.
	dispatcherDone := false
	select {
	case <-ctx.Done():
	case dispatchErr := <-runErr:
		dispatcherDone = true
		if dispatchErr != nil && !errors.Is(dispatchErr, context.Canceled) {
			return fmt.Errorf("event dispatcher: %w", dispatchErr)
		}
		if ctx.Err() == nil {
			return fmt.Errorf("event dispatcher stopped unexpectedly")
		}
	}

	log.Info("shutdown signal received, cleaning up")

	// Stop any active recording so sinks flush and close cleanly before
	// the deferred infrastructure teardown runs.
	if running, name := svc.Recording(); running {
		log.Info("stopping active recording", "name", name)
		if stopErr := svc.StopRecording(); stopErr != nil && !errors.Is(stopErr, recording.ErrNotRunning) {
			log.Error("error stopping recording", "error", stopErr)
		}
	}

	// Wait for the dispatcher and its negotiation goroutines to drain
	if !dispatcherDone {
		<-runErr
	}

	log.Info("BioStream Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BIOSTREAM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BIOSTREAM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildTransport constructs the radio transport named by the
// configuration. The returned cleanup releases transport resources and
// is safe to call exactly once.
func buildTransport(cfg *config.Config, log *logging.Logger) (sensor.Transport, func(), error) {
	switch cfg.Transport.Kind {
	case "sim":
		transport, err := sim.New(cfg.Transport.Sim)
		if err != nil {
			return nil, nil, fmt.Errorf("creating sim transport: %w", err)
		}
		log.Info("sim transport ready", "devices", len(cfg.Transport.Sim.Devices))
		cleanup := func() {
			log.Info("closing sim transport")
			transport.Close()
		}
		return transport, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

// buildSinks constructs the recording sinks enabled in configuration.
// Disabled sinks are constructed anyway (they report themselves as
// pending) so the session can log a complete sink inventory at start.
func buildSinks(cfg *config.Config, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) []recording.Sink {
	sinks := []recording.Sink{
		sink.NewFile(cfg.Sinks.File),
		sink.NewSQLite(cfg.Sinks.SQLite, db),
	}

	// Config validation guarantees these clients exist when the matching
	// sink is enabled; guard anyway so a nil client never hides behind a
	// non-nil interface.
	if mqttClient != nil {
		sinks = append(sinks, sink.NewMQTT(cfg.Sinks.MQTT, mqttClient))
	}
	if influxClient != nil {
		sinks = append(sinks, sink.NewInflux(cfg.Sinks.Influx, influxClient))
	}

	for _, s := range sinks {
		log.Info("sink configured", "sink", s.Name(), "enabled", s.Enabled())
	}
	return sinks
}

// recordingCommand is the payload accepted on the recording command
// topic. Start requires a name and a device selection; stop ignores
// both.
type recordingCommand struct {
	Action    string              `json:"action"`
	Name      string              `json:"name"`
	Selection recording.Selection `json:"selection"`
}

// subscribeRecordingCommands wires remote start/stop of recordings over
// MQTT. Commands run against the daemon context, not the MQTT callback,
// so recordings started remotely outlive the handler.
func subscribeRecordingCommands(ctx context.Context, client *mqtt.Client, svc *core.Service, log *logging.Logger) error {
	topic := mqtt.Topics{}.RecordingCommand()
	return client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		var cmd recordingCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding recording command: %w", err)
		}

		switch cmd.Action {
		case "start":
			if err := svc.StartRecording(ctx, cmd.Name, cmd.Selection); err != nil {
				log.Warn("remote recording start rejected", "name", cmd.Name, "error", err)
				return nil
			}
			log.Info("recording started remotely", "name", cmd.Name)
		case "stop":
			if err := svc.StopRecording(); err != nil {
				log.Warn("remote recording stop rejected", "error", err)
				return nil
			}
			log.Info("recording stopped remotely")
		default:
			log.Warn("unknown recording command", "action", cmd.Action)
		}
		return nil
	})
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Check API server
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
