// webCamCtrl - PTZ camera control service
//
// This is the main entry point for the camera control service. It drives a
// PTZ camera over its RS232 protocol, either through a serial-to-network
// bridge or a local serial port, and exposes the camera through:
//   - the legacy /camctrl browser endpoint and a JSON/WebSocket API
//   - MQTT command, acknowledgement, response and health topics
//   - InfluxDB telemetry for responses, link counters and control events
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/norris81b/webCamCtrl/internal/api"
	"github.com/norris81b/webCamCtrl/internal/bridges/rs232"
	"github.com/norris81b/webCamCtrl/internal/control"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/config"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/database"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/influxdb"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/logging"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/mqtt"
	"github.com/norris81b/webCamCtrl/internal/preset"
	"github.com/norris81b/webCamCtrl/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when WCC_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	// linkSampleInterval is how often link counters are written to InfluxDB.
	linkSampleInterval = 30 * time.Second
)

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
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting webcamctrl",
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

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing useful to do on exit
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"output", cfg.Logging.Output,
	)

	// Database and preset labels
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	presets, err := openPresets(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	// InfluxDB (optional)
	influxClient, err := connectInflux(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// MQTT (optional)
	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	// Camera protocol engine
	catalog, err := loadCatalog(cfg, log)
	if err != nil {
		return err
	}
	processor := rs232.NewProcessor(catalog, processorConfig(cfg))
	processor.SetLogger(log.Component("rs232"))
	defer func() {
		log.Info("closing camera link")
		if closeErr := processor.Close(); closeErr != nil {
			log.Error("error closing camera link", "error", closeErr)
		}
	}()

	scanner := preset.NewScanner(processor, preset.ScanConfig{
		Interval:  cfg.Scan.Interval(),
		MaxPreset: cfg.Scan.MaxPreset,
		Command:   cfg.Scan.Command,
	})
	scanner.SetLogger(log.Component("scanner"))
	defer scanner.Close()

	var bridge *rs232.Bridge
	if mqttClient != nil {
		bridge, err = rs232.NewBridge(rs232.BridgeOptions{
			MQTTClient: mqtt.NewBridgeClient(mqttClient),
			Processor:  processor,
			Stats:      processor,
			Version:    version,
			Address:    cfg.Camera.Link.Address(),
			Logger:     log.Component("bridge"),
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
	}

	// The API server is built before the controller so control events can
	// be broadcast; it starts listening once the camera link is up.
	events := &eventFanout{influx: influxClient, mqtt: mqttClient, log: log}
	ctrl, err := control.NewController(control.Options{
		Sender:       processor,
		Presets:      presets,
		Scanner:      scanner,
		MoveCommand:  rs232.CmdPresetMove,
		StoreCommand: rs232.CmdPresetStore,
		OnEvent:      events.handle,
		Logger:       log.Component("control"),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	checks := map[string]api.HealthChecker{"database": db}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Camera:  processor,
		Control: ctrl,
		Scanner: scanner,
		Checks:  checks,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	events.api = apiServer

	listeners := []rs232.ResponseListener{apiServer.BroadcastResponse}
	if bridge != nil {
		listeners = append(listeners, bridge.HandleResponse)
	}
	if influxClient != nil {
		listeners = append(listeners, func(resp rs232.Response) {
			influxClient.WriteResponse(resp.Command, resp.Outcome.String(), resp.Status, resp.Latency)
		})
	}
	processor.SetListener(rs232.MultiListener(listeners...))

	address, port := linkTarget(cfg.Camera.Link)
	log.Info("opening camera link", "type", cfg.Camera.Link.Type, "address", cfg.Camera.Link.Address())
	if initErr := processor.Initialize(ctx, address, port); initErr != nil {
		if errors.Is(initErr, context.Canceled) {
			return nil
		}
		return fmt.Errorf("initialising camera link: %w", initErr)
	}
	log.Info("camera link ready", "commands", catalog.Len())

	if bridge != nil {
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer bridge.Stop()
	}

	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	if influxClient != nil {
		g.Go(func() error {
			sampleLink(gctx, processor, influxClient, linkSampleInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	// Deferred Close() calls run in reverse order: API, bridge, scanner,
	// camera link, MQTT, InfluxDB, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses WCC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WCC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openPresets seeds the label table and applies a legacy presets.json
// import when configured. A failed import is logged, not fatal.
func openPresets(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*preset.SQLiteRepository, error) {
	repo := preset.NewSQLiteRepository(db.DB, cfg.Presets.Count)
	if err := repo.Seed(ctx); err != nil {
		return nil, fmt.Errorf("seeding presets: %w", err)
	}

	if path := cfg.Presets.ImportFile; path != "" {
		n, err := repo.ImportFile(ctx, path)
		if err != nil {
			log.Warn("preset import failed", "path", path, "error", err)
		} else {
			log.Info("presets imported", "path", path, "updated", n)
		}
	}
	return repo, nil
}

func connectInflux(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// connectMQTT connects with the bridge's offline health message as the
// last will, so subscribers see the service drop.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}

	lwt, err := json.Marshal(rs232.NewLWTMessage())
	if err != nil {
		return nil, fmt.Errorf("encoding MQTT last will: %w", err)
	}

	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{Topic: rs232.HealthTopic(), Payload: lwt})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

func loadCatalog(cfg *config.Config, log *logging.Logger) (*rs232.Catalog, error) {
	split := rs232.HexSplitLegacy
	if cfg.Catalog.StrictHexSplit {
		split = rs232.HexSplitStrict
	}
	loader := rs232.NewLoader(rs232.LoaderOptions{
		Split:  split,
		Logger: log.Component("catalog"),
	})

	catalog, err := loader.Load(cfg.Catalog.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading command catalog: %w", err)
	}
	log.Info("command catalog loaded", "dir", cfg.Catalog.Dir, "commands", catalog.Len())
	return catalog, nil
}

func processorConfig(cfg *config.Config) rs232.ProcessorConfig {
	link := cfg.Camera.Link

	var dialer rs232.Dialer = rs232.TCPDialer{Timeout: seconds(link.ConnectTimeout)}
	if link.Type == config.LinkSerial {
		dialer = rs232.SerialDialer{BaudRate: link.BaudRate}
	}

	q := cfg.Queue
	return rs232.ProcessorConfig{
		Dialer: dialer,
		Queue: rs232.QueueConfig{
			MinCommandDelay:  q.MinCommandDelay(),
			PostResponseWait: q.PostResponseWait(),
			AckTimeout:       q.AckTimeout(),
			NackBackoff:      q.NackBackoff(),
			NackCode:         byte(q.NackCode), // #nosec G115 -- validated to fit one byte
			Retry:            rs232.RetryPolicy{MaxAttempts: q.Retry.MaxAttempts},
		},
		HandshakeCommand:     cfg.Camera.HandshakeCommand,
		SettleDelay:          cfg.Camera.SettleDelay(),
		WriteTimeout:         seconds(link.WriteTimeout),
		ReconnectInterval:    seconds(link.ReconnectInterval),
		MaxReconnectInterval: seconds(link.MaxReconnectInterval),
	}
}

// linkTarget returns the Initialize arguments for the configured link.
func linkTarget(link config.LinkConfig) (address string, port int) {
	if link.Type == config.LinkSerial {
		return link.SerialDevice, 0
	}
	return link.Host, link.Port
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
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

// sampleLink writes the processor counters to InfluxDB until ctx ends.
func sampleLink(ctx context.Context, src rs232.StatsSource, sink *influxdb.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink.WriteLinkSample(linkSample(src.Stats()))
		}
	}
}

func linkSample(st rs232.ProcessorStats) influxdb.LinkSample {
	return influxdb.LinkSample{
		Connected:    st.Connected,
		Pending:      st.Pending,
		CommandsTx:   st.CommandsTx,
		ResponsesRx:  st.ResponsesRx,
		Successes:    st.Successes,
		Nacks:        st.Nacks,
		Timeouts:     st.Timeouts,
		Passthroughs: st.Passthroughs,
		Reconnects:   st.ReconnectsTotal,
		Errors:       st.ErrorsTotal,
	}
}

// eventFanout delivers control events to the WebSocket stream, InfluxDB and,
// for scan toggles, the retained MQTT scan state. Any sink may be nil.
type eventFanout struct {
	api    *api.Server
	influx *influxdb.Client
	mqtt   *mqtt.Client
	log    *logging.Logger
}

// scanState is the retained document on webcamctrl/system/scan.
type scanState struct {
	Running   bool      `json:"running"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *eventFanout) handle(kind string, fields map[string]any) {
	if e.api != nil {
		e.api.BroadcastEvent(kind, fields)
	}
	if e.influx != nil {
		e.influx.WriteEvent(kind, fields)
	}
	if e.mqtt == nil {
		return
	}

	var running bool
	switch kind {
	case control.EventScanStarted:
		running = true
	case control.EventScanStopped:
	default:
		return
	}
	state := scanState{Running: running, Timestamp: time.Now().UTC()}
	// Publish waits for the broker; OnEvent callers must not block.
	go func() {
		if err := e.mqtt.PublishJSON(mqtt.Topics{}.ScanState(), state, true); err != nil {
			e.log.Warn("failed to publish scan state", "error", err)
		}
	}()
}
