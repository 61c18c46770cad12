package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devsel/internal/api"
	"github.com/nerrad567/devsel/internal/catalogfile"
	"github.com/nerrad567/devsel/internal/device"
	"github.com/nerrad567/devsel/internal/history"
	"github.com/nerrad567/devsel/internal/infrastructure/influxdb"
	"github.com/nerrad567/devsel/internal/infrastructure/mqtt"
	"github.com/nerrad567/devsel/internal/sweeper"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Detect continuously and serve results over HTTP, WebSocket and MQTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// serve wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse order of construction.
func (a *app) serve(ctx context.Context) error { //nolint:gocognit // Linear startup sequence
	log := a.log
	cfg := a.cfg
	log.Info("starting devsel", "version", version, "commit", commit, "build_date", date)

	catalog, err := a.loadCatalog()
	if err != nil {
		return err
	}
	detector := device.NewDetector(catalog, a.sessionFactory(), device.WithLogger(log.With("component", "detector")))
	checks := make(map[string]api.HealthChecker)

	var (
		store  history.Repository
		pruner sweeper.Pruner
	)
	if cfg.Database.Enabled {
		db, err := a.openDatabase(ctx)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", cfg.Database.Path)

		s := history.NewStore(db.DB, log.With("component", "history"))
		detector.AddObserver(s)
		store, pruner = s, s
		checks["database"] = db
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttLog := log.With("component", "mqtt")
		mqttClient, err = mqtt.Connect(cfg.MQTT, mqttLog)
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

		detector.AddObserver(mqtt.NewSweepPublisher(mqttClient, mqttClient.Topics(), mqttLog))
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		detector.AddObserver(influxdb.NewSweepRecorder(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	sw := sweeper.New(sweeper.Config{
		Detector:  detector,
		Interval:  cfg.Detection.Interval,
		Pruner:    pruner,
		Retention: cfg.Detection.HistoryRetention,
		Logger:    log.With("component", "sweeper"),
	})

	if mqttClient != nil {
		if err := mqttClient.SubscribeDetect(sw.Trigger); err != nil {
			return fmt.Errorf("subscribing to detect commands: %w", err)
		}
	}

	if cfg.Catalog.Watch {
		w, err := catalogfile.NewWatcher(cfg.Catalog.Path, func(src device.Source) {
			detector.Do(func(c *device.Catalog) { c.Load(src) })
			log.Info("catalog reloaded", "path", cfg.Catalog.Path)
			sw.Trigger()
		},
			catalogfile.WithDebounce(cfg.Catalog.Debounce),
			catalogfile.WithLogger(log.With("component", "catalog")),
		)
		if err != nil {
			return fmt.Errorf("watching catalog: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watching catalog: %w", err)
		}
		defer func() {
			if stopErr := w.Stop(); stopErr != nil {
				log.Error("error stopping catalog watcher", "error", stopErr)
			}
		}()
	}

	if cfg.API.Enabled {
		apiLog := log.With("component", "api")
		hub := api.NewHub(cfg.WebSocket, apiLog)
		detector.AddObserver(hub)

		srv, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   apiLog,
			Detector: detector,
			History:  store,
			Hub:      hub,
			Checks:   checks,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	sw.Start(ctx)
	defer sw.Stop()

	var devices int
	detector.Do(func(c *device.Catalog) { devices = c.Len() })
	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", devices,
		"interval", cfg.Detection.Interval,
	)
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}
