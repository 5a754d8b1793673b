package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"enviroagent/internal/agent"
	"enviroagent/internal/api"
	"enviroagent/internal/calibration"
	"enviroagent/internal/config"
	"enviroagent/internal/hostinfo"
	"enviroagent/internal/mqtt"
	"enviroagent/internal/sensors"
	"enviroagent/internal/storage"
)

const defaultConfigPath = "/etc/default/enviroagent"

func main() {
	// .env is a development convenience; the real config file is the
	// one passed via -config.
	godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the agent env file")
	simulate := flag.Bool("simulate", false, "Use simulated sensor readings")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	logger.Printf("[main] %s starting (v%s)", agent.AppName, agent.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("[main] %v", err)
	}

	deviceID := hostinfo.DeviceID()
	topics := mqtt.TopicsFor(deviceID)
	logger.Printf("[main] Topic root: %s", deviceID)
	logger.Printf("[main] Discovery prefix: %s", cfg.DiscoveryPrefix())

	calib := calibration.NewStore(calibration.Params{
		TempOffsetC:   cfg.TempOffset(),
		HumOffsetPct:  cfg.HumOffset(),
		CPUTempFactor: cfg.CPUTempFactor(),
	}, cfg, logger)

	source := selectSource(cfg.Simulate() || *simulate, logger)

	bus, err := mqtt.New(mqtt.Config{
		Broker:      cfg.MQTTBroker(),
		ClientID:    deviceID,
		Username:    cfg.MQTTUsername(),
		Password:    cfg.MQTTPassword(),
		UseTLS:      cfg.MQTTUseTLS(),
		WillTopic:   topics.Availability,
		WillPayload: mqtt.PayloadOffline,
	}, logger)
	if err != nil {
		logger.Fatalf("[main] %v", err)
	}

	var dataStore storage.Storage
	if cfg.DataPath() != "" {
		bolt, err := storage.NewBoltStorage(cfg.DataPath())
		if err != nil {
			logger.Printf("[main] Storage disabled: %v", err)
		} else {
			dataStore = bolt
			defer bolt.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier agent.Notifier
	if cfg.APIAddr() != "" {
		server := api.NewServer(dataStore, calib, bus, deviceID, agent.Version, logger)
		notifier = server.Hub()
		go serveAPI(ctx, cfg.APIAddr(), server, logger)
	}

	a := agent.New(agent.Options{
		Config:   cfg,
		Topics:   topics,
		Bus:      bus,
		Store:    calib,
		Source:   source,
		Storage:  dataStore,
		Notifier: notifier,
		Logger:   logger,
	})

	if err := a.Run(ctx); err != nil {
		logger.Fatalf("[main] %v", err)
	}

	logger.Printf("[main] Stopped")
}

// selectSource picks the hardware source, falling back to simulation
// only when explicitly requested.
func selectSource(simulate bool, logger *log.Logger) sensors.Source {
	if simulate {
		logger.Printf("[main] Using simulated sensor source")
		return sensors.NewSimulatedSource()
	}

	source, err := sensors.NewEnviroSource("", logger)
	if err != nil {
		logger.Fatalf("[main] %v (use -simulate for hosts without the HAT)", err)
	}
	return source
}

// serveAPI runs the diagnostics API until ctx is cancelled.
func serveAPI(ctx context.Context, addr string, server *api.Server, logger *log.Logger) {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		server.Hub().Close()
	}()

	logger.Printf("[api] Listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("[api] Server failed: %v", err)
	}
}
