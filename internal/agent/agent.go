// Package agent ties the poll loop together: read sensors, compensate,
// publish retained state, and route inbound commands.
package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"enviroagent/internal/calibration"
	"enviroagent/internal/config"
	"enviroagent/internal/hostinfo"
	"enviroagent/internal/mqtt"
	"enviroagent/internal/sensors"
	"enviroagent/internal/storage"
)

// AppName and Version identify the agent in discovery documents.
const (
	AppName = "enviroagent"
	Version = "0.1.0"
)

// Initial connect retry budget. Failure to establish the first
// connection is the only fatal error in the system.
const (
	connectAttempts = 5
	connectBackoff  = 5 * time.Second
)

const cpuSmoothingWeight = 0.2

const historyLimit = 100

// Notifier receives each tick's derived state. Implemented by the
// API's websocket hub; nil disables it.
type Notifier interface {
	Broadcast(v interface{})
}

// Agent is the poll loop and its collaborators.
type Agent struct {
	cfg      *config.Config
	topics   mqtt.Topics
	bus      *mqtt.Client
	pub      *mqtt.StatePublisher
	store    *calibration.Store
	source   sensors.Source
	router   *Router
	storage  storage.Storage
	notifier Notifier
	logger   *log.Logger

	smoother   *sensors.Smoother
	cpuSampler *hostinfo.CPUSampler
	discovery  []mqtt.Document
}

// Options collects the agent's collaborators.
type Options struct {
	Config   *config.Config
	Topics   mqtt.Topics
	Bus      *mqtt.Client
	Store    *calibration.Store
	Source   sensors.Source
	Storage  storage.Storage // optional
	Notifier Notifier        // optional
	Logger   *log.Logger
}

// New creates an Agent. The MQTT on-connect hook is registered here so
// every (re)connect republishes discovery and retained state.
func New(opts Options) *Agent {
	pub := mqtt.NewStatePublisher(opts.Bus, opts.Topics, opts.Logger)

	a := &Agent{
		cfg:        opts.Config,
		topics:     opts.Topics,
		bus:        opts.Bus,
		pub:        pub,
		store:      opts.Store,
		source:     opts.Source,
		storage:    opts.Storage,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		smoother:   sensors.NewSmoother(cpuSmoothingWeight),
		cpuSampler: hostinfo.NewCPUSampler(),
		discovery:  mqtt.BuildDiscoveryDocuments(opts.Topics, opts.Config.DiscoveryPrefix(), AppName+" "+Version),
	}

	a.router = NewRouter(opts.Topics, opts.Store, pub, ExecRunner{}, opts.Storage, opts.Logger)
	a.bus.SetOnConnect(a.onConnect)

	return a
}

// Run connects to the broker and drives the tick loop until ctx is
// cancelled. Only the initial connection failure is fatal.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.connectWithRetry(ctx); err != nil {
		return err
	}

	a.publishStaticAttributes()

	interval := a.cfg.PollInterval()
	a.logf("[agent] Polling every %v as %s", interval, a.topics.Root)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First tick immediately so retained state exists before the
	// first interval elapses.
	a.tick()

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case <-ticker.C:
			a.tick()
		}
	}
}

// connectWithRetry attempts the initial broker connection with a
// bounded retry budget.
func (a *Agent) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err := a.bus.Connect(); err != nil {
			lastErr = err
			a.logf("[agent] Connect attempt %d/%d failed: %v", attempt, connectAttempts, err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(connectBackoff):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to connect to broker after %d attempts: %w", connectAttempts, lastErr)
}

// onConnect runs on every (re)connect: availability, discovery,
// retained calibration, and subscriptions. Everything here is
// idempotent so a reconnect mid-outage fully resynchronizes consumers.
func (a *Agent) onConnect() {
	if err := a.pub.PublishOnline(); err != nil {
		a.logf("[agent] Failed to publish online: %v", err)
	}

	mqtt.PublishDiscovery(a.bus, a.discovery, a.logger)
	a.pub.PublishCalibration(a.store.Snapshot())

	if err := a.bus.Subscribe(a.topics.Command, 1, a.router.HandleMessage); err != nil {
		a.logf("[agent] %v", err)
	}
	if err := a.bus.Subscribe(a.topics.SetWildcard, 1, a.router.HandleMessage); err != nil {
		a.logf("[agent] %v", err)
	}
}

// publishStaticAttributes publishes the once-per-boot device block.
func (a *Agent) publishStaticAttributes() {
	if err := a.pub.PublishDeviceAttributes(hostinfo.Model(), hostinfo.Serial()); err != nil {
		a.logf("[agent] Failed to publish device attributes: %v", err)
	}
}

// tick performs one poll cycle. A failed sensor read never terminates
// the loop: host metrics still publish and the previously retained
// sensor values stand.
func (a *Agent) tick() {
	reading, err := a.source.Read()
	sensorsOK := err == nil
	if err != nil {
		a.logf("[agent] Sensor read failed: %v", err)
	}

	host := gatherHostSnapshot(a.cpuSampler)

	cpuSmoothed := a.smoother.Value()
	if host.cpuTempOK {
		cpuSmoothed = a.smoother.Add(host.cpuTempC)
	}

	state := buildDerivedState(reading, sensorsOK, a.store.Snapshot(), cpuSmoothed, host, time.Now())

	for _, mv := range state.MetricValues() {
		if !mv.Publish {
			continue
		}
		a.pub.PublishValue(mv.Key, mv.Value)
	}

	if a.storage != nil {
		if err := a.storage.SetStateJSON(state); err != nil {
			a.logf("[agent] Failed to cache state: %v", err)
		}
	}

	if a.notifier != nil {
		a.notifier.Broadcast(state)
	}
}

// shutdown publishes offline (bounded wait) and disconnects.
func (a *Agent) shutdown() {
	a.logf("[agent] Shutting down")
	a.pub.PublishOffline()
	a.bus.Disconnect()
}

func (a *Agent) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
