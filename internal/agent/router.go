package agent

import (
	"log"
	"strconv"
	"strings"
	"time"

	"enviroagent/internal/calibration"
	"enviroagent/internal/mqtt"
	"enviroagent/internal/storage"
)

// commandPublisher is the slice of the state publisher the router
// needs; narrowed for testability.
type commandPublisher interface {
	PublishSetValue(field string, value float64) error
	PublishOffline() error
}

// Router maps inbound (topic, payload) pairs to calibration updates or
// host-level actions. Unrecognized or malformed messages are logged
// and dropped; nothing here may panic or propagate an error into the
// transport's delivery goroutine.
type Router struct {
	topics  mqtt.Topics
	store   *calibration.Store
	pub     commandPublisher
	runner  ActionRunner
	history storage.Storage
	logger  *log.Logger
}

// NewRouter creates a Router. history may be nil to disable the audit
// trail.
func NewRouter(topics mqtt.Topics, store *calibration.Store, pub commandPublisher, runner ActionRunner, history storage.Storage, logger *log.Logger) *Router {
	return &Router{
		topics:  topics,
		store:   store,
		pub:     pub,
		runner:  runner,
		history: history,
		logger:  logger,
	}
}

// HandleMessage routes one inbound message. Invoked from the MQTT
// delivery goroutine.
func (r *Router) HandleMessage(topic string, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logf("[router] Panic handling %s: %v", topic, rec)
		}
	}()

	body := strings.TrimSpace(string(payload))

	switch {
	case topic == r.topics.Command:
		r.handleCommand(body)
	case strings.HasPrefix(topic, r.topics.Root+"/set/"):
		key := topic[strings.LastIndex(topic, "/")+1:]
		r.handleSet(key, body)
	default:
		r.logf("[router] Ignoring message on unexpected topic %s", topic)
	}
}

// handleCommand runs a host-level action. The availability flag goes
// offline first, best-effort: once the action takes effect there is no
// chance to say goodbye.
func (r *Router) handleCommand(command string) {
	action, ok := hostActions[command]
	if !ok {
		r.logf("[router] Unknown command %q, dropping", command)
		return
	}

	r.logf("[router] Command: %s", command)
	r.pub.PublishOffline()
	r.recordCommand(command)

	if err := r.runner.Start(action[0], action[1:]...); err != nil {
		// Never retried: retrying a shutdown is unsafe
		r.logf("[router] Failed to launch %q: %v", command, err)
	}
}

// handleSet applies a calibration update and echoes the applied value
// retained. The echo lands on the same set topic we are subscribed
// to; the unchanged-value check below stops that loop after one
// harmless round trip.
func (r *Router) handleSet(key, body string) {
	if !calibration.IsField(key) {
		r.logf("[router] Unknown calibration field %q, dropping", key)
		return
	}

	value, err := strconv.ParseFloat(body, 64)
	if err != nil {
		r.logf("[router] Malformed payload %q for %s, dropping", body, key)
		return
	}

	if currentValue(r.store.Snapshot(), key) == value {
		return
	}

	applied, err := r.store.Update(key, value)
	if err != nil {
		r.logf("[router] Rejected %s=%v: %v", key, value, err)
		return
	}

	r.pub.PublishSetValue(key, currentValue(applied, key))
}

func (r *Router) recordCommand(command string) {
	if r.history == nil {
		return
	}
	if err := r.history.SaveCommand(command, time.Now().UTC()); err != nil {
		r.logf("[router] Failed to record command history: %v", err)
	}
	if err := r.history.TrimCommandHistory(historyLimit); err != nil {
		r.logf("[router] Failed to trim command history: %v", err)
	}
}

func currentValue(p calibration.Params, field string) float64 {
	switch field {
	case calibration.FieldTempOffset:
		return p.TempOffsetC
	case calibration.FieldHumOffset:
		return p.HumOffsetPct
	case calibration.FieldCPUTempFactor:
		return p.CPUTempFactor
	}
	return 0
}

func (r *Router) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
