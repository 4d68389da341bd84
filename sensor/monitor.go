package sensor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// eventBuffer bounds the outbound stream; a slow consumer loses events
// rather than stalling the transport callback.
const eventBuffer = 16

// Monitor is the pipeline driven by the BLE transport: classify, decode,
// store, alert. One instance models one sensor stream. All entry points are
// safe to call concurrently; each completes in bounded time and performs no
// I/O beyond the non-blocking event send.
type Monitor struct {
	proto  Protocol
	store  *Store
	engine *AlertEngine
	log    *logrus.Logger
	now    func() time.Time

	mu      sync.Mutex
	tracker statusTracker
	message string

	events chan Event
}

// MonitorOptions configures a Monitor. Zero values fall back to defaults.
type MonitorOptions struct {
	CO2Threshold int
	StaleTimeout time.Duration
	Logger       *logrus.Logger

	// Now is the clock used to stamp readings; tests inject a fake one.
	Now func() time.Time
}

func NewMonitor(proto Protocol, opts MonitorOptions) *Monitor {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		proto:  proto,
		store:  NewStore(opts.StaleTimeout),
		engine: NewAlertEngine(opts.CO2Threshold),
		log:    opts.Logger,
		now:    opts.Now,
		events: make(chan Event, eventBuffer),
	}
}

// Events returns the outbound stream of alert, status and staleness events.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// HandleAdvertisement processes one advertisement end to end. It returns the
// routing decision and the decode error, if any, for diagnostic counting;
// misses and rejections are otherwise absorbed silently, the device
// rebroadcasts continuously and a bad frame self-heals.
func (m *Monitor) HandleAdvertisement(adv Advertisement) (Match, error) {
	match := m.proto.Classify(adv)
	switch match {
	case MatchNone:
		return match, nil
	case MatchNameOnly:
		m.log.WithFields(logrus.Fields{
			"name": adv.LocalName,
			"rssi": adv.RSSI,
		}).Debug("related device seen, nothing decodable")
		return match, nil
	}

	reading, err := m.proto.Decode(match, adv)
	if err != nil {
		m.log.WithField("route", match.String()).Debugf("frame rejected: %s", err)
		return match, err
	}
	reading.Timestamp = m.now()
	m.store.Put(reading)

	m.mu.Lock()
	m.message = ""
	fire := m.engine.Observe(reading.CO2)
	changed := m.tracker.decoded()
	status := m.tracker.status
	m.mu.Unlock()

	if changed {
		m.emit(Event{Kind: EventStatus, Status: status})
	}
	if fire {
		m.log.WithField("co2", reading.CO2).Warn("co2 above alert threshold")
		m.emit(Event{Kind: EventAlert, CO2: reading.CO2})
	}
	return match, nil
}

// ScanStarted is signalled by the transport when a scan session begins.
func (m *Monitor) ScanStarted() {
	m.mu.Lock()
	changed := m.tracker.scanStarted()
	status := m.tracker.status
	m.mu.Unlock()
	if changed {
		m.emit(Event{Kind: EventStatus, Status: status})
	}
}

// ScanStopped is signalled by the transport when the scan session ends.
func (m *Monitor) ScanStopped() {
	m.mu.Lock()
	changed := m.tracker.scanStopped()
	status := m.tracker.status
	m.mu.Unlock()
	if changed {
		m.emit(Event{Kind: EventStatus, Status: status})
	}
}

// Unavailable is signalled by the transport when the adapter cannot scan
// (powered off, unauthorized, unsupported). The reason is surfaced to the
// user; recovery is the transport's job.
func (m *Monitor) Unavailable(reason string) {
	m.mu.Lock()
	changed := m.tracker.unavailable(reason)
	status := m.tracker.status
	m.message = reason
	m.mu.Unlock()
	if changed {
		m.emit(Event{Kind: EventStatus, Status: status, Reason: reason})
	}
}

// CheckStale is the periodic timer's entry point. Safe to call concurrently
// with frame processing.
func (m *Monitor) CheckStale() {
	elapsed, stale := m.store.CheckStale(m.now())
	if !stale {
		return
	}
	msg := fmt.Sprintf("no reading for %s", elapsed.Round(time.Second))
	m.mu.Lock()
	m.message = msg
	m.mu.Unlock()
	m.log.WithField("elapsed", elapsed).Warn("sensor data is stale")
	m.emit(Event{Kind: EventStale, Elapsed: elapsed, Reason: msg})
}

// Snapshot returns the current pull-accessible state.
func (m *Monitor) Snapshot() Snapshot {
	var snap Snapshot
	if r, updated, ok := m.store.Current(); ok {
		snap.Reading = &r
		snap.LastUpdated = &updated
	}
	m.mu.Lock()
	snap.Status = m.tracker.status
	snap.Message = m.message
	m.mu.Unlock()
	return snap
}

func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.WithField("kind", ev.Kind).Debug("event dropped, consumer too slow")
	}
}
