package sensor

import (
	"time"

	"github.com/pkg/errors"
)

// Reading is a single validated measurement taken from one advertisement.
// It is never mutated after construction; the next valid reading supersedes it.
type Reading struct {
	// units: ppm
	CO2 int

	// units: degrees Celsius
	Temperature float64

	// units: % relative humidity
	Humidity int

	// units: %, clamped to [0,100] by the decoder
	Battery int

	// units: dBm
	RSSI int

	Timestamp time.Time
}

// Plausibility ranges for a constructed Reading. Values outside these are
// decode failures, not readings.
const (
	MinCO2         = 300
	MaxCO2         = 6000
	MinTemperature = -20.0
	MaxTemperature = 60.0
	MinHumidity    = 0
	MaxHumidity    = 100
)

// Validate reports whether the measured values are physically plausible.
func (r Reading) Validate() error {
	if r.CO2 < MinCO2 || r.CO2 > MaxCO2 {
		return errors.Errorf("co2 out of range: %d ppm", r.CO2)
	}
	if r.Humidity < MinHumidity || r.Humidity > MaxHumidity {
		return errors.Errorf("humidity out of range: %d%%", r.Humidity)
	}
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return errors.Errorf("temperature out of range: %.1fC", r.Temperature)
	}
	return nil
}

// Advertisement is a transport-neutral view of one received BLE advertisement.
// The BLE layer fills in whatever payloads the packet carried; all fields
// except RSSI are optional.
type Advertisement struct {
	ManufacturerData []byte
	ServiceData      map[string][]byte
	Services         []string
	LocalName        string
	RSSI             int
}

// Match is the classifier's routing decision for one advertisement.
type Match int

const (
	// MatchNone - not from the target device family, drop silently.
	MatchNone Match = iota
	// MatchManufacturer - decode the manufacturer-data payload.
	MatchManufacturer
	// MatchService - decode the service-data payload.
	MatchService
	// MatchNameOnly - looks related (name or advertised service list) but
	// carries nothing decodable; diagnostic visibility only.
	MatchNameOnly
)

func (m Match) String() string {
	switch m {
	case MatchManufacturer:
		return "manufacturer-data"
	case MatchService:
		return "service-data"
	case MatchNameOnly:
		return "name-only"
	default:
		return "none"
	}
}

// Protocol classifies advertisements of one device family and decodes the
// payloads it routed. Implementations hold immutable configuration only, so a
// single instance is safe to share across goroutines.
type Protocol interface {
	Classify(adv Advertisement) Match
	Decode(m Match, adv Advertisement) (Reading, error)
}

// EventKind discriminates the entries of the outbound event stream.
type EventKind int

const (
	// EventAlert - CO2 crossed the alert threshold; fired once per excursion.
	EventAlert EventKind = iota
	// EventStatus - the connection status changed.
	EventStatus
	// EventStale - no valid reading arrived within the staleness timeout.
	EventStale
)

// Event is one entry of the outbound stream consumed by the presentation
// layer. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// EventAlert
	CO2 int

	// EventStatus
	Status Status
	Reason string

	// EventStale
	Elapsed time.Duration
}

// Snapshot is the pull-accessible current state of a Monitor.
type Snapshot struct {
	Status      Status
	Reading     *Reading
	LastUpdated *time.Time

	// Message is a user-visible advisory (stale data, adapter unavailable);
	// empty when everything is healthy.
	Message string
}
