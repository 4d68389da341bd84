package sensor

// Status denotes the connection state towards the sensor.
type Status int

const (
	// StatusIdle - no scan active.
	StatusIdle Status = iota

	// StatusScanning - a scan was requested, no valid decode yet.
	StatusScanning

	// StatusReceiving - at least one valid decode happened this scan session.
	StatusReceiving
)

func (s Status) String() string {
	switch s {
	case StatusScanning:
		return "scanning"
	case StatusReceiving:
		return "receiving"
	default:
		return "idle"
	}
}

// statusTracker applies the scan-lifecycle and decode-outcome transitions.
// Decode failures never transition: foreign advertisements sharing the
// spectrum are expected noise. Not safe for concurrent use on its own; the
// Monitor serializes access.
type statusTracker struct {
	status Status
	reason string
}

// scanStarted reports whether the status changed.
func (t *statusTracker) scanStarted() bool {
	if t.status == StatusScanning {
		return false
	}
	t.status = StatusScanning
	t.reason = ""
	return true
}

func (t *statusTracker) scanStopped() bool {
	if t.status == StatusIdle {
		return false
	}
	t.status = StatusIdle
	t.reason = ""
	return true
}

// unavailable records a transport failure (powered off, unauthorized,
// unsupported) together with its diagnostic reason.
func (t *statusTracker) unavailable(reason string) bool {
	changed := t.status != StatusIdle || t.reason != reason
	t.status = StatusIdle
	t.reason = reason
	return changed
}

// decoded marks a successful decode. Only promotes within a scan session;
// a decode observed while idle leaves the tracker alone.
func (t *statusTracker) decoded() bool {
	if t.status != StatusScanning {
		return false
	}
	t.status = StatusReceiving
	return true
}
