package sensor

// DefaultCO2Threshold is the CO2 level above which an alert fires.
const DefaultCO2Threshold = 1200

// AlertEngine fires at most one alert per excursion above the threshold.
// Two states: armed and alerted. A reading at or above the threshold while
// armed fires and latches; readings below the threshold re-arm. Not safe for
// concurrent use on its own; the Monitor serializes access.
type AlertEngine struct {
	threshold int
	alerted   bool
}

func NewAlertEngine(threshold int) *AlertEngine {
	if threshold <= 0 {
		threshold = DefaultCO2Threshold
	}
	return &AlertEngine{threshold: threshold}
}

func (e *AlertEngine) Threshold() int {
	return e.threshold
}

// Observe feeds one CO2 value to the engine and reports whether an alert
// should fire for it.
func (e *AlertEngine) Observe(co2 int) bool {
	if co2 < e.threshold {
		e.alerted = false
		return false
	}
	if e.alerted {
		return false
	}
	e.alerted = true
	return true
}
