package sensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"co2mon/sensor"
)

func TestAlertEngineOnePerExcursion(t *testing.T) {
	e := sensor.NewAlertEngine(1200)

	var fired []int
	for _, co2 := range []int{900, 1300, 1350, 1100, 1250} {
		if e.Observe(co2) {
			fired = append(fired, co2)
		}
	}

	// one alert entering each excursion, never a duplicate inside one
	assert.Equal(t, []int{1300, 1250}, fired)
}

func TestAlertEngineFiresAtThreshold(t *testing.T) {
	e := sensor.NewAlertEngine(1200)

	assert.True(t, e.Observe(1200))
	assert.False(t, e.Observe(1200))
}

func TestAlertEngineStartsArmed(t *testing.T) {
	e := sensor.NewAlertEngine(1000)

	assert.True(t, e.Observe(5000))
}

func TestAlertEngineLongExcursion(t *testing.T) {
	e := sensor.NewAlertEngine(1200)

	assert.True(t, e.Observe(1400))
	for i := 0; i < 50; i++ {
		assert.False(t, e.Observe(1400+i))
	}
	assert.False(t, e.Observe(1199))
	assert.True(t, e.Observe(1201))
}

func TestAlertEngineDefaultThreshold(t *testing.T) {
	e := sensor.NewAlertEngine(0)

	assert.Equal(t, sensor.DefaultCO2Threshold, e.Threshold())
	assert.False(t, e.Observe(1199))
	assert.True(t, e.Observe(1200))
}
