package switchbot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"co2mon/sensor"
	"co2mon/sensor/switchbot"
)

func TestClassifyRouting(t *testing.T) {
	p := switchbot.New(switchbot.DefaultIdentity())

	tests := []struct {
		name string
		adv  sensor.Advertisement
		want sensor.Match
	}{
		{
			name: "manufacturer data with company id prefix",
			adv:  sensor.Advertisement{ManufacturerData: []byte{0x69, 0x09, 0x00, 0x00}},
			want: sensor.MatchManufacturer,
		},
		{
			name: "manufacturer route outranks service data",
			adv: sensor.Advertisement{
				ManufacturerData: []byte{0x69, 0x09, 0x00, 0x00},
				ServiceData:      map[string][]byte{"fd3d": {0x35, 0x64}},
			},
			want: sensor.MatchManufacturer,
		},
		{
			name: "service data short form key",
			adv:  sensor.Advertisement{ServiceData: map[string][]byte{"fd3d": {0x35}}},
			want: sensor.MatchService,
		},
		{
			name: "service data uppercase key",
			adv:  sensor.Advertisement{ServiceData: map[string][]byte{"FD3D": {0x35}}},
			want: sensor.MatchService,
		},
		{
			name: "service data full sig form key",
			adv: sensor.Advertisement{
				ServiceData: map[string][]byte{"0000FD3D-0000-1000-8000-00805F9B34FB": {0x35}},
			},
			want: sensor.MatchService,
		},
		{
			name: "foreign manufacturer data falls through to service data",
			adv: sensor.Advertisement{
				ManufacturerData: []byte{0x4c, 0x00, 0x10, 0x05},
				ServiceData:      map[string][]byte{"fd3d": {0x35}},
			},
			want: sensor.MatchService,
		},
		{
			name: "name pattern hit is diagnostic only",
			adv:  sensor.Advertisement{LocalName: "MeterPro CO2 Sensor"},
			want: sensor.MatchNameOnly,
		},
		{
			name: "advertised service list hit is diagnostic only",
			adv:  sensor.Advertisement{Services: []string{"180f", "0000fd3d-0000-1000-8000-00805f9b34fb"}},
			want: sensor.MatchNameOnly,
		},
		{
			name: "truncated manufacturer data is not a prefix match",
			adv:  sensor.Advertisement{ManufacturerData: []byte{0x69}},
			want: sensor.MatchNone,
		},
		{
			name: "unrelated advertisement",
			adv: sensor.Advertisement{
				ManufacturerData: []byte{0x4c, 0x00, 0x10, 0x05},
				LocalName:        "Living Room TV",
				Services:         []string{"180a"},
			},
			want: sensor.MatchNone,
		},
		{
			name: "empty advertisement",
			adv:  sensor.Advertisement{},
			want: sensor.MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.adv))
		})
	}
}

// Independent classifier instances carry independent fixtures; there is no
// hidden package state to bleed between them.
func TestClassifyCustomIdentity(t *testing.T) {
	custom := switchbot.New(switchbot.Identity{
		CompanyID:    0x0334,
		ServiceUUID:  "181a",
		NamePatterns: []string{"wave"},
	})
	stock := switchbot.New(switchbot.DefaultIdentity())

	adv := sensor.Advertisement{ManufacturerData: []byte{0x34, 0x03, 0x01, 0x02}}
	assert.Equal(t, sensor.MatchManufacturer, custom.Classify(adv))
	assert.Equal(t, sensor.MatchNone, stock.Classify(adv))

	named := sensor.Advertisement{LocalName: "Wave Plus"}
	assert.Equal(t, sensor.MatchNameOnly, custom.Classify(named))
	assert.Equal(t, sensor.MatchNone, stock.Classify(named))
}
