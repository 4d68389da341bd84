package switchbot

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"co2mon/sensor"
)

// Manufacturer-data layout of the CO2 meter, 0-indexed from the start of the
// buffer (company id included). Empirically reverse-engineered; the device
// is deployed, so the offsets are fixed.
const (
	mdMinLen      = 17
	mdBatteryOff  = 9  // percent
	mdTempFracOff = 10 // tenths of a degree
	mdTempIntOff  = 11 // +128 biased signed integer part
	mdHumidityOff = 12 // percent
	mdCO2Off      = 15 // big-endian uint16, ppm
)

// Service-data type markers (first payload byte, masked 0x7f).
const (
	sdMinLen    = 6
	sdCO2MinLen = 10

	// sdTypeMeter marks the plain temperature/humidity meters. Their payload
	// decodes structurally but carries no co2, so it is always rejected
	// rather than kept as a fallback that could shadow a foreign device.
	sdTypeMeter = 0x54

	// co2-capable meter variants
	sdTypeCO2A = 0x35
	sdTypeCO2B = 0x36
)

// co2 plausibility window of the service-data path; tighter than the
// reading-wide window because this layout was seen on fewer captures.
const (
	sdMinCO2 = 300
	sdMaxCO2 = 5000
)

// errNoCO2 rejects structurally valid payloads of meters that do not
// measure co2.
var errNoCO2 = errors.New("meter payload carries no co2")

// Decode runs the byte-layout interpretation selected by Classify. The
// returned Reading is validated; out-of-range values fail the decode instead
// of producing a clamped reading (battery excepted, it is cosmetic).
func (p *Protocol) Decode(m sensor.Match, adv sensor.Advertisement) (sensor.Reading, error) {
	switch m {
	case sensor.MatchManufacturer:
		return p.decodeManufacturerData(adv.ManufacturerData, adv.RSSI)
	case sensor.MatchService:
		return p.decodeServiceData(adv.ServiceData, adv.RSSI)
	default:
		return sensor.Reading{}, errors.Errorf("no decodable payload for route %q", m)
	}
}

type rawMeterValues struct {
	battery  byte
	tempFrac byte
	tempInt  byte
	humidity byte
	co2      uint16
}

// decodeManufacturerData interprets the production broadcast layout.
func (p *Protocol) decodeManufacturerData(buf []byte, rssi int) (sensor.Reading, error) {
	if len(buf) < mdMinLen {
		return sensor.Reading{}, errors.Errorf("manufacturer data too short: %d bytes", len(buf))
	}
	if uint16(buf[0])|uint16(buf[1])<<8 != p.id.CompanyID {
		return sensor.Reading{}, errors.Errorf("unexpected company id prefix: %02x %02x", buf[0], buf[1])
	}

	raw := rawMeterValues{
		battery:  buf[mdBatteryOff],
		tempFrac: buf[mdTempFracOff],
		tempInt:  buf[mdTempIntOff],
		humidity: buf[mdHumidityOff],
		co2:      binary.BigEndian.Uint16(buf[mdCO2Off : mdCO2Off+2]),
	}
	return refineRawValues(raw, rssi)
}

func refineRawValues(raw rawMeterValues, rssi int) (sensor.Reading, error) {
	r := sensor.Reading{
		CO2:         int(raw.co2),
		Temperature: float64(int(raw.tempInt)-128) + float64(raw.tempFrac)/10.0,
		Humidity:    int(raw.humidity),
		Battery:     clampBattery(int(raw.battery)),
		RSSI:        rssi,
	}
	if err := r.Validate(); err != nil {
		return sensor.Reading{}, errors.Wrap(err, "implausible meter values")
	}
	return r, nil
}

// decodeServiceData interprets the service-data layouts keyed by the meter
// service uuid.
func (p *Protocol) decodeServiceData(serviceData map[string][]byte, rssi int) (sensor.Reading, error) {
	var buf []byte
	for key, data := range serviceData {
		if normalizeUUID(key) == p.serviceUUID {
			buf = data
			break
		}
	}
	if len(buf) < sdMinLen {
		return sensor.Reading{}, errors.Errorf("service data too short: %d bytes", len(buf))
	}

	if buf[0]&0x7f == sdTypeMeter {
		// Packed temperature/humidity of the plain meter: low nibble of
		// byte 1 holds tenths, bit 6 the sign (clear means negative), the
		// high bits of bytes 1-2 the integer part, low nibble of byte 2
		// the humidity. Unpacked here to prove the frame is well-formed,
		// then rejected: without co2 it is useless to this pipeline.
		tenths := int(buf[1] & 0x0f)
		integer := int(buf[1]>>7)<<4 | int(buf[2]>>4)
		temp := float64(integer) + float64(tenths)/10.0
		if buf[1]&0x40 == 0 {
			temp = -temp
		}
		_ = temp
		return sensor.Reading{}, errNoCO2
	}

	switch buf[0] {
	case sdTypeCO2A, sdTypeCO2B:
	default:
		return sensor.Reading{}, errors.Errorf("unknown meter payload type %#02x", buf[0])
	}
	if len(buf) < sdCO2MinLen {
		return sensor.Reading{}, errors.Errorf("co2 meter service data too short: %d bytes", len(buf))
	}

	co2 := int(binary.BigEndian.Uint16(buf[2:4]))
	if co2 < sdMinCO2 || co2 > sdMaxCO2 {
		return sensor.Reading{}, errors.Errorf("co2 out of service-data range: %d ppm", co2)
	}

	temp := float64(int(buf[6] & 0x7f))
	if buf[6]&0x80 == 0 {
		temp = -temp
	}
	if temp < 0 {
		temp -= float64(buf[5]&0x0f) / 10.0
	} else {
		temp += float64(buf[5]&0x0f) / 10.0
	}

	r := sensor.Reading{
		CO2:         co2,
		Temperature: temp,
		Humidity:    int(buf[4]),
		Battery:     clampBattery(int(buf[1])),
		RSSI:        rssi,
	}
	if err := r.Validate(); err != nil {
		return sensor.Reading{}, errors.Wrap(err, "implausible meter values")
	}
	return r, nil
}

func clampBattery(b int) int {
	if b < 0 {
		return 0
	}
	if b > 100 {
		return 100
	}
	return b
}
