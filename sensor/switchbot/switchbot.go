// Package switchbot classifies and decodes advertisement payloads of the
// SwitchBot meter family, specifically the CO2-capable meters. The byte
// layouts were reverse-engineered from live captures and must stay bit-exact.
package switchbot

import (
	"strings"

	"co2mon/sensor"
)

// Identity selects the target device family. Immutable once constructed;
// passing it in (instead of package globals) lets tests run independent
// classifiers with different fixtures.
type Identity struct {
	// CompanyID is the 16-bit Bluetooth SIG member id found little-endian
	// at the start of manufacturer data. 0x0969 is Woan Technology
	// (SwitchBot).
	CompanyID uint16

	// ServiceUUID keys the service-data payload. Short 16-bit form;
	// advertisements may carry it in full 128-bit SIG form.
	ServiceUUID string

	// NamePatterns are case-insensitive substrings matched against the
	// advertised local name.
	NamePatterns []string
}

// DefaultIdentity matches the SwitchBot CO2 meters.
func DefaultIdentity() Identity {
	return Identity{
		CompanyID:    0x0969,
		ServiceUUID:  "fd3d",
		NamePatterns: []string{"co2", "meterpro"},
	}
}

// Protocol implements sensor.Protocol for the SwitchBot meter family.
type Protocol struct {
	id          Identity
	serviceUUID string // normalized once
}

func New(id Identity) *Protocol {
	return &Protocol{
		id:          id,
		serviceUUID: normalizeUUID(id.ServiceUUID),
	}
}

// Classify decides whether an advertisement plausibly originates from the
// target family and which payload to decode. First match wins, and the
// manufacturer-data route outranks service data so the production layout is
// always preferred. No shared state is touched.
func (p *Protocol) Classify(adv sensor.Advertisement) sensor.Match {
	md := adv.ManufacturerData
	if len(md) >= 2 && uint16(md[0])|uint16(md[1])<<8 == p.id.CompanyID {
		return sensor.MatchManufacturer
	}

	for key := range adv.ServiceData {
		if normalizeUUID(key) == p.serviceUUID {
			return sensor.MatchService
		}
	}

	if p.matchesName(adv.LocalName) {
		return sensor.MatchNameOnly
	}
	for _, svc := range adv.Services {
		if normalizeUUID(svc) == p.serviceUUID {
			return sensor.MatchNameOnly
		}
	}

	return sensor.MatchNone
}

func (p *Protocol) matchesName(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, pattern := range p.id.NamePatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID; 16-bit services
// expand to 0000xxxx-0000-1000-8000-00805f9b34fb.
const sigBaseSuffix = "00001000800000805f9b34fb"

// normalizeUUID lowercases, strips dashes and collapses full-form SIG UUIDs
// down to their 16-bit short form so "FD3D" and
// "0000fd3d-0000-1000-8000-00805f9b34fb" compare equal.
func normalizeUUID(uuid string) string {
	u := strings.ToLower(uuid)
	u = strings.ReplaceAll(u, "-", "")
	u = strings.TrimPrefix(u, "0x")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}
