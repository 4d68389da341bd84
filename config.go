package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"co2mon/sensor"
	"co2mon/sensor/switchbot"
)

// Alert sound modes, consumed by whatever renders the alert. The decode and
// alerting pipeline never looks at this.
const (
	soundOff    = "off"
	soundGentle = "gentle"
	soundUrgent = "urgent"
)

type config struct {
	Alert struct {
		CO2Threshold int    `yaml:"co2_threshold_ppm"`
		Sound        string `yaml:"sound"`
	} `yaml:"alert"`

	Staleness struct {
		Timeout       duration `yaml:"timeout"`
		CheckInterval duration `yaml:"check_interval"`
	} `yaml:"staleness"`

	Device struct {
		CompanyID    uint16   `yaml:"company_id"`
		ServiceUUID  string   `yaml:"service_uuid"`
		NamePatterns []string `yaml:"name_patterns"`
	} `yaml:"device"`
}

// duration lets yaml carry "5m" instead of nanosecond integers.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", raw)
	}
	d.Duration = parsed
	return nil
}

func defaultConfig() config {
	var cfg config
	cfg.Alert.CO2Threshold = sensor.DefaultCO2Threshold
	cfg.Alert.Sound = soundGentle
	cfg.Staleness.Timeout = duration{sensor.DefaultStaleTimeout}
	cfg.Staleness.CheckInterval = duration{sensor.DefaultCheckInterval}
	id := switchbot.DefaultIdentity()
	cfg.Device.CompanyID = id.CompanyID
	cfg.Device.ServiceUUID = id.ServiceUUID
	cfg.Device.NamePatterns = id.NamePatterns
	return cfg
}

// loadConfig returns the defaults, overridden by the yaml file if a path was
// given.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to parse config file")
	}
	switch cfg.Alert.Sound {
	case soundOff, soundGentle, soundUrgent:
	default:
		return cfg, errors.Errorf("unknown alert sound %q", cfg.Alert.Sound)
	}
	return cfg, nil
}

func (c config) identity() switchbot.Identity {
	return switchbot.Identity{
		CompanyID:    c.Device.CompanyID,
		ServiceUUID:  c.Device.ServiceUUID,
		NamePatterns: c.Device.NamePatterns,
	}
}
