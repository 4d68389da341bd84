package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"co2mon/sensor"
	"co2mon/sensor/switchbot"
)

// CLI args
var (
	listenAddr = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests.")
	configPath = flag.String("config", "", "path to optional yaml config file")
	rescanWait = flag.Duration("rescan-wait", 10*time.Second, "pause before reopening the adapter after a scan ends")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

// metrics to expose to Prometheus
var (
	gaugeCo2Level    = newGauge("air_co2_level", "Air Carbon Dioxide level (units: ppm)")
	gaugeTemperature = newGauge("air_temperature", "Air Temperature (units: degrees Celsius)")
	gaugeHumidity    = newGauge("air_humidity", "Humidity (units: % of relative Humidity)")
	gaugeBattery     = newGauge("sensor_battery", "Sensor battery level (units: %)")
	gaugeRssi        = newGauge("sensor_rssi", "Signal strength of the last decoded frame (units: dBm)")

	gaugeStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensor_connection_status",
		Help: "Connection status (0=idle 1=scanning 2=receiving)",
	})
	gaugeStale = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensor_data_stale",
		Help: "1 when no valid reading arrived within the staleness timeout",
	})

	counterFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ble_frames_total",
		Help: "Advertisement frames seen, by pipeline outcome",
	}, []string{"outcome"})
	counterAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "co2_alerts_total",
		Help: "CO2 threshold alerts fired",
	})
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"address"},
	)
}

func init() {
	prometheus.MustRegister(gaugeCo2Level)
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeBattery)
	prometheus.MustRegister(gaugeRssi)
	prometheus.MustRegister(gaugeStatus)
	prometheus.MustRegister(gaugeStale)
	prometheus.MustRegister(counterFrames)
	prometheus.MustRegister(counterAlerts)

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

// seenDevices is a diagnostic side channel recording which advertisers share
// the airwaves. Written from the BLE callback goroutine; never consulted by
// the decode path.
var seenDevices = hashmap.New[string, int64]()

func main() {
	flag.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("bad configuration: %s", err)
	}

	mon := sensor.NewMonitor(switchbot.New(cfg.identity()), sensor.MonitorOptions{
		CO2Threshold: cfg.Alert.CO2Threshold,
		StaleTimeout: cfg.Staleness.Timeout.Duration,
		Logger:       log.StandardLogger(),
	})

	go func() {
		// Expose the registered metrics via HTTP.
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(*listenAddr, nil))
	}()

	go consumeEvents(mon, cfg.Alert.Sound)

	go func() {
		ticker := time.NewTicker(cfg.Staleness.CheckInterval.Duration)
		defer ticker.Stop()
		for range ticker.C {
			mon.CheckStale()
		}
	}()

	for {
		scanAndDecode(mon)
		time.Sleep(*rescanWait)
	}
}

// scanAndDecode runs one scan session: open the adapter, stream every
// advertisement through the monitor until the scan dies, then report the
// session end.
func scanAndDecode(mon *sensor.Monitor) {
	// open BLE
	d, err := linux.NewDevice()
	if err != nil {
		mon.Unavailable(errors.Wrap(err, "failed to open ble").Error())
		return
	}
	ble.SetDefaultDevice(d)
	defer ble.Stop()

	mon.ScanStarted()
	defer mon.ScanStopped()

	ctx := ble.WithSigHandler(context.WithCancel(context.Background()))
	err = ble.Scan(ctx, true, handleAdvertisement(mon), nil)
	switch errors.Cause(err) {
	case nil, context.Canceled, context.DeadlineExceeded:
	default:
		mon.Unavailable(errors.Wrap(err, "scan failed").Error())
	}
}

// handleAdvertisement adapts go-ble advertisements into the monitor's
// transport-neutral record and keeps the outcome counters.
func handleAdvertisement(mon *sensor.Monitor) ble.AdvHandler {
	return func(a ble.Advertisement) {
		adv := sensor.Advertisement{
			ManufacturerData: a.ManufacturerData(),
			LocalName:        a.LocalName(),
			RSSI:             a.RSSI(),
		}
		if sds := a.ServiceData(); len(sds) > 0 {
			adv.ServiceData = make(map[string][]byte, len(sds))
			for _, sd := range sds {
				adv.ServiceData[sd.UUID.String()] = sd.Data
			}
		}
		for _, u := range a.Services() {
			adv.Services = append(adv.Services, u.String())
		}

		addr := a.Addr().String()
		match, err := mon.HandleAdvertisement(adv)
		switch {
		case err != nil:
			counterFrames.WithLabelValues("rejected").Inc()
		case match == sensor.MatchManufacturer || match == sensor.MatchService:
			counterFrames.WithLabelValues("decoded").Inc()
			gaugeStale.Set(0)
			if snap := mon.Snapshot(); snap.Reading != nil {
				r := snap.Reading
				gaugeCo2Level.WithLabelValues(addr).Set(float64(r.CO2))
				gaugeTemperature.WithLabelValues(addr).Set(r.Temperature)
				gaugeHumidity.WithLabelValues(addr).Set(float64(r.Humidity))
				gaugeBattery.WithLabelValues(addr).Set(float64(r.Battery))
				gaugeRssi.WithLabelValues(addr).Set(float64(r.RSSI))
			}
		case match == sensor.MatchNameOnly:
			counterFrames.WithLabelValues("diagnostic").Inc()
		default:
			counterFrames.WithLabelValues("ignored").Inc()
		}

		if _, loaded := seenDevices.GetOrInsert(addr, time.Now().Unix()); !loaded {
			log.Debugf("new advertiser %s (match: %s)", addr, match)
		}
	}
}

// consumeEvents renders the monitor's outbound stream: alerts become warn
// logs tagged with the configured sound mode, status and staleness feed the
// gauges.
func consumeEvents(mon *sensor.Monitor, sound string) {
	for ev := range mon.Events() {
		switch ev.Kind {
		case sensor.EventAlert:
			counterAlerts.Inc()
			if sound == soundOff {
				log.Infof("co2 alert: %d ppm (sound off)", ev.CO2)
			} else {
				log.Warnf("co2 alert: %d ppm (sound: %s)", ev.CO2, sound)
			}
		case sensor.EventStatus:
			gaugeStatus.Set(float64(ev.Status))
			if ev.Reason != "" {
				log.Errorf("bluetooth unavailable: %s", ev.Reason)
			} else {
				log.Printf("connection status: %s", ev.Status)
			}
		case sensor.EventStale:
			gaugeStale.Set(1)
		}
	}
}
