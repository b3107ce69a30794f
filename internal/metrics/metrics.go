// Package metrics holds the Prometheus collectors shared by the device
// client, the learning session and the AC controller.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lookin"

var (
	// Device HTTP client
	DeviceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "requests_total",
		Help:      "Total requests sent to the device",
	}, []string{"method", "endpoint", "status"})

	DeviceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "request_duration_seconds",
		Help:      "Device request latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})

	// Learning
	LearnCapturedSignals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learn",
		Name:      "captured_signals_total",
		Help:      "Distinct IR signals captured from the sensor",
	})

	LearnMissedPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learn",
		Name:      "missed_polls_total",
		Help:      "Sensor polls that failed during capture",
	})

	LearnSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learn",
		Name:      "sessions_total",
		Help:      "Completed learning sessions by outcome",
	}, []string{"outcome"})

	// AC status changes
	ACApplyAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ac",
		Name:      "apply_attempts_total",
		Help:      "Status submissions sent to the device",
	}, []string{"remote"})

	ACApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ac",
		Name:      "apply_total",
		Help:      "Status changes by outcome",
	}, []string{"remote", "outcome"})

	ACApplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ac",
		Name:      "apply_duration_seconds",
		Help:      "Time from first submission to confirmation or give-up",
		Buckets:   []float64{1, 5, 10, 20, 30, 60, 90, 150},
	}, []string{"remote"})

	ACStatusCode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ac",
		Name:      "status_code",
		Help:      "Last confirmed status word",
	}, []string{"remote"})

	ACTargetCelsius = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ac",
		Name:      "target_celsius",
		Help:      "Last confirmed target temperature",
	}, []string{"remote"})

	// Remote functions
	FunctionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "remote",
		Name:      "function_fallbacks_total",
		Help:      "Function writes stored locally after the device rejected them",
	}, []string{"remote"})

	// Meteo sensor
	MeteoTemperature = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "meteo",
		Name:      "temperature_celsius",
		Help:      "Room temperature reported by the device",
	})

	MeteoHumidity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "meteo",
		Name:      "humidity_percent",
		Help:      "Relative humidity reported by the device",
	})

	// MQTT bridge
	MQTTMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mqtt",
		Name:      "messages_total",
		Help:      "MQTT messages handled by direction and result",
	}, []string{"direction", "result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
