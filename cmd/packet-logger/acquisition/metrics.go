package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	framesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_frames_received_total",
		Help: "The total number of frames fetched from the concentrator",
	})
	framesValidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_frames_valid_total",
		Help: "The total number of frames that passed the CRC check",
	})
	framesInvalidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_frames_invalid_total",
		Help: "The total number of frames with a failed or missing CRC",
	})
	framesForwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_frames_forwarded_total",
		Help: "The total number of payloads delivered to the downstream endpoint",
	})
	forwardErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_forward_errors_total",
		Help: "The total number of failed forward attempts",
	})
	recordsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_records_written_total",
		Help: "The total number of records appended to the packet log",
	})
	recordErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_record_errors_total",
		Help: "The total number of records that could not be written",
	})
	corruptionNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packetlogger_corruption_notifications_total",
		Help: "The total number of sustained-corruption notifications raised",
	})
	corruptionStreak = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "packetlogger_corruption_streak",
		Help: "The length of the current run of consecutive corrupted frames",
	})
)
