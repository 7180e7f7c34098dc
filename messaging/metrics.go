package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuscircle_realtime_frames_total",
		Help: "Inbound frames delivered to subscribers, by event kind",
	}, []string{"kind"})

	decodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campuscircle_realtime_decode_errors_total",
		Help: "Inbound frames dropped because they failed to decode",
	})

	publishDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuscircle_realtime_publish_dropped_total",
		Help: "Outbound publishes dropped because the connection was down",
	}, []string{"kind"})

	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campuscircle_realtime_reconnects_total",
		Help: "Reconnect attempts after unexpected transport failure",
	})

	connectionUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campuscircle_realtime_connection_up",
		Help: "1 while the realtime connection is established",
	})
)
