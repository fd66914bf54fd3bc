package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordmaster_transport_connects_total",
		Help: "Successful STOMP handshakes.",
	})
	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordmaster_transport_reconnects_total",
		Help: "Reconnect attempts after a failed or dropped connection.",
	})
	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordmaster_transport_frames_received_total",
		Help: "Inbound STOMP frames by command.",
	}, []string{"command"})
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordmaster_transport_frames_published_total",
		Help: "Outbound SEND frames.",
	})
)
