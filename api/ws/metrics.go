package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sandchat_ws_client_connections",
		Help: "Browser WebSocket senders currently registered in the hub.",
	})
	containerConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sandchat_ws_container_connections",
		Help: "Container WebSocket senders currently registered in the hub.",
	})
	clientFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandchat_ws_client_frames_sent_total",
		Help: "Frames enqueued to browser clients.",
	})
	containerFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandchat_ws_container_frames_sent_total",
		Help: "Frames enqueued to containers.",
	})
)
