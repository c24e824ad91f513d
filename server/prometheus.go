package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var prometheusConnTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "conn_total",
	Help: "Total number of accepted connections",
})

var prometheusConnActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "conn_active",
	Help: "Number of active connections",
})

var prometheusConnRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "conn_rejected_total",
	Help: "Total number of connections rejected at admission",
})

var prometheusConnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "conn_duration_seconds",
	Help: "Duration of connections",
})

var prometheusMessagesRoutedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "messages_routed_total",
	Help: "Total number of routed inbound messages",
})

var prometheusRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "rooms_active",
	Help: "Number of rooms currently registered",
})
