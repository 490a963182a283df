// Package metrics exposes per-engine Prometheus counters/gauges, the
// way stat.go registers broker-wide ones: frames sent/received/dropped,
// retransmits, NACKs, block transfers, and inflight occupancy.
package metrics

import (
	"context"
	"log"
	"net/http"

	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns one engine's metrics in a private registry, so that two
// engines in the same process (as a test harness might run) don't
// collide on metric names the way a single package-level prometheus
// registry would.
type Collector struct {
	Registry *prometheus.Registry

	FramesSent     prometheus.Counter
	FramesReceived prometheus.Counter
	FramesDropped  prometheus.Counter
	Retransmits    prometheus.Counter
	NacksEmitted   prometheus.Counter
	NacksServed    prometheus.Counter
	BlocksComplete prometheus.Counter
	BlocksAborted  prometheus.Counter
	Inflight       prometheus.Gauge
}

// New constructs a Collector and registers every metric against its own
// registry.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_frames_sent_total", Help: "Total MQTT-SN frames sent to the gateway.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_frames_received_total", Help: "Total MQTT-SN frames received from the gateway.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_frames_dropped_total", Help: "Inbound frames dropped (queue full, oversize datagram, decode error).",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_retransmits_total", Help: "QoS 1/2 retransmissions (PUBLISH or PUBREL).",
		}),
		NacksEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_nacks_emitted_total", Help: "NACK messages emitted by the block receiver.",
		}),
		NacksServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_nacks_served_total", Help: "Chunks re-sent by the block sender in response to a NACK.",
		}),
		BlocksComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_blocks_complete_total", Help: "Block transfers reassembled successfully.",
		}),
		BlocksAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttsn_blocks_aborted_total", Help: "Block transfers abandoned on timeout or budget rejection.",
		}),
		Inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqttsn_inflight_publishes", Help: "Current QoS 1/2 inflight publish count.",
		}),
	}
	c.Registry.MustRegister(
		c.FramesSent, c.FramesReceived, c.FramesDropped, c.Retransmits,
		c.NacksEmitted, c.NacksServed, c.BlocksComplete, c.BlocksAborted, c.Inflight,
	)
	return c
}

// Serve exposes the collector on addr at /metrics, the way stat.go's
// Httpd wires promhttp.Handler() behind golang-io/requests' mux. This is
// diagnostic-only glue for a deployment with a second network interface;
// the constrained node itself never calls it.
func (c *Collector) Serve(addr string) error {
	mux := requests.NewServeMux(requests.URL(addr))
	mux.Route("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
	s := requests.NewServer(context.Background(), mux, requests.OnStart(func(s *http.Server) {
		log.Printf("metrics: serving at %s", s.Addr)
	}))
	return s.ListenAndServe()
}
