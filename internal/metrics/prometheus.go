package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// aclcore Prometheus metrics registry.
var (
	// Compile operations
	CompileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclcore",
		Subsystem: "compile",
		Name:      "total",
		Help:      "Total number of CompileForLocation invocations.",
	}, []string{"status"})

	CompileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aclcore",
		Subsystem: "compile",
		Name:      "duration_seconds",
		Help:      "Duration of CompileForLocation invocations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	// Compiled rule counts
	FirewallRulesCompiled = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aclcore",
		Subsystem: "firewall",
		Name:      "rules_compiled",
		Help:      "Number of firewall rules in the last compiled config, by location.",
	}, []string{"location"})

	// Gateway push
	GatewayPushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclcore",
		Subsystem: "gateway",
		Name:      "push_total",
		Help:      "Total number of FirewallConfig pushes to the gateway daemon.",
	}, []string{"status"})

	// API request metrics
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclcore",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total API requests.",
	}, []string{"method", "path", "status"})

	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aclcore",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "path"})

	// VPN connections
	VPNPeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aclcore",
		Subsystem: "vpn",
		Name:      "peers_connected",
		Help:      "Number of connected WireGuard peers.",
	})
)

func init() {
	prometheus.MustRegister(
		CompileTotal,
		CompileDuration,
		FirewallRulesCompiled,
		GatewayPushTotal,
		APIRequestsTotal,
		APIRequestDuration,
		VPNPeersConnected,
	)
}

// Server exposes Prometheus metrics on a separate port.
type Server struct {
	port int
	path string
}

func NewServer(port int, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{port: port, path: path}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", s.port), mux)
}
