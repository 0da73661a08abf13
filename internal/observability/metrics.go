package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nmea_connections_total",
		Help: "Transport connections opened",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nmea_sessions_active",
		Help: "Pipeline sessions currently streaming",
	})
	SentencesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nmea_sentences_received_total",
		Help: "Candidate lines read from the transport",
	})
	SentencesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nmea_sentences_decoded_total",
		Help: "Sentences decoded, by sentence type",
	}, []string{"type"})
	SentencesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nmea_sentences_dropped_total",
		Help: "Sentences dropped, by reason",
	}, []string{"reason"})
	SentencesThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nmea_sentences_throttled_total",
		Help: "Decoded sentences held back by the publish interval",
	}, []string{"type"})
	Published = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nmea_messages_published_total",
		Help: "Messages accepted by at least one sink, by sentence type",
	}, []string{"type"})
	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nmea_publish_errors_total",
		Help: "Publish failures, by sink",
	}, []string{"sink"})
	SinkDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nmea_sink_delivered_total",
		Help: "Messages accepted, by sink",
	}, []string{"sink"})
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nmea_websocket_clients",
		Help: "Live WebSocket subscribers",
	})
	WebSocketDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nmea_websocket_dropped_total",
		Help: "Messages skipped for WebSocket subscribers that fell behind",
	})
	DecodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nmea_decode_latency_seconds",
		Help:    "Time to validate and decode one sentence",
		Buckets: []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.001, 0.01},
	})
)

func ObserveDecodeLatency(start time.Time) {
	DecodeLatency.Observe(time.Since(start).Seconds())
}

// NewMetricsServer serves /metrics and /healthz on addr.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// StartMetricsServer runs the metrics server until ctx is done.
func StartMetricsServer(ctx context.Context, addr string) error {
	srv := NewMetricsServer(addr)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
