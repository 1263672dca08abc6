// Package metrics exports bridge activity as Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Alia5/mogabridge/moga"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mogabridge"

// Metrics implements moga.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	frames    *prometheus.CounterVec
	discarded *prometheus.CounterVec
	faults    *prometheus.CounterVec
	batches   prometheus.Counter
	events    prometheus.Counter
}

var _ moga.Observer = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Valid frames received from the controller, by response code",
		}, []string{"code"}),
		discarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_discarded_total",
			Help:      "Valid frames dropped because their code did not match the request",
		}, []string{"code"}),
		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Session faults, by reason",
		}, []string{"reason"}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Non-empty event batches decoded",
		}),
		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Change events decoded",
		}),
	}
}

func (m *Metrics) FrameReceived(code byte) {
	m.frames.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

func (m *Metrics) FrameDiscarded(code byte) {
	m.discarded.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

func (m *Metrics) Fault(err error) {
	m.faults.WithLabelValues(reason(err)).Inc()
}

func (m *Metrics) BatchDecoded(events int) {
	m.batches.Inc()
	m.events.Add(float64(events))
}

func reason(err error) string {
	var pf *moga.ProtocolFault
	switch {
	case errors.As(err, &pf):
		return pf.Reason.String()
	case errors.Is(err, moga.ErrUnexpectedResponse):
		return "unexpected_response"
	case errors.Is(err, moga.ErrShortPayload):
		return "short_payload"
	default:
		return "transport"
	}
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return r
}

// Serve listens on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
