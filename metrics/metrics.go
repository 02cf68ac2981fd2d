package metrics

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config of the optional /metrics endpoint. Long throttled runs can be
// watched while they progress.
type Config struct {
	Enabled     bool          `envconfig:"METRICS_ENABLED" default:"false"`
	Host        string        `envconfig:"METRICS_HOST" default:"localhost"`
	Port        int           `envconfig:"METRICS_PORT" default:"9464"`
	ReadTimeout time.Duration `envconfig:"METRICS_READ_TIMEOUT" default:"30s"`
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Metrics struct {
	config   Config
	server   *http.Server
	listener net.Listener
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitDefault starts the endpoint when enabled. The returned closer stops it
// and is never nil.
func InitDefault(config Config) (io.Closer, error) {
	if !config.Enabled {
		return nopCloser{}, nil
	}

	provider := New(config)
	if err := provider.Start(); err != nil {
		return nopCloser{}, errors.Wrap(err, "failed to start metrics server")
	}

	return provider, nil
}

func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		server: NewHttpServer(config),
	}
}

// Start binds the listener, so address errors are returned here, and serves
// in the background.
func (s *Metrics) Start() error {
	if err := InitPrometheus(); err != nil {
		return errors.Wrap(err, "failed to init prometheus")
	}

	ln, err := net.Listen("tcp", s.config.addr())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.config.addr())
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Default().Warn("metrics server failed", "error", err.Error())
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *Metrics) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Metrics) Close() error {
	return errors.Wrap(s.server.Close(), "failed to close metrics")
}

func NewHttpServer(conf Config) *http.Server {
	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              conf.addr(),
		Handler:           r,
		ReadTimeout:       conf.ReadTimeout,
		ReadHeaderTimeout: conf.ReadTimeout,
	}
}
