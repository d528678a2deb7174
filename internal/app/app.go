package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ungeskriptet/samsung-grab/internal/config"
	"github.com/ungeskriptet/samsung-grab/internal/metrics"
	"github.com/ungeskriptet/samsung-grab/internal/notify"
	"github.com/ungeskriptet/samsung-grab/internal/remote"
	"github.com/ungeskriptet/samsung-grab/internal/service"
	"github.com/ungeskriptet/samsung-grab/internal/storage"
	"github.com/ungeskriptet/samsung-grab/internal/upload"
)

// App holds the components of one invocation. It must be closed so that the
// store is released and metrics are flushed.
type App struct {
	Service *service.Service
	Store   *storage.Store
	Metrics *metrics.Metrics
	Log     *slog.Logger

	metricsFile string
}

// Options carries per-invocation settings that do not come from Config.
type Options struct {
	// Stderr receives logs and upload progress.
	Stderr io.Writer
	// Notify holds additional notification targets, e.g. from flags.
	Notify []string
}

// New wires application dependencies and opens the task store.
func New(cfg *config.Config, opts Options) (*App, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("run", uuid.NewString())

	targets := cfg.Notify
	for _, n := range opts.Notify {
		targets += " " + n
	}
	client := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: &loggingTransport{next: http.DefaultTransport, log: log},
	}
	notifier, err := notify.Parse(targets, client)
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Debug("task store opened", "path", cfg.StorePath, "tasks", st.Len())

	coord := remote.New(cfg.BaseURL, client, log)
	exec := upload.New(coord, st, client,
		upload.WithLogger(log),
		upload.WithProgress(func(name string) upload.ProgressTracker {
			return upload.NewTextProgress(stderr, name)
		}),
	)

	m := metrics.New()
	svcOpts := []service.Option{
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithLookupPrefix(cfg.LookupURL),
	}
	if notifier != nil {
		svcOpts = append(svcOpts, service.WithNotifier(notifier))
	}
	if cfg.ClaimRate > 0 {
		svcOpts = append(svcOpts, service.WithClaimLimiter(rate.NewLimiter(rate.Limit(cfg.ClaimRate), 1)))
	}

	return &App{
		Service:     service.New(st, coord, exec, svcOpts...),
		Store:       st,
		Metrics:     m,
		Log:         log,
		metricsFile: cfg.MetricsFile,
	}, nil
}

// Close flushes metrics and closes the store.
func (a *App) Close() error {
	var errs []error
	if err := a.Metrics.WriteTextfile(a.metricsFile); err != nil {
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

// loggingTransport logs every outgoing request: method, host, path, status
// and latency.
type loggingTransport struct {
	next http.RoundTripper
	log  *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	latency := time.Since(start)

	if err != nil {
		t.log.Debug("request failed",
			"method", req.Method,
			"host", req.URL.Host,
			"path", req.URL.Path,
			"latency_ms", latency.Milliseconds(),
			"error", err,
		)
		return nil, err
	}
	t.log.Debug("request completed",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"latency_ms", latency.Milliseconds(),
		"status", resp.StatusCode,
	)
	return resp, nil
}
