// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the operator's prometheus scrape endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the operator's counters. A nil *Metrics is valid and
// records nothing, so wiring stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	triggers *prometheus.CounterVec
	results  *prometheus.CounterVec
}

// New creates and registers the operator metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metacontroller_operator_lifecycle_triggers_total",
			Help: "Lifecycle triggers dispatched, by trigger name.",
		}, []string{"trigger"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metacontroller_operator_reconcile_results_total",
			Help: "Reconciliation outcomes, by resulting status.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.triggers, m.results)
	return m
}

// ObserveTrigger records a dispatched lifecycle trigger.
func (m *Metrics) ObserveTrigger(trigger string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(trigger).Inc()
}

// ObserveResult records the status a reconciliation pass ended in.
func (m *Metrics) ObserveResult(result string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(result).Inc()
}

// Handler returns the scrape handler for the operator registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server exposing the scrape endpoint at the given path
// until ctx is cancelled. Additional routes (status, health) can be passed
// in extra.
func Serve(ctx context.Context, m *Metrics, port int, path string, extra map[string]http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	for route, h := range extra {
		mux.Handle(route, h)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", srv.Addr, "path", path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	}
}
