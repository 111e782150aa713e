// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics(t *testing.T) {
	t.Run("counters appear on the scrape endpoint", func(t *testing.T) {
		m := New()
		m.ObserveTrigger("install")
		m.ObserveTrigger("update_status")
		m.ObserveTrigger("update_status")
		m.ObserveResult("active")

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		body := rec.Body.String()
		for _, want := range []string{
			`metacontroller_operator_lifecycle_triggers_total{trigger="install"} 1`,
			`metacontroller_operator_lifecycle_triggers_total{trigger="update_status"} 2`,
			`metacontroller_operator_reconcile_results_total{result="active"} 1`,
		} {
			if !strings.Contains(body, want) {
				t.Errorf("scrape output missing %q", want)
			}
		}
	})

	t.Run("nil metrics record nothing and do not panic", func(t *testing.T) {
		var m *Metrics
		m.ObserveTrigger("install")
		m.ObserveResult("active")
	})
}
