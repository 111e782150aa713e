// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/charmed-kubeflow/metacontroller-operator/internal/metrics"
)

// Lifecycle trigger names delivered by the hosting runtime.
const (
	TriggerInstall      = "install"
	TriggerRemove       = "remove"
	TriggerUpdateStatus = "update_status"
)

// Dispatcher routes named lifecycle triggers to operator handlers, one at a
// time. The hosting runtime already serializes delivery; the mutex keeps
// that assumption enforced locally.
type Dispatcher struct {
	mu      sync.Mutex
	op      *Operator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a trigger dispatcher for the operator.
func NewDispatcher(op *Operator, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{op: op, metrics: m, logger: logger}
}

// Dispatch runs the handler for the named trigger to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("handling lifecycle trigger", "trigger", trigger)
	d.metrics.ObserveTrigger(trigger)

	switch trigger {
	case TriggerInstall:
		return d.op.HandleInstall(ctx)
	case TriggerUpdateStatus:
		return d.op.HandleUpdateStatus(ctx)
	case TriggerRemove:
		return d.op.HandleRemove(ctx)
	default:
		return fmt.Errorf("unknown lifecycle trigger %q", trigger)
	}
}
