// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

// Package operator drives the lifecycle state machine that deploys and
// supervises the metacontroller add-on.
package operator

import (
	"encoding/json"
	"net/http"
	"sync"
)

// State is an operator-visible status state.
type State string

const (
	// StateWaiting means the unit is waiting on something external,
	// currently only leadership.
	StateWaiting State = "waiting"
	// StateMaintenance means the unit is actively changing cluster state.
	StateMaintenance State = "maintenance"
	// StateActive means every supervised resource is present and healthy.
	StateActive State = "active"
	// StateBlocked means the unit cannot make progress without intervention.
	StateBlocked State = "blocked"
)

// Status couples a state with its human-readable message.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Canonical status values produced by the state machine.
var (
	StatusWaitingForLeadership = Status{StateWaiting, "Waiting for leadership"}
	StatusInstalling           = Status{StateMaintenance, "Instantiating Kubernetes objects"}
	StatusReinstalling         = Status{StateMaintenance, "Missing kubernetes resources detected - reinstalling"}
	StatusBlockedNoTrust       = Status{StateBlocked, "Cannot create required RBAC. Operator may not have been granted cluster permissions (`--trust`)"}
	StatusBlockedNotReady      = Status{StateBlocked, "Some Kubernetes resources did not start correctly during install"}
	StatusActive               = Status{StateActive, ""}
)

// StatusSetter receives every status transition. The hosting runtime
// surfaces the latest value externally.
type StatusSetter interface {
	SetStatus(Status)
}

// Cell is the mutable unit-status holder. It starts unset; the first
// transition defines it, and it is continuously overwritten afterwards.
type Cell struct {
	mu     sync.RWMutex
	status Status
	set    bool
}

// SetStatus implements StatusSetter.
func (c *Cell) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
	c.set = true
}

// Get returns the current status and whether one has been set yet.
func (c *Cell) Get() (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status, c.set
}

// Handler returns an HTTP handler exposing the current status as JSON.
func (c *Cell) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, ok := c.Get()
		if !ok {
			http.Error(w, "status not set", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
}
