// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/charmed-kubeflow/metacontroller-operator/internal/manifest"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/metrics"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/resource"
)

// ErrRemoveNotSupported is returned for the remove trigger. Resource
// deletion is handled outside the operator.
var ErrRemoveNotSupported = errors.New("remove is not supported: resource deletion is handled by the hosting runtime")

// Operator is the lifecycle state machine. Each trigger handler runs to
// completion before another is accepted; the hosting runtime serializes
// delivery and the dispatcher enforces it.
type Operator struct {
	renderer   *manifest.Renderer
	applier    *resource.Applier
	validator  *resource.Validator
	leadership LeadershipChecker
	status     StatusSetter
	waitOpts   resource.WaitOptions
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New wires the operator from its collaborators. All dependencies are
// injected; the operator holds no lazily-created state.
func New(
	c client.Client,
	renderer *manifest.Renderer,
	leadership LeadershipChecker,
	status StatusSetter,
	waitOpts resource.WaitOptions,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Operator {
	return &Operator{
		renderer:   renderer,
		applier:    resource.NewApplier(c, logger),
		validator:  resource.NewValidator(c, logger),
		leadership: leadership,
		status:     status,
		waitOpts:   waitOpts,
		metrics:    m,
		logger:     logger,
	}
}

// checkLeader performs the per-trigger leadership query. A non-leader is
// moved to Waiting and does nothing further.
func (o *Operator) checkLeader(ctx context.Context) (bool, error) {
	leader, err := o.leadership.IsLeader(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to determine leadership: %w", err)
	}
	if !leader {
		o.logger.Info("not the leader, waiting for leadership")
		o.status.SetStatus(StatusWaitingForLeadership)
	}
	return leader, nil
}

// HandleInstall handles the install trigger: apply all resource groups in
// order, then wait for them to become operational.
func (o *Operator) HandleInstall(ctx context.Context) error {
	leader, err := o.checkLeader(ctx)
	if err != nil || !leader {
		return err
	}
	return o.install(ctx)
}

// install runs the full install transition. It is also the tail of the
// self-healing update-status path, so conflicts with already-existing
// resources are resolved by merge-patching the desired spec over them.
func (o *Operator) install(ctx context.Context) error {
	o.logger.Info("installing by instantiating Kubernetes objects")
	o.status.SetStatus(StatusInstalling)

	// RBAC goes first: the controller workload's service account depends on
	// it. A 403 here means the operator was never granted cluster-scoped
	// permissions; no retry can fix that.
	rbac, err := o.renderer.Render(manifest.GroupRBAC)
	if err != nil {
		return err
	}
	if err := o.applier.Apply(ctx, rbac, resource.ConflictPatch); err != nil {
		var forbidden *resource.ForbiddenError
		if errors.As(err, &forbidden) {
			o.logger.Error("received Forbidden (403) while creating required RBAC; the operator lacks permission to create cluster-scoped roles and resources",
				"resource", forbidden.Resource, "error", forbidden.Err)
			o.status.SetStatus(StatusBlockedNoTrust)
			o.metrics.ObserveResult("blocked_trust")
			return nil
		}
		return err
	}

	for _, group := range []string{manifest.GroupCRDs, manifest.GroupController} {
		objs, err := o.renderer.Render(group)
		if err != nil {
			return err
		}
		if err := o.applier.Apply(ctx, objs, resource.ConflictPatch); err != nil {
			return err
		}
	}

	expected, err := o.renderer.RenderAll()
	if err != nil {
		return err
	}

	o.logger.Info("waiting for installed Kubernetes objects to be operational",
		"timeout", o.waitOpts.Timeout)
	if err := o.validator.WaitReady(ctx, expected, o.waitOpts); err != nil {
		var deadline *resource.DeadlineError
		if errors.As(err, &deadline) {
			o.logger.Error("some resources did not become ready before the install deadline",
				"elapsed", deadline.Elapsed, "attempts", deadline.Attempts,
				"problems", deadline.Outcome.Discrepancies)
			o.status.SetStatus(StatusBlockedNotReady)
			o.metrics.ObserveResult("blocked_not_ready")
			return nil
		}
		return err
	}

	o.logger.Info("install successful, resources detected as running")
	o.status.SetStatus(StatusActive)
	o.metrics.ObserveResult("active")
	return nil
}

// HandleUpdateStatus handles the update-status trigger: one validation pass,
// degrading into a full reinstall when drift is detected.
func (o *Operator) HandleUpdateStatus(ctx context.Context) error {
	leader, err := o.checkLeader(ctx)
	if err != nil || !leader {
		return err
	}

	o.logger.Info("comparing current state to desired state")
	expected, err := o.renderer.RenderAll()
	if err != nil {
		return err
	}

	outcome, err := o.validator.Validate(ctx, expected)
	if err != nil {
		return err
	}
	if outcome.OK() {
		o.logger.Info("resources are ok, unit is active")
		o.status.SetStatus(StatusActive)
		o.metrics.ObserveResult("active")
		return nil
	}

	o.logger.Info("resources are missing or not ready, triggering install to reconcile",
		"problems", len(outcome.Discrepancies))
	o.status.SetStatus(StatusReinstalling)
	o.metrics.ObserveResult("reinstall")
	return o.install(ctx)
}

// HandleRemove handles the remove trigger.
func (o *Operator) HandleRemove(ctx context.Context) error {
	leader, err := o.checkLeader(ctx)
	if err != nil || !leader {
		return err
	}
	return ErrRemoveNotSupported
}
