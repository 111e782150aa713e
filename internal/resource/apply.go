// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource implements the reconciliation core: applying desired
// cluster objects, validating observed state against them, and waiting for
// applied objects to become ready.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ConflictPolicy controls what the applier does when a resource already exists.
type ConflictPolicy string

const (
	// ConflictNone propagates the AlreadyExists error.
	ConflictNone ConflictPolicy = "none"
	// ConflictPatch merge-patches the desired spec onto the existing object.
	ConflictPatch ConflictPolicy = "patch"
	// ConflictReplace is accepted by the contract but fails explicitly if a
	// conflict actually requires it.
	ConflictReplace ConflictPolicy = "replace"
)

// ErrReplaceNotSupported is returned when a conflict would require the
// replace policy to act.
var ErrReplaceNotSupported = errors.New("replace conflict policy is not supported")

// ForbiddenError reports that the API server denied a create with 403.
// It signals a missing elevated-privilege grant rather than a generic
// cluster error, so callers can surface it distinctly.
type ForbiddenError struct {
	Resource string
	Err      error
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden to create %s: %v", e.Resource, e.Err)
}

func (e *ForbiddenError) Unwrap() error { return e.Err }

// Applier creates desired objects in the cluster, in order.
type Applier struct {
	client client.Client
	logger *slog.Logger
}

// NewApplier creates an applier over the given cluster client.
func NewApplier(c client.Client, logger *slog.Logger) *Applier {
	return &Applier{client: c, logger: logger}
}

// Apply creates each object in order. An AlreadyExists conflict is resolved
// per the policy; a Forbidden error is returned as a *ForbiddenError; any
// other error aborts the remaining sequence. Objects created before a
// failure remain created, and re-invocation with the patch policy is
// idempotent per resource.
func (a *Applier) Apply(ctx context.Context, objs []*unstructured.Unstructured, policy ConflictPolicy) error {
	for _, obj := range objs {
		a.logger.Info("creating resource",
			"kind", obj.GetKind(), "name", obj.GetName(), "namespace", obj.GetNamespace())

		// Create mutates its argument; keep the desired object pristine.
		err := a.client.Create(ctx, obj.DeepCopy())
		if err == nil {
			continue
		}

		switch {
		case apierrors.IsForbidden(err):
			return &ForbiddenError{Resource: describe(obj), Err: err}

		case apierrors.IsAlreadyExists(err):
			if err := a.resolveConflict(ctx, obj, policy, err); err != nil {
				return err
			}

		default:
			return fmt.Errorf("failed to create %s: %w", describe(obj), err)
		}
	}
	return nil
}

func (a *Applier) resolveConflict(ctx context.Context, obj *unstructured.Unstructured, policy ConflictPolicy, cause error) error {
	switch policy {
	case ConflictPatch:
		a.logger.Info("resource already exists, merge-patching",
			"kind", obj.GetKind(), "name", obj.GetName(), "namespace", obj.GetNamespace())
		if err := a.client.Patch(ctx, obj.DeepCopy(), client.Merge); err != nil {
			return fmt.Errorf("failed to patch %s: %w", describe(obj), err)
		}
		return nil
	case ConflictReplace:
		return fmt.Errorf("%s already exists: %w", describe(obj), ErrReplaceNotSupported)
	default:
		return fmt.Errorf("failed to create %s: %w", describe(obj), cause)
	}
}

// describe renders a resource identity for logs and error messages.
func describe(obj *unstructured.Unstructured) string {
	if ns := obj.GetNamespace(); ns != "" {
		return fmt.Sprintf("%s %s/%s", obj.GetKind(), ns, obj.GetName())
	}
	return fmt.Sprintf("%s %s", obj.GetKind(), obj.GetName())
}
