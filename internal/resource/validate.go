// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Outcome is the result of one validation pass over the expected resources.
type Outcome struct {
	// Discrepancies lists every missing or not-yet-healthy resource.
	Discrepancies []string
}

// OK reports whether every expected resource was present and healthy.
func (o Outcome) OK() bool { return len(o.Discrepancies) == 0 }

// replicaCounter reads desired and ready replica counts from a fetched
// workload object. Only replica-bearing workload kinds have one.
type replicaCounter func(obj *unstructured.Unstructured) (want, ready int64)

// workloadKinds maps each replica-bearing kind to its replica counter.
// Kinds absent from this map carry no replica health semantics.
var workloadKinds = map[string]replicaCounter{
	"StatefulSet": specStatusReplicas,
	"Deployment":  specStatusReplicas,
}

// specStatusReplicas reads spec.replicas vs status.readyReplicas.
// A workload with no explicit spec.replicas defaults to one.
func specStatusReplicas(obj *unstructured.Unstructured) (want, ready int64) {
	want = 1
	if v, found, err := unstructured.NestedInt64(obj.Object, "spec", "replicas"); err == nil && found {
		want = v
	}
	if v, found, err := unstructured.NestedInt64(obj.Object, "status", "readyReplicas"); err == nil && found {
		ready = v
	}
	return want, ready
}

// Validator compares expected resources against observed cluster state.
type Validator struct {
	client client.Client
	logger *slog.Logger
}

// NewValidator creates a validator over the given cluster client.
func NewValidator(c client.Client, logger *slog.Logger) *Validator {
	return &Validator{client: c, logger: logger}
}

// Validate fetches each expected resource and records a discrepancy for
// every one that cannot be fetched or, for replica-bearing workloads, has
// not reached its desired ready replica count. A single failed fetch does
// not abort the pass; all problems are surfaced together. Fetch failures of
// any kind, permission denials included, are aggregated alike.
//
// The returned error is non-nil only when ctx is cancelled; Validate itself
// never retries.
func (v *Validator) Validate(ctx context.Context, expected []*unstructured.Unstructured) (Outcome, error) {
	var out Outcome
	for _, want := range expected {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		observed := &unstructured.Unstructured{}
		observed.SetGroupVersionKind(want.GroupVersionKind())
		key := client.ObjectKey{Name: want.GetName(), Namespace: want.GetNamespace()}

		if err := v.client.Get(ctx, key, observed); err != nil {
			// A fetch that failed because ctx was cancelled aborts the
			// pass; it must not read as a missing resource.
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			msg := fmt.Sprintf("cannot find %s", describe(want))
			v.logger.Info(msg, "error", err)
			out.Discrepancies = append(out.Discrepancies, msg)
			continue
		}

		countReplicas, ok := workloadKinds[observed.GetKind()]
		if !ok {
			continue
		}
		if want, ready := countReplicas(observed); ready != want {
			msg := fmt.Sprintf("%s %s in namespace %s has %d readyReplicas, expected %d",
				observed.GetKind(), observed.GetName(), observed.GetNamespace(), ready, want)
			v.logger.Info(msg)
			out.Discrepancies = append(out.Discrepancies, msg)
		}
	}
	return out, nil
}
