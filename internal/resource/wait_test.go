// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/charmed-kubeflow/metacontroller-operator/internal/kubernetes"
)

func fastWaitOptions(timeout time.Duration) WaitOptions {
	return WaitOptions{
		Timeout:       timeout,
		BackoffBase:   time.Millisecond,
		BackoffCap:    5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestWaitReady(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds immediately when resources are ready", func(t *testing.T) {
		cl := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).WithObjects(
			newStatefulSet("metacontroller", "test-ns", 1, 1),
		).Build()
		v := NewValidator(cl, testLogger())

		start := time.Now()
		err := v.WaitReady(ctx, []*unstructured.Unstructured{
			newStatefulSet("metacontroller", "test-ns", 1, 1),
		}, fastWaitOptions(time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("first-pass success should not back off, took %s", elapsed)
		}
	})

	t.Run("retries until the resource appears", func(t *testing.T) {
		var getCalls int
		cl := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).WithObjects(
			newStatefulSet("metacontroller", "test-ns", 1, 1),
		).WithInterceptorFuncs(interceptor.Funcs{
			Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
				getCalls++
				if getCalls <= 3 {
					return apierrors.NewNotFound(schema.GroupResource{Group: "apps", Resource: "statefulsets"}, key.Name)
				}
				return c.Get(ctx, key, obj, opts...)
			},
		}).Build()
		v := NewValidator(cl, testLogger())

		err := v.WaitReady(ctx, []*unstructured.Unstructured{
			newStatefulSet("metacontroller", "test-ns", 1, 1),
		}, fastWaitOptions(5*time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if getCalls < 4 {
			t.Errorf("expected at least 4 validation fetches, got %d", getCalls)
		}
	})

	t.Run("deadline exceeded carries the last discrepancies", func(t *testing.T) {
		cl := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).Build()
		v := NewValidator(cl, testLogger())

		start := time.Now()
		err := v.WaitReady(ctx, []*unstructured.Unstructured{
			newStatefulSet("metacontroller", "test-ns", 1, 1),
		}, fastWaitOptions(50*time.Millisecond))
		elapsed := time.Since(start)

		var deadline *DeadlineError
		if !errors.As(err, &deadline) {
			t.Fatalf("expected DeadlineError, got %v", err)
		}
		if len(deadline.Outcome.Discrepancies) != 1 {
			t.Errorf("expected the missing StatefulSet in the outcome, got %v", deadline.Outcome.Discrepancies)
		}
		if deadline.Attempts < 2 {
			t.Errorf("expected multiple attempts before the deadline, got %d", deadline.Attempts)
		}
		// Bounded: the deadline plus at most one capped backoff interval.
		if elapsed > 500*time.Millisecond {
			t.Errorf("wait ran far past its deadline: %s", elapsed)
		}
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		cl := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).Build()
		v := NewValidator(cl, testLogger())

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		err := v.WaitReady(cancelCtx, []*unstructured.Unstructured{
			newStatefulSet("metacontroller", "test-ns", 1, 1),
		}, fastWaitOptions(time.Second))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
