// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/charmed-kubeflow/metacontroller-operator/internal/kubernetes"
)

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("routes named triggers to handlers", func(t *testing.T) {
		// A non-leader answers every trigger with Waiting, which proves the
		// routing without needing cluster state.
		cl := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).Build()
		op, recorder := newTestOperator(cl, false)
		d := NewDispatcher(op, nil, testLogger())

		for _, trigger := range []string{TriggerInstall, TriggerUpdateStatus, TriggerRemove} {
			if err := d.Dispatch(ctx, trigger); err != nil {
				t.Fatalf("dispatch %s: %v", trigger, err)
			}
		}
		assertStates(t, recorder.all(),
			StatusWaitingForLeadership, StatusWaitingForLeadership, StatusWaitingForLeadership)
	})

	t.Run("remove propagates not-supported", func(t *testing.T) {
		cl := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).Build()
		op, _ := newTestOperator(cl, true)
		d := NewDispatcher(op, nil, testLogger())

		if err := d.Dispatch(ctx, TriggerRemove); !errors.Is(err, ErrRemoveNotSupported) {
			t.Fatalf("expected ErrRemoveNotSupported, got %v", err)
		}
	})

	t.Run("unknown trigger is rejected", func(t *testing.T) {
		cl := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).Build()
		op, _ := newTestOperator(cl, true)
		d := NewDispatcher(op, nil, testLogger())

		err := d.Dispatch(ctx, "upgrade")
		if err == nil || !strings.Contains(err.Error(), "unknown lifecycle trigger") {
			t.Fatalf("expected unknown-trigger error, got %v", err)
		}
	})
}
