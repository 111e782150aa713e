// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"path/filepath"
	"strings"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

var testContext = Context{
	AppName:   "metacontroller-operator",
	Namespace: "test-ns",
	Image:     "metacontroller/metacontroller:v0.3.0",
}

func TestRender(t *testing.T) {
	r := NewRenderer("testdata", testContext)

	t.Run("substitutes context into rendered objects", func(t *testing.T) {
		objs, err := r.Render(GroupController)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(objs) != 1 {
			t.Fatalf("expected one object, got %d", len(objs))
		}

		sts := objs[0]
		if sts.GetKind() != "StatefulSet" {
			t.Errorf("expected StatefulSet, got %s", sts.GetKind())
		}
		if sts.GetName() != testContext.AppName {
			t.Errorf("expected name %q, got %q", testContext.AppName, sts.GetName())
		}
		if sts.GetNamespace() != testContext.Namespace {
			t.Errorf("expected namespace %q, got %q", testContext.Namespace, sts.GetNamespace())
		}

		containers, _, err := unstructured.NestedSlice(sts.Object, "spec", "template", "spec", "containers")
		if err != nil || len(containers) != 1 {
			t.Fatalf("expected one container: %v", err)
		}
		image := containers[0].(map[string]any)["image"]
		if image != testContext.Image {
			t.Errorf("expected image %q, got %q", testContext.Image, image)
		}
	})

	t.Run("splits multi-document manifests", func(t *testing.T) {
		objs, err := r.Render(GroupRBAC)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(objs) != 2 {
			t.Fatalf("expected two objects, got %d", len(objs))
		}
		if objs[0].GetKind() != "ServiceAccount" || objs[1].GetKind() != "ClusterRole" {
			t.Errorf("unexpected kinds: %s, %s", objs[0].GetKind(), objs[1].GetKind())
		}
	})

	t.Run("rendering is deterministic", func(t *testing.T) {
		first, err := r.RenderAll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := r.RenderAll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(first) != len(second) {
			t.Fatalf("non-deterministic object count: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].GetKind() != second[i].GetKind() || first[i].GetName() != second[i].GetName() {
				t.Errorf("object %d differs across renders", i)
			}
		}
	})

	t.Run("unknown group is rejected", func(t *testing.T) {
		if _, err := r.Render("webhooks"); err == nil {
			t.Fatal("expected error for unknown group")
		}
	})

	t.Run("nameless object is rejected", func(t *testing.T) {
		bad := NewRenderer(filepath.Join("testdata", "nameless"), testContext)
		_, err := bad.Render(GroupRBAC)
		if err == nil || !strings.Contains(err.Error(), "metadata.name") {
			t.Fatalf("expected nameless rejection, got %v", err)
		}
	})
}

func TestRenderAllOrder(t *testing.T) {
	r := NewRenderer("testdata", testContext)

	objs, err := r.RenderAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var kinds []string
	for _, obj := range objs {
		kinds = append(kinds, obj.GetKind())
	}
	// RBAC before CRDs before the controller workload.
	want := []string{"ServiceAccount", "ClusterRole", "CustomResourceDefinition", "StatefulSet"}
	if len(kinds) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected kinds %v, got %v", want, kinds)
		}
	}
}

// The shipped manifests must render cleanly with a realistic context.
func TestShippedManifests(t *testing.T) {
	r := NewRenderer(filepath.Join("..", "..", "manifests"), testContext)

	objs, err := r.RenderAll()
	if err != nil {
		t.Fatalf("shipped manifests failed to render: %v", err)
	}
	if len(objs) < 5 {
		t.Fatalf("expected the full resource set, got %d objects", len(objs))
	}

	for _, obj := range objs {
		if obj.GetName() == "" {
			t.Errorf("%s has no name", obj.GetKind())
		}
	}
}
