// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest renders the add-on's manifest templates into cluster objects.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
)

// Resource group names, applied strictly in this order during install. The
// controller workload's service account depends on the RBAC objects existing.
const (
	GroupRBAC       = "rbac"
	GroupCRDs       = "crds"
	GroupController = "controller"
)

// Groups lists all resource groups in apply order.
var Groups = []string{GroupRBAC, GroupCRDs, GroupController}

// groupFiles maps each resource group to its template file.
var groupFiles = map[string]string{
	GroupRBAC:       "metacontroller-rbac.yaml",
	GroupCRDs:       "metacontroller-crds-v1.yaml",
	GroupController: "metacontroller.yaml",
}

// Context carries the values substituted into manifest templates.
type Context struct {
	AppName   string
	Namespace string
	Image     string
}

// Renderer renders manifest templates into unstructured cluster objects.
// Rendering is pure: identical inputs produce identical objects.
type Renderer struct {
	dir string
	ctx Context
}

// NewRenderer creates a renderer over the template directory.
func NewRenderer(dir string, ctx Context) *Renderer {
	return &Renderer{dir: dir, ctx: ctx}
}

// Render renders the named resource group into cluster objects.
func (r *Renderer) Render(group string) ([]*unstructured.Unstructured, error) {
	file, ok := groupFiles[group]
	if !ok {
		return nil, fmt.Errorf("unknown resource group %q", group)
	}

	raw, err := os.ReadFile(filepath.Join(r.dir, file))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest template for %s: %w", group, err)
	}

	tmpl, err := template.New(file).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest template for %s: %w", group, err)
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, r.ctx); err != nil {
		return nil, fmt.Errorf("failed to render manifest template for %s: %w", group, err)
	}

	objs, err := decodeAll(&rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered manifests for %s: %w", group, err)
	}
	return objs, nil
}

// RenderAll renders every resource group in apply order.
func (r *Renderer) RenderAll() ([]*unstructured.Unstructured, error) {
	var objs []*unstructured.Unstructured
	for _, group := range Groups {
		rendered, err := r.Render(group)
		if err != nil {
			return nil, err
		}
		objs = append(objs, rendered...)
	}
	return objs, nil
}

// decodeAll decodes a multi-document YAML stream into unstructured objects.
// Empty documents are skipped; objects without a kind or name are rejected
// before they can reach the applier or validator.
func decodeAll(rd io.Reader) ([]*unstructured.Unstructured, error) {
	decoder := yamlutil.NewYAMLOrJSONDecoder(rd, 4096)

	var objs []*unstructured.Unstructured
	for {
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if len(raw) == 0 {
			continue
		}

		obj := &unstructured.Unstructured{Object: raw}
		if obj.GetKind() == "" {
			return nil, fmt.Errorf("manifest document has no kind")
		}
		if obj.GetName() == "" {
			return nil, fmt.Errorf("%s manifest has no metadata.name", obj.GetKind())
		}
		objs = append(objs, obj)
	}
	return objs, nil
}
