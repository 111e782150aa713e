// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/charmed-kubeflow/metacontroller-operator/internal/config"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/kubernetes"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/logging"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/manifest"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/metrics"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/operator"
	"github.com/charmed-kubeflow/metacontroller-operator/internal/resource"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newFlagSet defines the CLI surface. The config path and kubeconfig are
// bootstrap settings with their own environment variables; everything else
// layers through the config loader and its MCO__ overrides.
func newFlagSet() (flags *pflag.FlagSet, configPath, kubeconfig *string) {
	flags = pflag.NewFlagSet("metacontroller-operator", pflag.ContinueOnError)
	configPath = flags.String("config", os.Getenv("MCO_CONFIG_PATH"),
		"Path to the YAML config file (env MCO_CONFIG_PATH, distinct from the MCO__ key overrides)")
	kubeconfig = flags.String("kubeconfig", os.Getenv("KUBECONFIG"),
		"Path to kubeconfig (for local development, defaults to in-cluster config)")
	flags.String("app-name", "", "Application name substituted into manifests")
	flags.String("namespace", "", "Namespace the controller workload is deployed into")
	flags.String("image", "", "Metacontroller image reference")
	flags.String("manifests-dir", "", "Directory holding the manifest templates")
	flags.Bool("leader", true, "Whether this unit holds leadership")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	return flags, configPath, kubeconfig
}

func run() error {
	flags, configPath, kubeconfig := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.NewContext(ctx, logger)

	logger.Info("starting metacontroller operator",
		"app", cfg.App.Name, "namespace", cfg.App.Namespace, "image", cfg.App.Image)

	k8sClient, err := kubernetes.NewClient(*kubeconfig)
	if err != nil {
		return err
	}
	if *kubeconfig != "" {
		logger.Info("Kubernetes client created", "mode", "out-of-cluster", "kubeconfig", *kubeconfig)
	} else {
		logger.Info("Kubernetes client created", "mode", "in-cluster")
	}

	renderer := manifest.NewRenderer(cfg.Manifests.Dir, manifest.Context{
		AppName:   cfg.App.Name,
		Namespace: cfg.App.Namespace,
		Image:     cfg.App.Image,
	})

	m := metrics.New()
	cell := &operator.Cell{}

	op := operator.New(
		k8sClient,
		renderer,
		operator.StaticLeadership(cfg.Leadership.Leader),
		cell,
		resource.WaitOptions{
			Timeout:       cfg.Install.Timeout,
			BackoffBase:   cfg.Install.BackoffBase,
			BackoffCap:    cfg.Install.BackoffCap,
			BackoffFactor: cfg.Install.BackoffFactor,
		},
		m,
		logging.Component(logger, "operator"),
	)
	dispatcher := operator.NewDispatcher(op, m, logging.Component(logger, "dispatcher"))

	var serveErr chan error
	if cfg.Metrics.Enabled {
		serveErr = make(chan error, 1)
		srvErr := serveErr
		go func() {
			srvErr <- metrics.Serve(ctx, m, cfg.Metrics.Port, cfg.Metrics.Path, map[string]http.Handler{
				"/status": cell.Handler(),
			}, logging.Component(logger, "metrics"))
		}()
	}

	if err := dispatcher.Dispatch(ctx, operator.TriggerInstall); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}

	return runLoop(ctx, dispatcher.Dispatch, serveErr, cfg.Status.UpdateInterval, logger)
}

// runLoop drives periodic drift detection until ctx is cancelled or the
// metrics server fails. Periodic dispatch stands in for the hosting
// runtime's update-status events.
//
// serveErr carries the metrics server's single result and may be nil when no
// server runs. Once the result is consumed the channel variable is nilled so
// shutdown never waits on a send that already happened.
func runLoop(ctx context.Context, dispatch func(context.Context, string) error, serveErr chan error, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			if serveErr != nil {
				if err := <-serveErr; err != nil {
					return err
				}
			}
			return nil
		case err := <-serveErr:
			serveErr = nil
			if err != nil {
				return err
			}
		case <-ticker.C:
			if err := dispatch(ctx, operator.TriggerUpdateStatus); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				return fmt.Errorf("update-status failed: %w", err)
			}
		}
	}
}
