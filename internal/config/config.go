// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/charmed-kubeflow/metacontroller-operator/internal/logging"
)

// DefaultControllerImage is the metacontroller image deployed when none is configured.
const DefaultControllerImage = "metacontroller/metacontroller:v0.3.0"

// Config is the top-level configuration for the operator.
type Config struct {
	// App identifies the supervised deployment.
	App AppConfig `koanf:"app"`
	// Manifests defines where manifest templates are loaded from.
	Manifests ManifestsConfig `koanf:"manifests"`
	// Install defines the readiness wait behaviour during install.
	Install InstallConfig `koanf:"install"`
	// Status defines how often drift detection runs.
	Status StatusConfig `koanf:"status"`
	// Leadership defines how the leader query is answered.
	Leadership LeadershipConfig `koanf:"leadership"`
	// Metrics defines the prometheus endpoint settings.
	Metrics MetricsConfig `koanf:"metrics"`
	// Logging defines logging settings.
	Logging logging.Config `koanf:"logging"`
}

// AppConfig identifies the application and the image it supervises.
type AppConfig struct {
	// Name is the application name substituted into manifests.
	Name string `koanf:"name"`
	// Namespace is the namespace the controller workload is deployed into.
	Namespace string `koanf:"namespace"`
	// Image is the metacontroller image reference.
	Image string `koanf:"image"`
}

// ManifestsConfig defines the manifest template location.
type ManifestsConfig struct {
	// Dir is the directory holding the manifest template files.
	Dir string `koanf:"dir"`
}

// InstallConfig defines the bounded readiness wait during install.
type InstallConfig struct {
	// Timeout is the maximum wall-clock time spent waiting for resources
	// to become ready after they have been applied.
	Timeout time.Duration `koanf:"timeout"`
	// BackoffBase is the first wait interval between validation attempts.
	BackoffBase time.Duration `koanf:"backoff_base"`
	// BackoffCap is the maximum wait interval between validation attempts.
	BackoffCap time.Duration `koanf:"backoff_cap"`
	// BackoffFactor is the multiplier applied to the interval per attempt.
	BackoffFactor float64 `koanf:"backoff_factor"`
}

// StatusConfig defines the periodic update-status trigger.
type StatusConfig struct {
	// UpdateInterval is how often the hosting loop delivers the
	// update_status trigger.
	UpdateInterval time.Duration `koanf:"update_interval"`
}

// LeadershipConfig defines how the per-trigger leader query is answered.
// Leader election itself belongs to the hosting runtime; the operator only
// consumes the verdict.
type LeadershipConfig struct {
	// Leader reports whether this unit holds leadership.
	Leader bool `koanf:"leader"`
}

// MetricsConfig defines the prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port"`
	Path    string `koanf:"path"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		App: AppConfig{
			Name:      "metacontroller-operator",
			Namespace: "metacontroller",
			Image:     DefaultControllerImage,
		},
		Manifests: ManifestsConfig{
			Dir: "manifests",
		},
		Install: InstallConfig{
			Timeout:       150 * time.Second,
			BackoffBase:   100 * time.Millisecond,
			BackoffCap:    15 * time.Second,
			BackoffFactor: 2.0,
		},
		Status: StatusConfig{
			UpdateInterval: 5 * time.Minute,
		},
		Leadership: LeadershipConfig{
			Leader: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9999,
			Path:    "/metrics",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// FlagMappings maps CLI flag names to config keys for Loader.LoadFlags.
func FlagMappings() map[string]string {
	return map[string]string{
		"app-name":      "app.name",
		"namespace":     "app.namespace",
		"image":         "app.image",
		"manifests-dir": "manifests.dir",
		"leader":        "leadership.leader",
		"log-level":     "logging.level",
	}
}

// Load loads configuration from defaults, an optional YAML file, MCO__
// environment variables and explicitly set CLI flags, then validates it.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	loader := NewLoader("MCO")

	if err := loader.LoadWithDefaults(Defaults(), configPath); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags != nil {
		if err := loader.LoadFlags(flags, FlagMappings()); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	var cfg Config
	if err := loader.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	app := NewPath("app")
	if e := MustNotBeEmpty(app.Child("name"), c.App.Name); e != nil {
		errs = append(errs, e)
	}
	if e := MustNotBeEmpty(app.Child("namespace"), c.App.Namespace); e != nil {
		errs = append(errs, e)
	}
	if e := MustNotBeEmpty(app.Child("image"), c.App.Image); e != nil {
		errs = append(errs, e)
	}

	if e := MustNotBeEmpty(NewPath("manifests").Child("dir"), c.Manifests.Dir); e != nil {
		errs = append(errs, e)
	}

	install := NewPath("install")
	if e := MustBeGreaterThan(install.Child("timeout"), c.Install.Timeout, 0); e != nil {
		errs = append(errs, e)
	}
	if e := MustBeGreaterThan(install.Child("backoff_base"), c.Install.BackoffBase, 0); e != nil {
		errs = append(errs, e)
	}
	if c.Install.BackoffCap < c.Install.BackoffBase {
		errs = append(errs, Invalid(install.Child("backoff_cap"), "must be >= install.backoff_base"))
	}
	if e := MustBeGreaterThan(install.Child("backoff_factor"), c.Install.BackoffFactor, 1.0); e != nil {
		errs = append(errs, e)
	}

	if e := MustBeGreaterThan(NewPath("status").Child("update_interval"), c.Status.UpdateInterval, 0); e != nil {
		errs = append(errs, e)
	}

	if c.Metrics.Enabled {
		metrics := NewPath("metrics")
		if e := MustBeInRange(metrics.Child("port"), c.Metrics.Port, 1, 65535); e != nil {
			errs = append(errs, e)
		}
		if e := MustNotBeEmpty(metrics.Child("path"), c.Metrics.Path); e != nil {
			errs = append(errs, e)
		}
	}

	return errs.OrNil()
}
