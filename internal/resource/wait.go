// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
)

// WaitOptions configure the bounded readiness wait during install.
type WaitOptions struct {
	// Timeout bounds the cumulative wall-clock time spent waiting.
	Timeout time.Duration
	// BackoffBase is the first interval between validation attempts.
	BackoffBase time.Duration
	// BackoffCap is the maximum interval between validation attempts.
	BackoffCap time.Duration
	// BackoffFactor is the per-attempt interval multiplier.
	BackoffFactor float64
	// Clock is the time source; defaults to the real clock.
	Clock clock.Clock
}

// DefaultWaitOptions returns the standard install wait behaviour: exponential
// backoff from 100ms, doubling, capped at 15s per attempt, for up to 150s.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:       150 * time.Second,
		BackoffBase:   100 * time.Millisecond,
		BackoffCap:    15 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (o WaitOptions) withDefaults() WaitOptions {
	def := DefaultWaitOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = def.BackoffBase
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = def.BackoffCap
	}
	if o.BackoffFactor <= 1 {
		o.BackoffFactor = def.BackoffFactor
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	return o
}

// DeadlineError reports that resources did not all become ready before the
// wait deadline. It carries the last validation pass's discrepancies.
type DeadlineError struct {
	Elapsed  time.Duration
	Attempts int
	Outcome  Outcome
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("resources not ready after %s (%d attempts): %s",
		e.Elapsed.Round(time.Millisecond), e.Attempts, strings.Join(e.Outcome.Discrepancies, "; "))
}

// WaitReady repeatedly validates the expected resources until every one is
// present and healthy, sleeping with exponential backoff between attempts.
// It returns nil as soon as one pass is fully OK, a *DeadlineError once the
// cumulative elapsed time exceeds the timeout, or the context error if ctx
// is cancelled. The call blocks the caller for up to the timeout; the
// triggering lifecycle event is not handled until it returns.
func (v *Validator) WaitReady(ctx context.Context, expected []*unstructured.Unstructured, opts WaitOptions) error {
	opts = opts.withDefaults()

	backoff := wait.Backoff{
		Duration: opts.BackoffBase,
		Factor:   opts.BackoffFactor,
		Cap:      opts.BackoffCap,
		Steps:    math.MaxInt32,
	}

	start := opts.Clock.Now()
	attempts := 0
	for {
		attempts++
		v.logger.Info("checking expected resources", "attempt", attempts)

		out, err := v.Validate(ctx, expected)
		if err != nil {
			return err
		}
		if out.OK() {
			return nil
		}

		elapsed := opts.Clock.Since(start)
		if elapsed >= opts.Timeout {
			return &DeadlineError{Elapsed: elapsed, Attempts: attempts, Outcome: out}
		}

		interval := backoff.Step()
		v.logger.Info("resources not ready yet, retrying",
			"attempt", attempts, "problems", len(out.Discrepancies), "wait", interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-opts.Clock.After(interval):
		}
	}
}
