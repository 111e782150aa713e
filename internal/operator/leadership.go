// Copyright 2026 The Metacontroller Operator Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import "context"

// LeadershipChecker answers the per-trigger leader query. Leader election
// itself is the hosting runtime's concern; the operator only consumes the
// verdict, once per trigger, and performs no mutating work as a non-leader.
type LeadershipChecker interface {
	IsLeader(ctx context.Context) (bool, error)
}

// StaticLeadership is a fixed leadership verdict, for deployments where the
// hosting runtime communicates leadership through configuration, and for
// tests.
type StaticLeadership bool

// IsLeader implements LeadershipChecker.
func (s StaticLeadership) IsLeader(context.Context) (bool, error) {
	return bool(s), nil
}
