// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfrt

import "log/slog"

const (
	zero = 0.0
	one  = 1.0
	ten  = 10.0
)

// Pivot drift tolerance tiers. Error in the pivot row accumulates with
// every basis update since the last refactorization, so the acceptance
// threshold for a candidate coefficient widens in steps.
const (
	tightTol  = 1e-9
	mediumTol = 3e-8
	looseTol  = 1e-6

	tightLimit  = 10
	mediumLimit = 20
)

const (
	// Seed for the accumulated bound-range change, so a run of zero-range
	// candidates cannot satisfy the required step by itself.
	initChange = 1e-12
	// Initial value of the next-pass admission threshold.
	initRemain = 1e100
	// Ratios beyond this are treated as unbounded breakpoints.
	maxTheta = 1e18
)

// driftTol returns the pivot drift tolerance for the given number of
// basis updates since the last refactorization.
func driftTol(updateCount int) float64 {
	switch {
	case updateCount < tightLimit:
		return tightTol
	case updateCount < mediumLimit:
		return mediumTol
	default:
		return looseTol
	}
}

type chuzcMode int

const (
	// ChuzcOK a pivot was selected (theta may be zero for a pure bound flip).
	ChuzcOK chuzcMode = iota
	// ChuzcEmpty no candidate passed the final pivot-magnitude test.
	ChuzcEmpty
	// ChuzcStalled the grouping passes stopped making progress on a degenerate row.
	ChuzcStalled
)

type chuzcSpec struct {
	// the total number of columns (structural + logical)
	n int
	// the dual feasibility tolerance
	td float64
	// whether the heap-derived partition cross-check is enabled
	verify bool
	// diagnostic sink for divergence and stagnation events
	logger *slog.Logger
}
