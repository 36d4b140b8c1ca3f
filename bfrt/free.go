// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfrt

import (
	"math"
	"slices"
)

// FreeTracker maintains the set of nonbasic columns that are free on both
// sides. A free column carries no natural move sign, so it is assigned a
// provisional one against the current pivot row before a ratio test and
// reset to neutral once the pivot step completes. Membership changes only
// at pivot boundaries.
//
// The set is a plain sorted slice: membership, insert and erase are all
// binary-search driven and iteration is ascending by column.
type FreeTracker struct {
	cols []int
}

// Rebuild scans all columns and collects the nonbasic ones with both
// bounds infinite.
func (t *FreeTracker) Rebuild(b *Basis) {
	t.cols = t.cols[:0]
	for col := range b.Flag {
		if b.Flag[col] != 0 &&
			math.IsInf(b.Lower[col], -1) && math.IsInf(b.Upper[col], 1) {
			t.cols = append(t.cols, col)
		}
	}
}

// Insert adds a column that became free.
func (t *FreeTracker) Insert(col int) {
	if i, ok := slices.BinarySearch(t.cols, col); !ok {
		t.cols = slices.Insert(t.cols, i, col)
	}
}

// Remove erases a column that left the free state, e.g. became basic.
func (t *FreeTracker) Remove(col int) {
	if i, ok := slices.BinarySearch(t.cols, col); ok {
		t.cols = slices.Delete(t.cols, i, i+1)
	}
}

// Len reports the number of free columns.
func (t *FreeTracker) Len() int {
	return len(t.cols)
}

// Columns returns the free columns in ascending order.
// The slice aliases tracker memory and is valid until the next change.
func (t *FreeTracker) Columns() []int {
	return t.cols
}

// AssignMove gives every free column a provisional move sign for a dual
// step with requested change delta: the sign of its dot product with the
// pivot row, taken only when the dot product clears the drift tolerance
// of the current update-count tier. Columns below the tolerance keep
// their neutral sign and stay out of the ratio test.
func (t *FreeTracker) AssignMove(b *Basis, row *Vector, delta float64, dot func(row *Vector, col int) float64) {
	if len(t.cols) == 0 {
		return
	}
	ta := driftTol(b.UpdateCount)
	sourceOut := one
	if delta < zero {
		sourceOut = -one
	}
	for _, col := range t.cols {
		alpha := dot(row, col)
		if math.Abs(alpha) > ta {
			if alpha*sourceOut > zero {
				b.Move[col] = 1
			} else {
				b.Move[col] = -1
			}
		}
	}
}

// ResetMove returns every free column to the neutral move sign once the
// pivot step completes.
func (t *FreeTracker) ResetMove(b *Basis) {
	for _, col := range t.cols {
		b.Move[col] = 0
	}
}
