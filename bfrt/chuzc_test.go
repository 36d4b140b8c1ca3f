// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfrt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func testBasis(n int) *Basis {
	b := &Basis{
		Move:        make([]int8, n),
		Flag:        make([]int8, n),
		Dual:        make([]float64, n),
		Value:       make([]float64, n),
		Lower:       make([]float64, n),
		Upper:       make([]float64, n),
		Range:       make([]float64, n),
		Permutation: make([]int, n),
		DevexIndex:  make([]float64, n),
		CostScale:   one,
	}
	for i := range b.Permutation {
		b.Permutation[i] = i
		b.Move[i] = 1
		b.Flag[i] = 1
		b.Range[i] = one
		b.DevexIndex[i] = one
	}
	return b
}

func denseRow(values []float64) *Vector {
	row := &Vector{Count: len(values), Array: values}
	for i := range values {
		row.Index = append(row.Index, i)
	}
	return row
}

func newChooser(t *testing.T, p Problem) *Chooser {
	t.Helper()
	c, err := p.New()
	require.NoError(t, err)
	return c
}

func TestProblemValidation(t *testing.T) {
	_, err := (&Problem{Columns: 0, DualTolerance: 1e-7}).New()
	require.Error(t, err)
	_, err = (&Problem{Columns: 3, DualTolerance: -1}).New()
	require.Error(t, err)
	_, err = (&Problem{Columns: 3, DualTolerance: math.NaN()}).New()
	require.Error(t, err)
	c, err := (&Problem{Columns: 3, DualTolerance: 1e-7}).New()
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestPackOffset(t *testing.T) {
	c := newChooser(t, Problem{Columns: 5, DualTolerance: 1e-7})
	w := c.Init()

	c.Pack(w, &Vector{Count: 2, Index: []int{0, 2}, Array: []float64{1.5, 0, -2.5}}, 0)
	c.Pack(w, &Vector{Count: 1, Index: []int{1}, Array: []float64{0, 4.0}}, 3)

	require.Equal(t, 3, w.packCount)
	require.Equal(t, []int{0, 2, 4}, w.packIndex[:3])
	require.Equal(t, []float64{1.5, -2.5, 4.0}, w.packValue[:3])

	w.Clear()
	require.Zero(t, w.packCount)
	require.Zero(t, w.workCount)
}

// The worked example threaded through the remaining tests:
// row coefficients {-2,-1,-0.5} on columns {0,1,2}, all at their lower
// bound (move +1), duals {4,1,0.2}, unit ranges, and a requested change
// of -1 for the leaving variable. The signed alphas are {2,1,0.5}, the
// breakpoint ratios {2,1,0.4}.
func scenario(t *testing.T, verify bool) (*Chooser, *Workspace, *Basis) {
	t.Helper()
	c := newChooser(t, Problem{Columns: 3, DualTolerance: 1e-7, Verify: verify})
	w := c.Init()
	b := testBasis(3)
	copy(b.Dual, []float64{4, 1, 0.2})
	c.Pack(w, denseRow([]float64{-2, -1, -0.5}), 0)
	c.ChoosePossible(w, b, -1)
	return c, w, b
}

func TestChoosePossible(t *testing.T) {
	_, w, _ := scenario(t, false)

	require.Equal(t, 3, w.workCount)
	require.Equal(t, Candidate{0, 2}, w.workData[0])
	require.Equal(t, Candidate{1, 1}, w.workData[1])
	require.Equal(t, Candidate{2, 0.5}, w.workData[2])
	// 𝛉 = 𝚖𝚒𝚗( (4+𝚃𝚍)/2, (1+𝚃𝚍)/1, (0.2+𝚃𝚍)/0.5 )
	require.InDelta(t, (0.2+1e-7)/0.5, w.theta, 1e-15)
}

func TestChoosePossibleDriftTiers(t *testing.T) {
	c := newChooser(t, Problem{Columns: 1, DualTolerance: 1e-7})
	w := c.Init()
	b := testBasis(1)
	b.Dual[0] = one

	// An alpha of 1e-7 clears the tight tier but not the loose one.
	for _, tc := range []struct {
		updates int
		kept    int
	}{
		{0, 1}, {9, 1}, {10, 1}, {19, 1}, {20, 0}, {100, 0},
	} {
		w.Clear()
		b.UpdateCount = tc.updates
		c.Pack(w, denseRow([]float64{-1e-7}), 0)
		c.ChoosePossible(w, b, -1)
		require.Equal(t, tc.kept, w.workCount, "update count %d", tc.updates)
	}
}

func TestChooseFinal(t *testing.T) {
	c, w, b := scenario(t, false)
	sel := c.ChooseFinal(w, b)

	require.Equal(t, ChuzcOK, sel.Status)
	// Column 2 breaks first (ratio 0.4) and becomes flip material, column 1
	// (ratio 1) wins the break group, column 0 (ratio 2) is never grouped.
	require.Equal(t, 1, sel.Pivot)
	require.Equal(t, -1.0, sel.Alpha)
	require.Equal(t, -1.0, sel.Theta)
	require.Equal(t, []Candidate{{2, 1}}, sel.Flips)
	require.Equal(t, 1.0, sel.FlipDelta)
}

func TestChooseFinalCrossChecked(t *testing.T) {
	c, w, b := scenario(t, true)
	sel := c.ChooseFinal(w, b)

	require.Equal(t, ChuzcOK, sel.Status)
	require.Equal(t, 1, sel.Pivot)
	require.Zero(t, w.Diverged())
	// Independent derivations of the same partition.
	require.Equal(t, []int{0, 1, 2}, w.workGroup)
	require.Equal(t, []int{0, 1, 2}, w.altGroup)
}

func TestChooseFinalEmpty(t *testing.T) {
	c := newChooser(t, Problem{Columns: 2, DualTolerance: 1e-7})
	w := c.Init()
	b := testBasis(2)
	copy(b.Dual, []float64{1, 1})

	// Positive coefficients with move +1 and a negative delta give
	// negative alphas: nothing survives the filter.
	c.Pack(w, denseRow([]float64{2, 1}), 0)
	c.ChoosePossible(w, b, -1)
	require.Zero(t, w.workCount)

	sel := c.ChooseFinal(w, b)
	require.Equal(t, ChuzcEmpty, sel.Status)
	require.Equal(t, -1, sel.Pivot)
}

func TestChooseFinalZeroTheta(t *testing.T) {
	c := newChooser(t, Problem{Columns: 1, DualTolerance: 1e-4})
	w := c.Init()
	b := testBasis(1)
	// Dual inside the feasible band but on the wrong side of zero:
	// the candidate survives, but the step is a pure bound flip.
	b.Dual[0] = -5e-5

	c.Pack(w, denseRow([]float64{-2}), 0)
	c.ChoosePossible(w, b, -1)
	require.Equal(t, 1, w.workCount)

	sel := c.ChooseFinal(w, b)
	require.Equal(t, ChuzcOK, sel.Status)
	require.Equal(t, 0, sel.Pivot)
	require.Zero(t, sel.Theta)
	require.Empty(t, sel.Flips)
	require.Zero(t, sel.FlipDelta)
}

func TestJoinPack(t *testing.T) {
	c := newChooser(t, Problem{Columns: 3, DualTolerance: 1e-7})
	b := testBasis(3)
	copy(b.Dual, []float64{4, 1, 0.2})

	// The structural and logical segments of the scenario row, packed
	// separately and joined.
	w := c.Init()
	c.Pack(w, denseRow([]float64{-2, -1}), 0)
	c.ChoosePossible(w, b, -1)

	other := c.Init()
	other.Clear()
	c.Pack(other, &Vector{Count: 1, Index: []int{0}, Array: []float64{-0.5}}, 2)
	c.ChoosePossible(other, b, -1)

	c.JoinPack(w, other)
	require.Equal(t, 3, w.workCount)
	require.InDelta(t, (0.2+1e-7)/0.5, w.theta, 1e-15)

	sel := c.ChooseFinal(w, b)
	require.Equal(t, ChuzcOK, sel.Status)
	require.Equal(t, 1, sel.Pivot)
	require.Equal(t, []Candidate{{2, 1}}, sel.Flips)
}

func TestChooseIdempotent(t *testing.T) {
	c, w, b := scenario(t, false)
	first := c.ChooseFinal(w, b)

	// An unchanged snapshot must reproduce the identical choice.
	w.Clear()
	c.Pack(w, denseRow([]float64{-2, -1, -0.5}), 0)
	c.ChoosePossible(w, b, -1)
	second := c.ChooseFinal(w, b)

	require.Equal(t, first.Pivot, second.Pivot)
	require.Equal(t, first.Alpha, second.Alpha)
	require.Equal(t, first.Theta, second.Theta)
	require.Equal(t, first.Flips, second.Flips)
}

func TestWorkspaceMismatch(t *testing.T) {
	c3 := newChooser(t, Problem{Columns: 3, DualTolerance: 1e-7})
	c5 := newChooser(t, Problem{Columns: 5, DualTolerance: 1e-7})
	w := c5.Init()
	require.Panics(t, func() {
		c3.Pack(w, denseRow([]float64{1}), 0)
	})
}
