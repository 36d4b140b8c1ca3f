// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfrt

import (
	"cmp"
	"errors"
	"log/slog"
	"math"
	"slices"
)

// Vector is a sparse row with dense-addressable values:
// Index lists the positions of the nonzeros while Array holds the
// full-length value array addressed by those positions.
type Vector struct {
	Count int
	Index []int
	Array []float64
}

// Candidate is a (column, value) work pair.
// During the ratio test the value is the signed pivot coefficient 𝛂,
// in a finished flip list it is the signed bound range.
type Candidate struct {
	Col   int
	Value float64
}

// Basis bundles the caller-owned per-column arrays of the dual simplex.
// The views are read/write-shared with the chooser for the duration of a
// single call only; no component retains them across calls.
type Basis struct {
	// Move is the nonbasic move sign: +1 at lower bound, -1 at upper, 0 free or basic.
	Move []int8
	// Flag marks nonbasic columns with 1 and basic columns with 0.
	Flag []int8
	// Dual holds the working dual values, updated in place by UpdateDual.
	Dual []float64
	// Value holds the working primal values of the nonbasic columns.
	Value []float64
	// Lower and Upper are the working bounds, exchanged in place by UpdateFlip.
	Lower, Upper []float64
	// Range is Upper-Lower per column.
	Range []float64
	// Permutation is the tie-break key: on an exact tie in the pivot
	// magnitude the column with the smaller permutation value wins.
	Permutation []int
	// DevexIndex holds the devex reference framework weights.
	DevexIndex []float64
	// CostScale scales every dual objective contribution.
	CostScale float64
	// UpdateCount is the number of basis updates since the last
	// refactorization, selecting the pivot drift tolerance tier.
	UpdateCount int
}

func (b *Basis) check(n int) {
	if len(b.Move) < n || len(b.Dual) < n || len(b.Range) < n {
		panic("basis dimension not match spec")
	}
}

// Selection is the outcome of one entering-variable choice.
type Selection struct {
	// Status of the choice: ChuzcStalled and ChuzcEmpty leave the
	// remaining fields empty.
	Status chuzcMode
	// Pivot is the entering column, -1 if none was chosen.
	Pivot int
	// Alpha is the signed pivot coefficient of the entering column.
	Alpha float64
	// Theta is the dual step length. Zero means a pure bound flip:
	// the flip list is empty and no basis change takes place.
	Theta float64
	// Flips lists the columns to flip to their opposite bound before the
	// pivot, as (column, move×range) pairs in ascending column order.
	// The slice aliases workspace memory and is valid until the next call.
	Flips []Candidate
	// FlipDelta is the summed signed bound-range change of the flip list.
	FlipDelta float64
}

// Problem specifies the dimensions and tolerances of the selection core.
type Problem struct {
	// Columns is the total number of columns, structural plus logical.
	Columns int
	// DualTolerance is the dual feasibility tolerance 𝚃𝚍:
	// a dual value is treated as feasible-signed within ±𝚃𝚍.
	DualTolerance float64
	// Verify enables the heap-derived cross-check of the bucket partition.
	// The check re-derives the group partition with an independent
	// algorithm on every choice and reports divergence through the logger.
	Verify bool
	// Logger is used for divergence and stagnation diagnostics.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// New creates a new entering-variable chooser for the given problem.
func (p *Problem) New() (chooser *Chooser, err error) {

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case p.Columns <= 0:
		err = errors.New("column number must greater than 0")
	case math.IsNaN(p.DualTolerance) || p.DualTolerance < zero:
		err = errors.New("dual tolerance must not less than 0")
	}

	if err != nil {
		return
	}

	chooser = &Chooser{
		chuzcSpec{
			n:      p.Columns,
			td:     p.DualTolerance,
			verify: p.Verify,
			logger: logger,
		},
	}
	return
}

// Chooser selects the entering variable for one dual simplex iteration (CHUZC).
//
// Given the pivot row 𝐚 of the leaving variable, the candidates are the
// nonbasic columns whose signed coefficient 𝛂ⱼ = 𝐚ⱼ×𝑠×𝑚ⱼ clears the drift
// tolerance, where 𝑠 is the sign of the requested change 𝛅 of the leaving
// variable and 𝑚ⱼ the nonbasic move sign. Each candidate caps the dual step
// at the breakpoint 𝛉ⱼ = 𝑚ⱼ𝑑ⱼ/𝛂ⱼ where its dual value 𝑑ⱼ changes sign.
//
// A textbook ratio test stops at the smallest breakpoint, which stalls on
// degenerate (zero-range or tied) candidates. Instead the candidates are
// partitioned into groups by progressively relaxed breakpoint thresholds
// (bound-flipping ratio test): every group admitted before the chosen one
// is flipped to its opposite bound rather than pivoted, extending the dual
// step while the accumulated bound-range change restores feasibility of
// the leaving variable. Within the admissible groups the pivot is chosen
// by largest 𝛂 to keep the basis update numerically stable, even when this
// accepts a larger dual step than the tightest breakpoint.
//
// A choice runs as
//
//	Pack → ChoosePossible → [JoinPack] → ChooseFinal
//
// followed by UpdateFlip, UpdateDual and ComputeDevexWeight once the
// caller has committed to the selection.
//
// # Reference
//
// A. Koberstein: "Progress in the dual simplex algorithm for solving large
// scale LP problems: techniques for a fast and stable implementation".
// Computational Optimization and Applications 41, 2008.
//
// P.E. Gill, W. Murray, M.A. Saunders, M.H. Wright: "A practical
// anti-cycling procedure for linearly constrained optimization".
// Mathematical Programming 45, 1989.
//
// Q. Huangfu, J.A.J. Hall: "Parallelizing the dual revised simplex method".
// Mathematical Programming Computation 10, 2018.
type Chooser struct {
	chuzcSpec
}

// Workspace holds the scratch buffers of one ratio test invocation.
// The buffers are reset, not reallocated, between calls.
// To avoid race conditions, separate workspaces need to be created for
// each goroutine. But multiple workspaces could share one chooser.
type Workspace struct {
	n int
	chuzcCtx
}

type chuzcCtx struct {
	// packed pivot row
	packCount int
	packIndex []int
	packValue []float64

	// filtered candidates and their group partition
	workCount int
	workData  []Candidate
	workGroup []int

	// loose bound on the dual step from the candidate filter
	theta float64
	// requested change of the leaving variable
	delta float64

	// admission threshold at the start of every bucket pass
	passTheta []float64

	// heap-derived partition scratch (cross-check)
	origData []Candidate
	altCount int
	altData  []Candidate
	altGroup []int
	heapIdx  []int
	heapVal  []float64
	mark     []int8

	// cross-check divergence events since Init
	diverged int
}

// Init allocates a workspace sized for the chooser's column range.
func (c *Chooser) Init() *Workspace {
	w := new(Workspace)
	w.n = c.n
	w.packIndex = make([]int, c.n)
	w.packValue = make([]float64, c.n)
	w.workData = make([]Candidate, c.n)
	w.workGroup = make([]int, 0, 8)
	w.theta = math.Inf(1)
	if c.verify {
		w.origData = make([]Candidate, 0, c.n)
		w.altData = make([]Candidate, c.n)
		w.altGroup = make([]int, 0, 8)
		w.heapIdx = make([]int, c.n+1)
		w.heapVal = make([]float64, c.n+1)
		w.mark = make([]int8, c.n)
	}
	return w
}

// Clear resets the packed row and candidate buffers.
// Call it between independent ratio tests sharing one workspace.
func (w *Workspace) Clear() {
	w.packCount = 0
	w.workCount = 0
}

// Diverged reports how many cross-check divergence events were observed
// on this workspace since Init.
func (w *Workspace) Diverged() int {
	return w.diverged
}

// Pack appends the nonzeros of row to the packed buffer, shifting every
// index by offset. The offset maps a row segment addressed in a different
// column range (the logical part of a combined row) onto basis columns.
// No filtering happens here.
func (c *Chooser) Pack(w *Workspace, row *Vector, offset int) {
	if w.n != c.n {
		panic("workspace dimension not match spec")
	}
	for i := 0; i < row.Count; i++ {
		index := row.Index[i]
		w.packIndex[w.packCount] = index + offset
		w.packValue[w.packCount] = row.Array[index]
		w.packCount++
	}
}

// ChoosePossible filters the packed row down to the ratio test candidates
// for a requested change delta of the leaving variable.
//
// A packed entry survives when its signed coefficient 𝛂 = 𝐚ⱼ×𝑠×𝑚ⱼ exceeds
// the drift tolerance of the current update-count tier. Surviving entries
// establish the loose dual step bound 𝛉 = 𝚖𝚒𝚗ⱼ (𝑚ⱼ𝑑ⱼ+𝚃𝚍)/𝛂ⱼ.
func (c *Chooser) ChoosePossible(w *Workspace, b *Basis, delta float64) {
	if w.n != c.n {
		panic("workspace dimension not match spec")
	}
	b.check(c.n)

	ta := driftTol(b.UpdateCount)
	sourceOut := one
	if delta < zero {
		sourceOut = -one
	}
	w.delta = delta
	w.theta = math.Inf(1)
	w.workCount = 0
	for i := 0; i < w.packCount; i++ {
		col := w.packIndex[i]
		move := float64(b.Move[col])
		alpha := w.packValue[i] * sourceOut * move
		if alpha > ta {
			w.workData[w.workCount] = Candidate{col, alpha}
			w.workCount++
			relax := b.Dual[col]*move + c.td
			if w.theta*alpha > relax {
				w.theta = relax / alpha
			}
		}
	}
}

// JoinPack concatenates the filtered candidates of a companion row segment
// onto w and keeps the tighter of the two dual step bounds. The combined
// segments must partition the column range of the chooser.
func (c *Chooser) JoinPack(w, other *Workspace) {
	copy(w.workData[w.workCount:], other.workData[:other.workCount])
	w.workCount += other.workCount
	w.theta = math.Min(w.theta, other.theta)
}

// ChooseFinal runs the grouped ratio test over the filtered candidates and
// picks the entering column.
//
// It will
//
//	(1) reduce the candidates to a small collection by large-step thresholds
//	(2) partition the collection into breakpoint groups (small-step passes)
//	(3) choose the pivot by largest 𝛂 over the admissible groups
//	(4) turn the groups before the pivot's into the bound flip list
//
// A ChuzcStalled status reports a degenerate row on which the grouping
// passes cannot make progress; the caller must treat it as a breakdown of
// this pivot row, not as an empty choice.
func (c *Chooser) ChooseFinal(w *Workspace, b *Basis) Selection {
	if w.n != c.n {
		panic("workspace dimension not match spec")
	}
	b.check(c.n)

	// 1. Reduce by large-step thresholds: grow the admission threshold
	// tenfold per pass until the admitted bound-range change covers the
	// required step.
	fullCount := w.workCount
	w.workCount = 0
	totalChange := zero
	totalDelta := math.Abs(w.delta)
	selectTheta := ten*w.theta + 1e-7
	for {
		for i := w.workCount; i < fullCount; i++ {
			col := w.workData[i].Col
			alpha := w.workData[i].Value
			tight := float64(b.Move[col]) * b.Dual[col]
			if alpha*selectTheta >= tight {
				w.workData[w.workCount], w.workData[i] = w.workData[i], w.workData[w.workCount]
				w.workCount++
				totalChange += b.Range[col] * alpha
			}
		}
		selectTheta *= ten
		if totalChange >= totalDelta || w.workCount == fullCount {
			break
		}
	}

	if c.verify {
		// Snapshot the reduced collection before the bucket passes permute it.
		w.origData = append(w.origData[:0], w.workData[:w.workCount]...)
		w.altCount = w.workCount
	}

	// 2. Partition by small-step passes.
	if !c.chooseWorkGroupBucket(w, b) {
		return Selection{Status: ChuzcStalled, Pivot: -1}
	}
	if c.verify {
		c.chooseWorkGroupHeap(w, b)
	}

	// 3. Choose large alpha.
	breakIndex, breakGroup := chooseLargeAlpha(b, w.workData[:w.workCount], w.workGroup)
	if breakIndex < 0 {
		return Selection{Status: ChuzcEmpty, Pivot: -1}
	}

	sourceOut := one
	if w.delta < zero {
		sourceOut = -one
	}
	pivot := w.workData[breakIndex].Col
	alpha := w.workData[breakIndex].Value * sourceOut * float64(b.Move[pivot])
	theta := zero
	if b.Dual[pivot]*float64(b.Move[pivot]) > zero {
		theta = b.Dual[pivot] / alpha
	}

	if c.verify {
		c.crossCheck(w, b, pivot)
	}

	// 4. Determine the flip list: all candidates grouped before the break
	// group move to their opposite bound.
	flipEnd := w.workGroup[breakGroup]
	w.workCount = 0
	flipDelta := zero
	for i := 0; i < flipEnd; i++ {
		col := w.workData[i].Col
		change := float64(b.Move[col]) * b.Range[col]
		w.workData[w.workCount] = Candidate{col, change}
		w.workCount++
		flipDelta += change
	}
	if theta == zero {
		// Pure bound flip of the leaving variable, nothing else moves.
		w.workCount = 0
		flipDelta = zero
	}
	flips := w.workData[:w.workCount]
	slices.SortFunc(flips, func(a, b Candidate) int {
		return cmp.Compare(a.Col, b.Col)
	})

	return Selection{
		Status:    ChuzcOK,
		Pivot:     pivot,
		Alpha:     alpha,
		Theta:     theta,
		Flips:     flips,
		FlipDelta: flipDelta,
	}
}
