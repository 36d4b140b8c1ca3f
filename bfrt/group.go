// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfrt

import (
	"log/slog"
	"math"
)

// chooseWorkGroupBucket partitions the reduced candidates into breakpoint
// groups by repeated passes with a progressively relaxed threshold.
//
// Every pass admits into the current group each remaining candidate whose
// breakpoint satisfies 𝑚ⱼ𝑑ⱼ ≤ 𝛉×𝛂ⱼ for the pass threshold 𝛉, accumulating
// the bound-range change 𝛂ⱼ×𝑟ⱼ, and tracks over the rejected candidates
// the smallest threshold (𝑚ⱼ𝑑ⱼ+𝚃𝚍)/𝛂ⱼ that would admit one next pass.
// Passes stop once the accumulated change covers the required step or all
// candidates are grouped.
//
// The pass threshold never decreases. A pass that changes neither the
// grouped count nor the thresholds can therefore never make progress again:
// this stagnation is reported as failure instead of looping forever.
func (c *Chooser) chooseWorkGroupBucket(w *Workspace, b *Basis) bool {
	fullCount := w.workCount
	w.workCount = 0
	totalChange := initChange
	totalDelta := math.Abs(w.delta)
	selectTheta := w.theta
	w.workGroup = append(w.workGroup[:0], 0)
	w.passTheta = w.passTheta[:0]

	prevCount := w.workCount
	prevRemain := initRemain
	prevSelect := selectTheta

	for selectTheta < maxTheta {
		w.passTheta = append(w.passTheta, selectTheta)
		remainTheta := initRemain
		for i := w.workCount; i < fullCount; i++ {
			col := w.workData[i].Col
			value := w.workData[i].Value
			dual := float64(b.Move[col]) * b.Dual[col]
			if dual <= selectTheta*value {
				w.workData[w.workCount], w.workData[i] = w.workData[i], w.workData[w.workCount]
				w.workCount++
				totalChange += value * b.Range[col]
			} else if dual+c.td < remainTheta*value {
				remainTheta = (dual + c.td) / value
			}
		}
		w.workGroup = append(w.workGroup, w.workCount)

		selectTheta = remainTheta
		if w.workCount == prevCount && prevSelect == selectTheta && prevRemain == remainTheta {
			c.logger.Warn("dual ratio test stalled on degenerate row",
				slog.Int("pass", len(w.passTheta)),
				slog.Int("grouped", w.workCount),
				slog.Int("candidates", fullCount),
				slog.Float64("selectTheta", selectTheta),
				slog.Float64("remainTheta", remainTheta))
			return false
		}
		prevCount = w.workCount
		prevRemain = remainTheta
		prevSelect = selectTheta

		if totalChange >= totalDelta || w.workCount == fullCount {
			break
		}
	}
	return true
}

// chooseWorkGroupHeap re-derives the group partition of the reduced
// candidates independently: the candidates are ordered by breakpoint ratio
// with a heap sort, then swept in order, opening a new group whenever a
// candidate exceeds the running threshold. The result exists only to
// cross-validate the bucket partition and never drives the choice.
func (c *Chooser) chooseWorkGroupHeap(w *Workspace, b *Basis) {
	fullCount := w.altCount
	totalChange := initChange
	totalDelta := math.Abs(w.delta)
	selectTheta := w.theta

	heapCount := 0
	for i := 0; i < fullCount; i++ {
		col := w.origData[i].Col
		value := w.origData[i].Value
		dual := float64(b.Move[col]) * b.Dual[col]
		if ratio := dual / value; ratio < maxTheta {
			heapCount++
			w.heapIdx[heapCount] = i
			w.heapVal[heapCount] = ratio
		}
	}
	maxHeapSort(w.heapVal, w.heapIdx, heapCount)

	w.altCount = 0
	w.altGroup = append(w.altGroup[:0], 0)
	groupFirst := 0
	for en := 1; en <= heapCount; en++ {
		i := w.heapIdx[en]
		col := w.origData[i].Col
		value := w.origData[i].Value
		dual := float64(b.Move[col]) * b.Dual[col]
		if dual > selectTheta*value {
			// Breakpoint opens the next group: close the current one and
			// relax the threshold to admit this candidate.
			w.altGroup = append(w.altGroup, w.altCount)
			groupFirst = w.altCount
			selectTheta = (dual + c.td) / value
			if totalChange >= totalDelta {
				break
			}
		}
		w.altData[w.altCount] = Candidate{col, value}
		w.altCount++
		totalChange += value * b.Range[col]
	}
	if w.altCount > groupFirst {
		w.altGroup = append(w.altGroup, w.altCount)
	}
}

// chooseLargeAlpha picks the pivot from a grouped candidate list.
//
// Scanning groups from the loosest threshold backward, the winner of each
// group is its largest coefficient; an exact tie is broken toward the
// column with the smaller permutation value. The first group whose winner
// exceeds 𝚖𝚒𝚗(0.1×𝚖𝚊𝚡ⱼ𝛂ⱼ, 1) breaks the scan: its winner is the pivot and
// every earlier group becomes flip material. The backward scan biases the
// choice toward large, numerically safe pivots even when that means a
// longer dual step than the tightest breakpoint.
func chooseLargeAlpha(b *Basis, data []Candidate, group []int) (breakIndex, breakGroup int) {
	finalCompare := zero
	for i := range data {
		finalCompare = math.Max(finalCompare, data[i].Value)
	}
	finalCompare = math.Min(0.1*finalCompare, one)

	breakIndex, breakGroup = -1, -1
	for g := len(group) - 2; g >= 0; g-- {
		maxFinal := zero
		iFinal := -1
		for i := group[g]; i < group[g+1]; i++ {
			if maxFinal < data[i].Value {
				maxFinal = data[i].Value
				iFinal = i
			} else if maxFinal == data[i].Value && iFinal >= 0 {
				// Exact tie: identical structural coefficients produce
				// bit-equal alphas, so no epsilon is wanted here.
				jCol := data[iFinal].Col
				iCol := data[i].Col
				if b.Permutation[iCol] < b.Permutation[jCol] {
					iFinal = i
				}
			}
		}
		if iFinal >= 0 && data[iFinal].Value > finalCompare {
			breakIndex = iFinal
			breakGroup = g
			return
		}
	}
	return
}

// maxHeapSort sorts v[1:n+1] ascending, permuting ix alongside.
// The arrays are 1-based: entry 0 is unused.
func maxHeapSort(v []float64, ix []int, n int) {
	for i := n / 2; i >= 1; i-- {
		siftDown(v, ix, i, n)
	}
	for i := n; i > 1; i-- {
		v[1], v[i] = v[i], v[1]
		ix[1], ix[i] = ix[i], ix[1]
		siftDown(v, ix, 1, i-1)
	}
}

func siftDown(v []float64, ix []int, root, last int) {
	for {
		child := 2 * root
		if child > last {
			return
		}
		if child < last && v[child+1] > v[child] {
			child++
		}
		if v[root] >= v[child] {
			return
		}
		v[root], v[child] = v[child], v[root]
		ix[root], ix[child] = ix[child], ix[root]
		root = child
	}
}
