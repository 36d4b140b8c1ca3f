// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfrt

import (
	"context"
	"log/slog"
	"math"
)

// crossCheck validates the bucket partition and its pivot against the
// heap-derived ones. Divergence is a correctness alarm, not an error:
// it is reported through the logger and counted on the workspace while
// the bucket result stays authoritative.
func (c *Chooser) crossCheck(w *Workspace, b *Basis, pivot int) {
	altIndex, _ := chooseLargeAlpha(b, w.altData[:w.altCount], w.altGroup)
	altPivot := -1
	if altIndex >= 0 {
		altPivot = w.altData[altIndex].Col
	}

	same := c.comparePartition(w)
	if same && altPivot == pivot {
		return
	}

	w.diverged++
	c.logger.Warn("ratio test partitions diverge",
		slog.Int("bucketPivot", pivot),
		slog.Int("heapPivot", altPivot),
		slog.Bool("partitionsEqual", same))
	if c.logger.Enabled(context.Background(), slog.LevelDebug) {
		c.reportPartition(w, b, "bucket", w.workData[:w.workCount], w.workGroup)
		c.reportPartition(w, b, "heap", w.altData[:w.altCount], w.altGroup)
	}
}

// comparePartition checks the bucket and heap partitions for equal group
// counts, equal boundaries and set-equal membership per group.
func (c *Chooser) comparePartition(w *Workspace) bool {
	if w.altCount != w.workCount {
		return false
	}
	if len(w.altGroup) != len(w.workGroup) {
		return false
	}
	for g := range w.workGroup {
		if w.workGroup[g] != w.altGroup[g] {
			return false
		}
	}

	same := true
	for g := 0; g+1 < len(w.workGroup); g++ {
		for i := w.workGroup[g]; i < w.workGroup[g+1]; i++ {
			w.mark[w.workData[i].Col] = 1
		}
		for i := w.altGroup[g]; i < w.altGroup[g+1]; i++ {
			col := w.altData[i].Col
			if w.mark[col] != 1 {
				same = false
			}
			w.mark[col] = 0
		}
		for i := w.workGroup[g]; i < w.workGroup[g+1]; i++ {
			col := w.workData[i].Col
			if w.mark[col] == 1 {
				same = false
			}
			w.mark[col] = 0
		}
	}
	return same
}

// reportPartition logs one grouped candidate list entry by entry.
func (c *Chooser) reportPartition(w *Workspace, b *Basis, name string, data []Candidate, group []int) {
	totalChange := initChange
	for g := 0; g+1 < len(group); g++ {
		for i := group[g]; i < group[g+1]; i++ {
			col := data[i].Col
			value := data[i].Value
			dual := float64(b.Move[col]) * b.Dual[col]
			totalChange += value * b.Range[col]
			c.logger.Debug("ratio test breakpoint",
				slog.String("partition", name),
				slog.Int("group", g),
				slog.Int("en", i),
				slog.Int("col", col),
				slog.Float64("dual", dual),
				slog.Float64("value", value),
				slog.Float64("ratio", dual/value),
				slog.Float64("change", totalChange))
		}
	}
	c.logger.Debug("ratio test partition",
		slog.String("partition", name),
		slog.Int("count", len(data)),
		slog.Int("groups", len(group)-1),
		slog.Float64("totalDelta", math.Abs(w.delta)))
}
