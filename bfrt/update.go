// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfrt

// UpdateFlip applies the flip list of the last ChooseFinal: every listed
// column moves to its opposite bound. Each flip is handed to collect so
// the caller can fold the column's contribution into its representation
// of the basic solution; collect may be nil. The accumulated change of
// the dual objective is returned.
func (c *Chooser) UpdateFlip(w *Workspace, b *Basis, collect func(col int, change float64)) (objChange float64) {
	for _, f := range w.workData[:w.workCount] {
		objChange += f.Value * b.Dual[f.Col] * b.CostScale
		flipBound(b, f.Col)
		if collect != nil {
			collect(f.Col, f.Value)
		}
	}
	return
}

// flipBound moves a nonbasic column to its opposite bound,
// negating the move sign.
func flipBound(b *Basis, col int) {
	b.Move[col] = -b.Move[col]
	if b.Move[col] == 1 {
		b.Value[col] = b.Lower[col]
	} else {
		b.Value[col] = b.Upper[col]
	}
}

// UpdateDual applies the dual step theta to every packed column of the
// row, not just the selected candidates: every nonbasic dual shifts with
// the pivot. The accumulated change of the dual objective is returned.
func (c *Chooser) UpdateDual(w *Workspace, b *Basis, theta float64) (objChange float64) {
	for i := 0; i < w.packCount; i++ {
		col := w.packIndex[i]
		deltaDual := theta * w.packValue[i]
		b.Dual[col] -= deltaDual
		objChange += float64(b.Flag[col]) * -b.Value[col] * deltaDual * b.CostScale
	}
	return
}

// ComputeDevexWeight sums the squared reference-weighted contributions of
// the packed row over its nonbasic columns: the devex pricing weight for
// the next basis.
func (c *Chooser) ComputeDevexWeight(w *Workspace, b *Basis) (weight float64) {
	for i := 0; i < w.packCount; i++ {
		col := w.packIndex[i]
		if b.Flag[col] == 0 {
			continue
		}
		if pv := b.DevexIndex[col] * w.packValue[i]; pv != zero {
			weight += pv * pv
		}
	}
	return
}
