// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// funcApproximator predicts noise with an arbitrary function of the batch
type funcApproximator struct {
	dim     int
	predict func(x *mat.Dense, t []float64) *mat.Dense
	calls   []float64
}

func (f *funcApproximator) Dim() int {
	return f.dim
}

func (f *funcApproximator) PredictNoise(x *mat.Dense, t []float64) (*mat.Dense, error) {
	f.calls = append(f.calls, t[0])
	return f.predict(x, t), nil
}

func zeroApproximator(dim int) *funcApproximator {
	return &funcApproximator{
		dim: dim,
		predict: func(x *mat.Dense, _ []float64) *mat.Dense {
			rows, cols := x.Dims()
			return mat.NewDense(rows, cols, nil)
		},
	}
}

// originApproximator is the exact noise predictor for data concentrated at
// the origin: x_t = sqrt(1 - a_bar) eps
func originApproximator(s *Schedule, dim int) *funcApproximator {
	return &funcApproximator{
		dim: dim,
		predict: func(x *mat.Dense, t []float64) *mat.Dense {
			rows, cols := x.Dims()
			eps := mat.NewDense(rows, cols, nil)
			for i := 0; i < rows; i++ {
				step := int(math.Round(t[i] * float64(s.Steps())))
				eps.SetRow(i, x.RawRowView(i))
				row := eps.RawRowView(i)
				for j := range row {
					row[j] /= math.Sqrt(1 - s.AlphaBar[step])
				}
			}
			return eps
		},
	}
}

// scriptedRand returns value(i) for the i-th normal draw
type scriptedRand struct {
	draws int
	value func(i int) float64
}

func (s *scriptedRand) NormFloat64() float64 {
	v := s.value(s.draws)
	s.draws++
	return v
}

func (s *scriptedRand) Intn(n int) int {
	return 0
}

// learner records the arguments of every update
type learner struct {
	*funcApproximator
	xs      []*mat.Dense
	ts      [][]float64
	targets []*mat.Dense

	// fail, if not nil, is returned by the update with this index
	fail   error
	failAt int
}

func (l *learner) Update(x *mat.Dense, t []float64, target *mat.Dense) error {
	if l.fail != nil && len(l.xs) == l.failAt {
		return l.fail
	}
	l.xs = append(l.xs, mat.DenseCopyOf(x))
	l.ts = append(l.ts, append([]float64(nil), t...))
	l.targets = append(l.targets, mat.DenseCopyOf(target))
	return nil
}
