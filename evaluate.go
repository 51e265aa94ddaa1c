// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Comparison summarizes how far apart two sample sets are
type Comparison struct {
	// Mean is the euclidean distance between the sample means
	Mean float64
	// Covariance is the Frobenius norm of the difference of the covariance matrices
	Covariance float64
}

// Compare compares the first two moments of a and b, which hold one sample per row
func Compare(a, b *mat.Dense) (Comparison, error) {
	_, ca := a.Dims()
	_, cb := b.Dims()
	if ca != cb {
		return Comparison{}, &ShapeError{What: "sample dimension", Want: ca, Got: cb}
	}

	ma, mb := Mean(a), Mean(b)

	var covA, covB mat.SymDense
	stat.CovarianceMatrix(&covA, a, nil)
	stat.CovarianceMatrix(&covB, b, nil)
	var diff mat.Dense
	diff.Sub(&covA, &covB)

	return Comparison{
		Mean:       floats.Distance(ma, mb, 2),
		Covariance: mat.Norm(&diff, 2),
	}, nil
}

// Mean is the per column mean of x
func Mean(x *mat.Dense) []float64 {
	_, cols := x.Dims()
	means := make([]float64, cols)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	return means
}
