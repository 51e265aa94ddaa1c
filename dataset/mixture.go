// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dataset provides sources of clean samples for training and for
// comparison against generated samples.
package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/pointlander/ddpm"
)

var (
	_ ddpm.Source = (*Mixture)(nil)
	_ ddpm.Source = (*Iris)(nil)
	_ ddpm.Source = (*Table)(nil)
)

// Mixture is an equally weighted mixture of isotropic Gaussian clusters
type Mixture struct {
	Centers [][]float64
	Stddev  float64
}

// NewMixture places clusters evenly on a circle of the given radius
func NewMixture(clusters int, radius, stddev float64) (*Mixture, error) {
	if clusters < 1 {
		return nil, fmt.Errorf("dataset: invalid number of clusters %d", clusters)
	}
	if !(stddev > 0) {
		return nil, fmt.Errorf("dataset: invalid standard deviation %v", stddev)
	}
	centers := make([][]float64, clusters)
	for i := range centers {
		angle := 2 * math.Pi * float64(i) / float64(clusters)
		centers[i] = []float64{radius * math.Cos(angle), radius * math.Sin(angle)}
	}
	return &Mixture{Centers: centers, Stddev: stddev}, nil
}

// Dim is the dimension of the cluster centers
func (m *Mixture) Dim() int {
	return len(m.Centers[0])
}

// Sample picks a cluster uniformly for every sample and perturbs its center
func (m *Mixture) Sample(rng *rand.Rand, n int) (*mat.Dense, error) {
	if n < 1 {
		return nil, fmt.Errorf("dataset: invalid number of samples %d", n)
	}
	x := mat.NewDense(n, m.Dim(), nil)
	for i := 0; i < n; i++ {
		center := m.Centers[rng.Intn(len(m.Centers))]
		row := x.RawRowView(i)
		for j := range row {
			row[j] = center[j] + m.Stddev*rng.NormFloat64()
		}
	}
	return x, nil
}
