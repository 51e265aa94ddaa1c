// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mlp is a noise predicting perceptron for the diffusion model,
// built on the tf64 automatic differentiation library and trained with Adam.
package mlp

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pointlander/gradient/tf64"
	"gonum.org/v1/gonum/mat"

	"github.com/pointlander/ddpm"
)

const (
	// B1 exponential decay of the rate for the first moment estimates
	B1 = 0.9
	// B2 exponential decay rate for the second-moment estimates
	B2 = 0.999
	// Eta is the default learning rate
	Eta = 3.0e-3
)

const (
	// StateM is the state for the mean
	StateM = iota
	// StateV is the state for the variance
	StateV
	// StateTotal is the total number of states
	StateTotal
)

// MLP maps a sample and its normalized step to a noise estimate through two
// sigmoid hidden layers and a linear output layer
type MLP struct {
	// Eta is the learning rate
	Eta float64

	dim    int
	hidden int
	set    tf64.Set
	states map[string][][]float64
	step   int
}

var _ ddpm.Learner = (*MLP)(nil)

// New creates a perceptron for dim dimensional samples with randomly
// initialized weights and zero biases
func New(rng *rand.Rand, dim, hidden int) (*MLP, error) {
	if dim < 1 {
		return nil, fmt.Errorf("mlp: invalid dimension %d", dim)
	}
	if hidden < 1 {
		return nil, fmt.Errorf("mlp: invalid hidden width %d", hidden)
	}
	m := newMLP(dim, hidden)
	for _, w := range m.set.Weights {
		if strings.HasPrefix(w.N, "b") {
			w.X = w.X[:cap(w.X)]
			continue
		}
		factor := math.Sqrt(2.0 / float64(w.S[0]))
		for i := 0; i < cap(w.X); i++ {
			w.X = append(w.X, rng.NormFloat64()*factor)
		}
	}
	return m, nil
}

func newMLP(dim, hidden int) *MLP {
	set := tf64.NewSet()
	set.Add("w1", dim+1, hidden)
	set.Add("b1", hidden, 1)
	set.Add("w2", hidden, hidden)
	set.Add("b2", hidden, 1)
	set.Add("w3", hidden, dim)
	set.Add("b3", dim, 1)

	states := make(map[string][][]float64, len(set.Weights))
	for _, w := range set.Weights {
		state := make([][]float64, StateTotal)
		for i := range state {
			state[i] = make([]float64, cap(w.X))
		}
		states[w.N] = state
	}

	return &MLP{
		Eta:    Eta,
		dim:    dim,
		hidden: hidden,
		set:    set,
		states: states,
	}
}

// Dim is the sample dimension
func (m *MLP) Dim() int {
	return m.dim
}

// Hidden is the width of the hidden layers
func (m *MLP) Hidden() int {
	return m.hidden
}

func (m *MLP) network(input tf64.Meta) tf64.Meta {
	l1 := tf64.Sigmoid(tf64.Add(tf64.Mul(m.set.Get("w1"), input), m.set.Get("b1")))
	l2 := tf64.Sigmoid(tf64.Add(tf64.Mul(m.set.Get("w2"), l1), m.set.Get("b2")))
	return tf64.Add(tf64.Mul(m.set.Get("w3"), l2), m.set.Get("b3"))
}

// inputs loads the samples with their normalized step appended as the last column
func (m *MLP) inputs(x *mat.Dense, t []float64) (tf64.Set, error) {
	rows, cols := x.Dims()
	if cols != m.dim {
		return tf64.Set{}, &ddpm.ShapeError{What: "sample dimension", Want: m.dim, Got: cols}
	}
	if len(t) != rows {
		return tf64.Set{}, &ddpm.ShapeError{What: "step inputs", Want: rows, Got: len(t)}
	}
	others := tf64.NewSet()
	others.Add("x", m.dim+1, rows)
	input := others.ByName["x"]
	for i := 0; i < rows; i++ {
		input.X = append(input.X, x.RawRowView(i)...)
		input.X = append(input.X, t[i])
	}
	return others, nil
}

// PredictNoise evaluates the network on every row of x
func (m *MLP) PredictNoise(x *mat.Dense, t []float64) (*mat.Dense, error) {
	others, err := m.inputs(x, t)
	if err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	output := make([]float64, rows*m.dim)
	m.network(others.Get("x"))(func(a *tf64.V) bool {
		copy(output, a.X)
		return true
	})
	return mat.NewDense(rows, m.dim, output), nil
}

// Update takes one Adam step on the squared error between the network's
// noise estimate and target. The gradient is clipped to unit norm.
func (m *MLP) Update(x *mat.Dense, t []float64, target *mat.Dense) error {
	others, err := m.inputs(x, t)
	if err != nil {
		return err
	}
	rows, _ := x.Dims()
	r, c := target.Dims()
	if r != rows {
		return &ddpm.ShapeError{What: "target rows", Want: rows, Got: r}
	}
	if c != m.dim {
		return &ddpm.ShapeError{What: "target columns", Want: m.dim, Got: c}
	}
	others.Add("noise", m.dim, rows)
	noise := others.ByName["noise"]
	for i := 0; i < rows; i++ {
		noise.X = append(noise.X, target.RawRowView(i)...)
	}

	cost := tf64.Avg(tf64.Quadratic(m.network(others.Get("x")), others.Get("noise")))

	m.set.Zero()
	others.Zero()
	total := tf64.Gradient(cost).X[0]
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return &ddpm.DivergenceError{Phase: "training", Step: m.step, Value: total}
	}

	sum := 0.0
	for _, p := range m.set.Weights {
		for _, d := range p.D {
			sum += d * d
		}
	}
	norm := math.Sqrt(sum)
	scaling := 1.0
	if norm > 1 {
		scaling = 1 / norm
	}

	m.step++
	b1, b2 := math.Pow(B1, float64(m.step)), math.Pow(B2, float64(m.step))
	for _, w := range m.set.Weights {
		state := m.states[w.N]
		for l, d := range w.D {
			g := d * scaling
			mean := B1*state[StateM][l] + (1-B1)*g
			variance := B2*state[StateV][l] + (1-B2)*g*g
			state[StateM][l] = mean
			state[StateV][l] = variance
			mhat := mean / (1 - b1)
			vhat := variance / (1 - b2)
			w.X[l] -= m.Eta * mhat / (math.Sqrt(vhat) + 1e-8)
		}
	}
	return nil
}

// Weights is a serializable snapshot of the network parameters and the
// optimizer state
type Weights struct {
	Dim    int
	Hidden int
	Values map[string][]float64
	// Moments holds the Adam moment estimates of every parameter, indexed by StateM and StateV
	Moments map[string][][]float64
	// Step is the number of Adam steps taken
	Step int
}

// Weights returns a copy of the current parameters and optimizer state
func (m *MLP) Weights() Weights {
	values := make(map[string][]float64, len(m.set.Weights))
	moments := make(map[string][][]float64, len(m.set.Weights))
	for _, w := range m.set.Weights {
		values[w.N] = append([]float64(nil), w.X...)
		state := make([][]float64, StateTotal)
		for i := range state {
			state[i] = append([]float64(nil), m.states[w.N][i]...)
		}
		moments[w.N] = state
	}
	return Weights{Dim: m.dim, Hidden: m.hidden, Values: values, Moments: moments, Step: m.step}
}

// FromWeights restores a network from a snapshot. A snapshot without
// moments restores the parameters with a fresh optimizer.
func FromWeights(weights Weights) (*MLP, error) {
	if weights.Dim < 1 || weights.Hidden < 1 {
		return nil, fmt.Errorf("mlp: invalid snapshot shape %dx%d", weights.Dim, weights.Hidden)
	}
	if weights.Step < 0 {
		return nil, fmt.Errorf("mlp: invalid snapshot step %d", weights.Step)
	}
	m := newMLP(weights.Dim, weights.Hidden)
	for _, w := range m.set.Weights {
		values, ok := weights.Values[w.N]
		if !ok {
			return nil, fmt.Errorf("mlp: snapshot is missing %s", w.N)
		}
		if len(values) != cap(w.X) {
			return nil, fmt.Errorf("mlp: snapshot %s has %d values, want %d", w.N, len(values), cap(w.X))
		}
		w.X = append(w.X[:0], values...)

		if weights.Moments == nil {
			continue
		}
		state, ok := weights.Moments[w.N]
		if !ok || len(state) != StateTotal {
			return nil, fmt.Errorf("mlp: snapshot is missing the moments of %s", w.N)
		}
		for i := range state {
			if len(state[i]) != cap(w.X) {
				return nil, fmt.Errorf("mlp: snapshot moment %d of %s has %d values, want %d", i, w.N, len(state[i]), cap(w.X))
			}
			copy(m.states[w.N][i], state[i])
		}
	}
	if weights.Moments != nil {
		m.step = weights.Step
	}
	return m, nil
}
