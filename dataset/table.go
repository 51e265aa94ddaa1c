// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataset

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Table is a fixed set of samples that is resampled with replacement
type Table struct {
	Data *mat.Dense
}

// Dim is the number of columns
func (t *Table) Dim() int {
	_, cols := t.Data.Dims()
	return cols
}

// Sample draws n rows uniformly with replacement
func (t *Table) Sample(rng *rand.Rand, n int) (*mat.Dense, error) {
	if n < 1 {
		return nil, fmt.Errorf("dataset: invalid number of samples %d", n)
	}
	rows, cols := t.Data.Dims()
	x := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, t.Data.RawRowView(rng.Intn(rows)))
	}
	return x, nil
}

// Standardize shifts and scales every column of x in place to zero mean and
// unit variance. Constant columns are only centered.
func Standardize(x *mat.Dense) {
	rows, cols := x.Dims()
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, x)
		mean, stddev := stat.MeanStdDev(column, nil)
		if stddev == 0 {
			stddev = 1
		}
		for i := 0; i < rows; i++ {
			x.Set(i, j, (x.At(i, j)-mean)/stddev)
		}
	}
}

// ReadNPY reads a two dimensional float64 array in numpy format
func ReadNPY(r io.Reader) (*Table, error) {
	reader, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("while reading npy header: %w", err)
	}
	shape := reader.Header.Descr.Shape
	if len(shape) != 2 || shape[0] < 1 || shape[1] < 1 {
		return nil, fmt.Errorf("dataset: want a non-empty two dimensional array, got shape %v", shape)
	}

	var data []float64
	if err := reader.Read(&data); err != nil {
		return nil, fmt.Errorf("while reading npy data: %w", err)
	}
	if len(data) != shape[0]*shape[1] {
		return nil, fmt.Errorf("dataset: npy data has %d values, want %d", len(data), shape[0]*shape[1])
	}
	return &Table{Data: mat.NewDense(shape[0], shape[1], data)}, nil
}

// LoadNPY reads a table from a .npy file
func LoadNPY(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadNPY(f)
}

// WriteNPY writes x in numpy format
func WriteNPY(w io.Writer, x *mat.Dense) error {
	if err := npyio.Write(w, x); err != nil {
		return fmt.Errorf("while writing npy data: %w", err)
	}
	return nil
}
