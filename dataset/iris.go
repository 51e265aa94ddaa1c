// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataset

import (
	"fmt"

	"github.com/pointlander/datum/iris"
	"gonum.org/v1/gonum/mat"
)

// Iris is Fisher's iris measurements, standardized per column
type Iris struct {
	Table
}

// LoadIris loads the four iris measures of every flower
func LoadIris() (*Iris, error) {
	datum, err := iris.Load()
	if err != nil {
		return nil, fmt.Errorf("while loading iris: %w", err)
	}
	fisher := datum.Fisher
	if len(fisher) == 0 {
		return nil, fmt.Errorf("dataset: iris is empty")
	}

	width := len(fisher[0].Measures)
	data := make([]float64, 0, width*len(fisher))
	for _, flower := range fisher {
		data = append(data, flower.Measures...)
	}
	x := mat.NewDense(len(fisher), width, data)
	Standardize(x)
	return &Iris{Table: Table{Data: x}}, nil
}
