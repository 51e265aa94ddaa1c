// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/subcommands"
	"gonum.org/v1/gonum/mat"

	"github.com/pointlander/ddpm"
	"github.com/pointlander/ddpm/dataset"
	"github.com/pointlander/ddpm/mlp"
)

type SampleCommand struct {
	weightFile string
	numSamples int
	seed       int64
	outputFile string
	plotFile   string
	traceEvery int
}

var _ subcommands.Command = (*SampleCommand)(nil)

func (*SampleCommand) Name() string {
	return "sample"
}

func (*SampleCommand) Synopsis() string {
	return "Generate samples with a trained model"
}

func (*SampleCommand) Usage() string {
	return `sample --weights=ddpm.gob [flags]
`
}

func (c *SampleCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.weightFile, "weights", "ddpm.gob", "Path to a checkpoint written by train")
	f.IntVar(&c.numSamples, "num-samples", 1000, "Number of samples to generate")
	f.Int64Var(&c.seed, "seed", 2, "Random seed")
	f.StringVar(&c.outputFile, "output", "samples.npy", "Path to save the samples (npy format), empty to skip")
	f.StringVar(&c.plotFile, "plot", "samples.png", "Path to save a scatter plot of the samples, empty to skip")
	f.IntVar(&c.traceEvery, "trace-every", 0, "Log the sample spread every n reverse steps, 0 to disable")
}

func (c *SampleCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *SampleCommand) executeErr(ctx context.Context) error {
	checkpoint, err := readCheckpoint(c.weightFile)
	if err != nil {
		return fmt.Errorf("while loading checkpoint: %w", err)
	}
	schedule, err := checkpoint.Schedule()
	if err != nil {
		return fmt.Errorf("while building the noise schedule: %w", err)
	}
	model, err := mlp.FromWeights(checkpoint.Model)
	if err != nil {
		return fmt.Errorf("while restoring the model: %w", err)
	}

	rng := newRand(c.seed)
	sampler := &ddpm.Sampler{
		Schedule:     schedule,
		Approximator: model,
		Rand:         rng,
	}
	if c.traceEvery > 0 {
		sampler.Trace = func(t int, x *mat.Dense) {
			if t%c.traceEvery == 0 {
				log.Printf("step %d norm=%f", t, mat.Norm(x, 2))
			}
		}
	}

	samples, err := sampler.Sample(ctx, c.numSamples)
	if err != nil {
		return fmt.Errorf("while sampling: %w", err)
	}
	log.Printf("Generated %d samples after %d reverse steps (model trained for %d iterations)",
		c.numSamples, schedule.Steps(), checkpoint.Iteration)

	source, err := loadSource(checkpoint.Data, checkpoint.Clusters)
	if err != nil {
		return fmt.Errorf("while loading the reference data: %w", err)
	}
	reference, err := source.Sample(rng, c.numSamples)
	if err != nil {
		return fmt.Errorf("while drawing reference samples: %w", err)
	}
	comparison, err := ddpm.Compare(samples, reference)
	if err != nil {
		return fmt.Errorf("while comparing samples: %w", err)
	}
	log.Printf("generated vs %s: mean distance=%f covariance distance=%f", checkpoint.Data, comparison.Mean, comparison.Covariance)

	if c.outputFile != "" {
		f, err := os.Create(c.outputFile)
		if err != nil {
			return fmt.Errorf("while creating samples file: %w", err)
		}
		defer f.Close()
		if err := dataset.WriteNPY(f, samples); err != nil {
			return err
		}
	}

	if c.plotFile != "" {
		if err := plotSamples(reference, samples, c.plotFile); err != nil {
			return fmt.Errorf("while plotting samples: %w", err)
		}
	}
	return nil
}
