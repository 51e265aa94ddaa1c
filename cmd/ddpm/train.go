// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"
	"gonum.org/v1/plot/plotter"

	"github.com/pointlander/ddpm"
	"github.com/pointlander/ddpm/mlp"
)

type TrainCommand struct {
	steps     int
	betaStart float64
	betaEnd   float64

	batchSize    int
	iterations   int
	hidden       int
	learningRate float64
	seed         int64

	data     string
	clusters int

	fromCheckpointFile string
	outputWeightFile   string
	checkpointEvery    int
	logEvery           int
	lossPlotFile       string

	// set holds the names of the flags given on the command line
	set map[string]bool
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train the noise prediction model"
}

func (*TrainCommand) Usage() string {
	return `train [flags]
`
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.steps, "steps", 100, "Number of diffusion steps T")
	f.Float64Var(&c.betaStart, "beta-start", 0.001, "Noise variance of the first step")
	f.Float64Var(&c.betaEnd, "beta-end", 0.02, "Noise variance of the last step")

	f.IntVar(&c.batchSize, "batch-size", 128, "Samples per training step")
	f.IntVar(&c.iterations, "iterations", 4000, "Number of training steps")
	f.IntVar(&c.hidden, "hidden", 64, "Width of the hidden layers")
	f.Float64Var(&c.learningRate, "learning-rate", mlp.Eta, "Adam learning rate")
	f.Int64Var(&c.seed, "seed", 1, "Random seed")

	f.StringVar(&c.data, "data", "mixture", `Training data: "mixture", "iris" or the path to a .npy file`)
	f.IntVar(&c.clusters, "clusters", 2, "Number of clusters of the mixture data source")

	f.StringVar(&c.fromCheckpointFile, "from-checkpoint", "", "Path to a checkpoint to resume training from")
	f.StringVar(&c.outputWeightFile, "output", "ddpm.gob", "Path to save the trained checkpoint")
	f.IntVar(&c.checkpointEvery, "checkpoint-every", 1000, "Write a checkpoint every n steps, 0 to only write at the end")
	f.IntVar(&c.logEvery, "log-every", 100, "Log the mean loss every n steps")
	f.StringVar(&c.lossPlotFile, "loss-plot", "cost.png", "Path to save the loss plot, empty to skip")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c.set = map[string]bool{}
	f.Visit(func(fl *flag.Flag) {
		c.set[fl.Name] = true
	})
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.batchSize < 1 {
		return fmt.Errorf("invalid batch size %d", c.batchSize)
	}
	if c.iterations < 0 {
		return fmt.Errorf("invalid number of iterations %d", c.iterations)
	}
	if c.logEvery < 1 {
		return fmt.Errorf("invalid log interval %d", c.logEvery)
	}

	checkpoint := &Checkpoint{
		Steps:     c.steps,
		BetaStart: c.betaStart,
		BetaEnd:   c.betaEnd,
		Data:      c.data,
		Clusters:  c.clusters,
	}
	if c.fromCheckpointFile != "" {
		var err error
		checkpoint, err = readCheckpoint(c.fromCheckpointFile)
		if err != nil {
			return fmt.Errorf("while loading initial checkpoint: %w", err)
		}
		for _, override := range c.overridden(checkpoint) {
			log.Printf("Ignoring %s, resuming with the checkpoint's value", override)
		}
	}

	schedule, err := checkpoint.Schedule()
	if err != nil {
		return fmt.Errorf("while building the noise schedule: %w", err)
	}

	source, err := loadSource(checkpoint.Data, checkpoint.Clusters)
	if err != nil {
		return fmt.Errorf("while loading the data source: %w", err)
	}

	rng := newRand(c.seed)
	var model *mlp.MLP
	if c.fromCheckpointFile != "" {
		model, err = mlp.FromWeights(checkpoint.Model)
	} else {
		model, err = mlp.New(rng, source.Dim(), c.hidden)
	}
	if err != nil {
		return fmt.Errorf("while creating the model: %w", err)
	}
	model.Eta = c.learningRate

	log.Printf("Training on %s: T=%d beta=[%v, %v] dim=%d hidden=%d",
		checkpoint.Data, schedule.Steps(), schedule.Beta[0], schedule.Beta[schedule.Steps()-1], model.Dim(), model.Hidden())

	trainer := &ddpm.Trainer{
		Schedule:  schedule,
		Learner:   model,
		Rand:      rng,
		Iteration: checkpoint.Iteration,
	}

	save := func() error {
		checkpoint.Iteration = trainer.Iteration
		checkpoint.Model = model.Weights()
		return writeCheckpoint(c.outputWeightFile, checkpoint)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var saveErr error

	points := make(plotter.XYs, 0, c.iterations)
	window := 0.0
	report := func(iteration int, loss float64) {
		points = append(points, plotter.XY{X: float64(iteration), Y: loss})
		window += loss
		if (iteration+1)%c.logEvery == 0 {
			log.Printf("iteration %d loss=%f", iteration, window/float64(c.logEvery))
			window = 0
		}
		if c.checkpointEvery > 0 && (iteration+1)%c.checkpointEvery == 0 {
			if err := save(); err != nil && saveErr == nil {
				saveErr = err
				cancel()
			}
		}
	}

	err = trainer.Run(ctx, source, c.batchSize, c.iterations, report)
	if saveErr != nil {
		return fmt.Errorf("while writing checkpoint at iteration %d: %w", trainer.Iteration, saveErr)
	}
	if errors.Is(err, context.Canceled) {
		log.Printf("Training interrupted at iteration %d", trainer.Iteration)
	} else if err != nil {
		return fmt.Errorf("while training: %w", err)
	}

	if err := save(); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	log.Printf("Checkpoint written to %s", c.outputWeightFile)

	if c.lossPlotFile != "" && len(points) > 0 {
		if err := plotLoss(points, c.lossPlotFile); err != nil {
			return fmt.Errorf("while plotting loss: %w", err)
		}
	}
	return nil
}

// overridden lists the flags given on the command line that disagree with
// the checkpoint being resumed
func (c *TrainCommand) overridden(checkpoint *Checkpoint) []string {
	var overrides []string
	check := func(name string, flagValue, checkpointValue interface{}) {
		if c.set[name] && flagValue != checkpointValue {
			overrides = append(overrides, fmt.Sprintf("--%s=%v (checkpoint has %v)", name, flagValue, checkpointValue))
		}
	}
	check("steps", c.steps, checkpoint.Steps)
	check("beta-start", c.betaStart, checkpoint.BetaStart)
	check("beta-end", c.betaEnd, checkpoint.BetaEnd)
	check("data", c.data, checkpoint.Data)
	check("clusters", c.clusters, checkpoint.Clusters)
	check("hidden", c.hidden, checkpoint.Model.Hidden)
	return overrides
}
