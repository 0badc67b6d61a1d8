package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Amr-9/NonceHunter/pkg/miner"
)

const updateRate = 100 * time.Millisecond

func newMineCmd(a *app) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Run a single search backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMine(cmd, a, backend)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "cpu", "search backend: cpu or gpu")
	return cmd
}

func runMine(cmd *cobra.Command, a *app, backend string) error {
	ctx := cmd.Context()
	defer a.serveMetrics(ctx)()

	var engine miner.Engine
	switch strings.ToLower(backend) {
	case "cpu":
		engine = a.cpuEngine()
	case "gpu":
		g, dev, err := a.gpuEngine()
		if err != nil {
			return failure(err)
		}
		defer dev.Release()
		engine = g
	default:
		return &exitError{code: 1, msg: fmt.Sprintf("unknown backend %q (want cpu or gpu)", backend)}
	}

	input, err := a.sampleInput()
	if err != nil {
		return failure(err)
	}
	target, err := a.target()
	if err != nil {
		return failure(err)
	}
	a.console.PrintSearchInfo(target)

	type outcome struct {
		result miner.Result
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		r, err := engine.Search(ctx, input, target)
		done <- outcome{r, err}
	}()

	ticker := time.NewTicker(updateRate)
	defer ticker.Stop()
	expected := target.ExpectedAttempts()
	for frame := 0; ; frame++ {
		select {
		case o := <-done:
			a.console.ClearLine()
			a.console.PrintBackendTiming(engine.Name(), o.result, time.Since(start))
			if o.err != nil {
				return failure(o.err)
			}
			return nil
		case <-ticker.C:
			a.console.PrintProgress(engine.Stats(), expected, frame)
		}
	}
}
