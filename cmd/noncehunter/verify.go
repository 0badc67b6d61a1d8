package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Amr-9/NonceHunter/pkg/miner/verify"
)

func newVerifyCmd(a *app) *cobra.Command {
	var concurrent bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the CPU and GPU searches and check that they agree",
		Long: `verify builds a sample input, times the CPU search, times one GPU
dispatch and compares the two results. It exits with status 0 only when the
verdict is a match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("concurrent") {
				a.cfg.Verify.Concurrent = concurrent
			}
			return runVerify(cmd, a)
		},
	}
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "run both engines at the same time")
	return cmd
}

func runVerify(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	defer a.serveMetrics(ctx)()

	a.console.PrintBanner(version)

	input, err := a.sampleInput()
	if err != nil {
		return failure(err)
	}
	target, err := a.target()
	if err != nil {
		return failure(err)
	}
	a.console.PrintSearchInfo(target)

	cpuEngine := a.cpuEngine()
	gpuEngine, dev, err := a.gpuEngine()
	if err != nil {
		return failure(err)
	}
	defer dev.Release()

	v := verify.New(cpuEngine, gpuEngine, verify.Config{
		Concurrent: a.cfg.Verify.Concurrent,
	}, a.logger).WithObserver(a.recorder)

	report, err := v.Verify(ctx, input, target)
	if err != nil {
		a.logger.Error("verification aborted", zap.Error(err))
		return failure(err)
	}

	a.console.PrintBackendTiming(cpuEngine.Name(), report.CPU, report.CPUElapsed)
	a.console.PrintBackendTiming(gpuEngine.Name(), report.GPU, report.GPUElapsed)
	a.console.PrintVerdict(report)

	if !report.OK() {
		return &exitError{code: 1}
	}
	return nil
}
