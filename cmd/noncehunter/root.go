package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Amr-9/NonceHunter/internal/config"
	"github.com/Amr-9/NonceHunter/internal/identity"
	"github.com/Amr-9/NonceHunter/internal/logging"
	"github.com/Amr-9/NonceHunter/internal/metrics"
	"github.com/Amr-9/NonceHunter/internal/ui"
	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/cpu"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/gpu"
)

// app holds everything the subcommands share after flag parsing.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *metrics.Recorder
	console  *ui.Console

	inputHex     string
	noColor      bool
	highPriority bool
}

func newRootCmd(a *app) *cobra.Command {
	var (
		cfgFile  string
		logLevel string
		target   string
		ident    string
		maxNonce uint64
		listen   string
		device   string
		devIndex int
	)

	root := &cobra.Command{
		Use:   "noncehunter",
		Short: "keccak256 proof-of-work search on CPU and GPU",
		Long: `NonceHunter searches for a nonce such that keccak256(input || le64(nonce))
is numerically at most a 32-byte target. The same search runs sequentially on
the CPU and as one parallel dispatch on a compute device, and the verify
command checks that both backends agree.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("target") {
				cfg.Target = target
			}
			if flags.Changed("identity") {
				cfg.Sample.Identity = ident
			}
			if flags.Changed("max-nonce") {
				cfg.CPU.MaxNonce = maxNonce
			}
			if flags.Changed("metrics-listen") {
				cfg.Metrics.Listen = listen
			}
			if flags.Changed("device") {
				cfg.GPU.Device = device
			}
			if flags.Changed("device-index") {
				cfg.GPU.DeviceIndex = devIndex
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			a.recorder = metrics.NewRecorder()
			a.console = ui.NewConsole(cmd.OutOrStdout(), !a.noColor)

			if a.highPriority {
				if err := raisePriority(logger); err != nil {
					logger.Warn("could not raise process priority", zap.Error(err))
				}
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&target, "target", config.DefaultTarget, "difficulty target, 32 bytes as hex")
	pf.StringVar(&a.inputHex, "input", "", "search input as hex (default: generated from two identities)")
	pf.StringVar(&ident, "identity", string(identity.Solana), "identity kind for generated input: solana, ethereum, bitcoin")
	pf.Uint64Var(&maxNonce, "max-nonce", 0, "CPU nonce cutoff, 0 = unbounded")
	pf.StringVar(&listen, "metrics-listen", "", "serve Prometheus metrics on this address, e.g. :9464")
	pf.StringVar(&device, "device", string(gpu.KindAuto), "compute device: auto, opencl, emulated")
	pf.IntVar(&devIndex, "device-index", 0, "OpenCL device index as listed by the devices command")
	pf.BoolVar(&a.noColor, "no-color", false, "disable ANSI colors")
	pf.BoolVar(&a.highPriority, "high-priority", false, "raise process priority before searching")

	root.AddCommand(newVerifyCmd(a), newMineCmd(a), newDevicesCmd(a))
	return root
}

// serveMetrics starts the metrics endpoint when configured and returns a
// function that stops it.
func (a *app) serveMetrics(ctx context.Context) func() {
	if a.cfg.Metrics.Listen == "" {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.recorder.Serve(ctx, a.cfg.Metrics.Listen, a.logger); err != nil {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// sampleInput returns --input when given, otherwise a generated sample.
func (a *app) sampleInput() ([]byte, error) {
	if a.inputHex != "" {
		s := a.inputHex
		if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
			s = "0x" + s
		}
		input, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: --input: %v", miner.ErrInvalidInput, err)
		}
		return input, nil
	}

	kind, err := identity.ParseKind(a.cfg.Sample.Identity)
	if err != nil {
		return nil, err
	}
	sample, err := identity.Generate(kind)
	if err != nil {
		return nil, err
	}
	a.console.PrintSample(sample)
	a.logger.Debug("sample input generated",
		zap.String("identity", string(kind)),
		zap.String("challenge", sample.Challenge.Address),
		zap.String("miner", sample.Miner.Address))
	return sample.Input, nil
}

func (a *app) target() (difficulty.Target, error) {
	t, err := a.cfg.TargetValue()
	if err != nil {
		return t, fmt.Errorf("%w: %v", miner.ErrInvalidTarget, err)
	}
	return t, nil
}

func (a *app) cpuEngine() *cpu.Engine {
	return cpu.NewEngine(cpu.Config{MaxNonce: a.cfg.CPU.MaxNonce}, a.logger).WithObserver(a.recorder)
}

// gpuEngine opens the configured device. The caller releases the device.
func (a *app) gpuEngine() (*gpu.Engine, gpu.Device, error) {
	kind, err := gpu.ParseDeviceKind(a.cfg.GPU.Device)
	if err != nil {
		return nil, nil, err
	}
	dev, err := gpu.OpenDevice(kind, a.cfg.GPU.DeviceIndex, a.logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := gpu.NewEngine(dev, a.cfg.GPUEngineConfig(), a.logger)
	if err != nil {
		dev.Release()
		return nil, nil, err
	}
	return engine.WithObserver(a.recorder), dev, nil
}

// failure maps an engine error to an exit status: 2 for fatal device
// errors, 1 for everything else.
func failure(err error) error {
	if miner.IsFatal(err) {
		return &exitError{code: 2, msg: "Fatal: " + err.Error()}
	}
	return &exitError{code: 1, msg: "Error: " + err.Error()}
}
