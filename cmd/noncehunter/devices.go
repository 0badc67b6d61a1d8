package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Amr-9/NonceHunter/pkg/miner/gpu"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List compute devices",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			infos, err := gpu.ListDevices()
			if err != nil {
				a.logger.Warn("OpenCL enumeration failed", zap.Error(err))
			}
			a.console.PrintDevices(infos)
			return nil
		},
	}
}
