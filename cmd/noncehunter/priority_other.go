//go:build !windows

package main

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// highNice is the niceness requested by --high-priority. Lowering it below
// zero needs CAP_SYS_NICE or root; otherwise `nice -n -10 noncehunter`
// does the same job.
const highNice = -10

func raisePriority(logger *zap.Logger) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, highNice); err != nil {
		return err
	}
	logger.Debug("process priority raised", zap.Int("nice", highNice))
	return nil
}
