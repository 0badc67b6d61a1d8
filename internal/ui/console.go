package ui

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Amr-9/NonceHunter/internal/identity"
	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/gpu"
	"github.com/Amr-9/NonceHunter/pkg/miner/verify"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorPurple = "\033[35m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Console renders human-facing output. Logs go through zap; this is the
// report a person reads at the end of a run.
type Console struct {
	w     io.Writer
	color bool
}

// NewConsole writes to w. color=false strips ANSI codes.
func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color}
}

// esc joins codes when color is enabled.
func (c *Console) esc(codes ...string) string {
	if !c.color {
		return ""
	}
	return strings.Join(codes, "")
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.w, format, args...)
}

// PrintBanner shows the program header.
func (c *Console) PrintBanner(version string) {
	c.printf("\n%s", c.esc(ColorCyan, ColorBold))
	c.printf("  ╔══════════════════════════════════════════════════════════╗\n")
	c.printf("  ║  NONCEHUNTER  %s keccak256 proof-of-work, CPU vs GPU%s%s      ║\n", c.esc(ColorDim), c.esc(ColorReset), c.esc(ColorCyan, ColorBold))
	c.printf("  ╚══════════════════════════════════════════════════════════╝%s\n", c.esc(ColorReset))
	c.printf("  %sv%s%s\n\n", c.esc(ColorDim), version, c.esc(ColorReset))
}

// PrintSample shows the identities the input was built from.
func (c *Console) PrintSample(s identity.Sample) {
	c.printf("    %s🔑 SAMPLE INPUT%s %s(%s, %d bytes)%s\n", c.esc(ColorPurple, ColorBold), c.esc(ColorReset),
		c.esc(ColorDim), s.Kind, len(s.Input), c.esc(ColorReset))
	c.printf("       challenge  %s%s%s\n", c.esc(ColorCyan), s.Challenge.Address, c.esc(ColorReset))
	c.printf("       miner      %s%s%s\n\n", c.esc(ColorCyan), s.Miner.Address, c.esc(ColorReset))
}

// PrintSearchInfo displays the target and its expected work.
func (c *Console) PrintSearchInfo(target difficulty.Target) {
	c.printf("    %s🚀 SEARCHING%s %s%s%s %s(~1/%s)%s\n\n",
		c.esc(ColorGreen, ColorBold), c.esc(ColorReset),
		c.esc(ColorBold, ColorCyan), target, c.esc(ColorReset),
		c.esc(ColorDim), FormatNumber(target.ExpectedAttempts()), c.esc(ColorReset))
}

// PrintProgress shows an in-place progress bar for a long search.
func (c *Console) PrintProgress(stats miner.Stats, expected uint64, frame int) {
	spinners := []string{"◐", "◓", "◑", "◒"}
	spinner := spinners[frame%len(spinners)]

	diff := float64(expected)
	if diff == 0 {
		diff = 1
	}
	progress := 1.0 - math.Pow(0.5, 2.0*float64(stats.Attempts)/diff)

	const barWidth = 40
	filled := int(progress * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("▓", filled) + strings.Repeat("░", barWidth-filled)

	c.printf("\r    %s%s%s %s%s%s %s%s%s │ %s%s%s │ %s",
		c.esc(ColorCyan), spinner, c.esc(ColorReset),
		c.esc(ColorDim), bar, c.esc(ColorReset),
		c.esc(ColorGreen, ColorBold), FormatHashRate(stats.HashRate), c.esc(ColorReset),
		c.esc(ColorYellow), FormatNumber(stats.Attempts), c.esc(ColorReset),
		FormatDuration(time.Duration(stats.ElapsedSecs*float64(time.Second))))
}

// ClearLine clears the current line.
func (c *Console) ClearLine() {
	c.printf("\r%s\r", strings.Repeat(" ", 94))
}

// PrintBackendTiming prints one engine's result line.
func (c *Console) PrintBackendTiming(name string, r miner.Result, elapsed time.Duration) {
	status := c.esc(ColorGreen) + "found" + c.esc(ColorReset)
	if !r.Found {
		status = c.esc(ColorRed) + "not found" + c.esc(ColorReset)
	}
	c.printf("    %s⏱  %-16s%s %s%8s%s │ %s │ nonce %s │ %s hashes\n",
		c.esc(ColorCyan), name, c.esc(ColorReset),
		c.esc(ColorBold), FormatDuration(elapsed), c.esc(ColorReset),
		status, FormatNumber(r.Nonce), humanize.SIWithDigits(float64(r.Attempts), 1, ""))
	if r.Found {
		c.printf("       %s%s%s\n", c.esc(ColorDim), r.Digest.Hex(), c.esc(ColorReset))
	}
}

// PrintVerdict shows the verification outcome box.
func (c *Console) PrintVerdict(r verify.Report) {
	color, title := ColorGreen, "✨ Success! Hashes match! ✨"
	switch r.Outcome {
	case verify.Match:
	case verify.GpuNotFound:
		color, title = ColorYellow, "⚠  Hash not found on GPU"
	case verify.NonceMismatch:
		color, title = ColorYellow, "⚠  Valid hashes at different nonces"
	default:
		color, title = ColorRed, "✗  Failure! Hashes do not match!"
	}

	c.printf("\n    %s╔══════════════════════════════════════════════════════════╗%s\n", c.esc(color, ColorBold), c.esc(ColorReset))
	c.printf("    %s║  %-56s║%s\n", c.esc(color, ColorBold), title, c.esc(ColorReset))
	c.printf("    %s╚══════════════════════════════════════════════════════════╝%s\n\n", c.esc(color, ColorBold), c.esc(ColorReset))
	c.printf("    outcome %s%s%s", c.esc(ColorBold), r.Outcome, c.esc(ColorReset))
	if r.Outcome == verify.NonceMismatch {
		c.printf(" %s(cpu %d, gpu %d)%s", c.esc(ColorDim), r.CPU.Nonce, r.GPU.Nonce, c.esc(ColorReset))
	}
	c.printf("\n")
	if r.CPUElapsed > 0 && r.GPUElapsed > 0 {
		c.printf("    speedup %s%.2fx%s\n", c.esc(ColorBold), float64(r.CPUElapsed)/float64(r.GPUElapsed), c.esc(ColorReset))
	}
}

// PrintDevices lists compute devices.
func (c *Console) PrintDevices(infos []gpu.DeviceInfo) {
	c.printf("    %s🎮 DEVICES%s\n", c.esc(ColorPurple, ColorBold), c.esc(ColorReset))
	for _, d := range infos {
		c.printf("    %s[%d]%s %s %s(%s", c.esc(ColorCyan), d.Index, c.esc(ColorReset), d.Name, c.esc(ColorDim), d.Backend)
		if d.Vendor != "" {
			c.printf(", %s", d.Vendor)
		}
		if d.ComputeUnits > 0 {
			c.printf(", %d CUs", d.ComputeUnits)
		}
		if d.GlobalMem > 0 {
			c.printf(", %s", humanize.IBytes(d.GlobalMem))
		}
		c.printf(")%s\n", c.esc(ColorReset))
	}
}

// FormatHashRate formats a hash rate with SI prefixes.
func FormatHashRate(rate float64) string {
	return humanize.SIWithDigits(rate, 1, "H/s")
}

// FormatNumber adds thousands separators.
func FormatNumber(n uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(n))
}

// FormatDuration formats duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}
