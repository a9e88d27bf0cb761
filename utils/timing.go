package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for the forward stages.
type TimingStats struct {
	TotalTime     time.Duration
	ModelInitTime time.Duration
	FeatureTime   time.Duration // conv1 + relu + primary capsules
	RoutingTime   time.Duration // capsule transform + routing iterations
	DecoderTime   time.Duration // mask + reconstruction decoder
}

// PrintTimingStats prints a breakdown over the given number of forward passes.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, passes int) {
	if !Verbose {
		return
	}
	if passes <= 0 {
		passes = 1
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Forward passes: %d\n", passes)
	fmt.Fprintln(Output, "\nBreakdown by stage:")
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, pct(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Feature extraction: %v (%.1f%%)\n", stats.FeatureTime, pct(stats.FeatureTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Dynamic routing: %v (%.1f%%)\n", stats.RoutingTime, pct(stats.RoutingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Reconstruction: %v (%.1f%%)\n", stats.DecoderTime, pct(stats.DecoderTime, stats.TotalTime))
	fmt.Fprintln(Output, "\nPer pass:")
	fmt.Fprintf(Output, "  Feature extraction: %v\n", stats.FeatureTime/time.Duration(passes))
	fmt.Fprintf(Output, "  Dynamic routing: %v\n", stats.RoutingTime/time.Duration(passes))
}

func pct(part, total time.Duration) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e3
}
