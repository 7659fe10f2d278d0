package main

//
// Bench subcommand
//

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/montanaflynn/stats"
	"github.com/ooni/geoquery/internal/engine"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// benchOptions contains the bench subcommand options.
type benchOptions struct {
	Count       int
	Parallelism int
}

func newBenchCommand(globalOptions *Options) *cobra.Command {
	options := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench IP [IP...]",
		Short: "Measures the lookup latency using the given addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(globalOptions)
			if err != nil {
				return err
			}
			defer eng.Close()
			report, err := benchMain(cmd.Context(), eng, args, options)
			if err != nil {
				return err
			}
			log.WithFields(report.fields()).Info("bench results")
			log.Info(eng.Metrics().String())
			return nil
		},
	}
	cmd.Flags().IntVarP(&options.Count, "count", "n", 100, "number of lookups to perform")
	cmd.Flags().IntVarP(&options.Parallelism, "parallelism", "p", 8, "maximum number of concurrent lookups")
	return cmd
}

// benchReport summarizes the latency of a bench run.
type benchReport struct {
	Count    int
	Failures int
	Elapsed  time.Duration
	Mean     time.Duration
	P50      time.Duration
	P90      time.Duration
	P99      time.Duration
	Max      time.Duration
}

// fields converts the report to fields printed as a table.
func (r *benchReport) fields() log.Fields {
	return log.Fields{
		"type":     "table",
		"count":    r.Count,
		"failures": r.Failures,
		"elapsed":  r.Elapsed,
		"mean":     r.Mean,
		"p50":      r.P50,
		"p90":      r.P90,
		"p99":      r.P99,
		"max":      r.Max,
	}
}

// benchMain issues options.Count lookups cycling through addresses
// with bounded parallelism and returns the latency report.
func benchMain(ctx context.Context, eng *engine.Engine, addresses []string, options *benchOptions) (*benchReport, error) {
	if options.Count <= 0 || options.Parallelism <= 0 {
		return nil, errors.New("bench: count and parallelism must be positive")
	}

	bar := progressbar.NewOptions64(
		int64(options.Count),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetWriter(os.Stderr),
	)

	var (
		failures  int
		latencies []float64
		mu        sync.Mutex
	)
	// gctx is canceled once Wait returns so only ctx tells us about interruptions
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(options.Parallelism)
	t0 := time.Now()
	for idx := 0; idx < options.Count && gctx.Err() == nil; idx++ {
		address := addresses[idx%len(addresses)]
		group.Go(func() error {
			started := time.Now()
			_, err := eng.Query(gctx, address)
			elapsed := time.Since(started)
			mu.Lock()
			latencies = append(latencies, float64(elapsed))
			if err != nil {
				failures++
			}
			mu.Unlock()
			bar.Add(1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newBenchReport(latencies, failures, time.Since(t0))
}

// newBenchReport computes the report from latencies expressed in nanoseconds.
func newBenchReport(latencies []float64, failures int, elapsed time.Duration) (*benchReport, error) {
	data := stats.Float64Data(latencies)
	report := &benchReport{Count: len(latencies), Failures: failures, Elapsed: elapsed}
	var err error
	if report.Mean, err = durationStat(data.Mean()); err != nil {
		return nil, err
	}
	if report.P50, err = durationStat(data.Percentile(50)); err != nil {
		return nil, err
	}
	if report.P90, err = durationStat(data.Percentile(90)); err != nil {
		return nil, err
	}
	if report.P99, err = durationStat(data.Percentile(99)); err != nil {
		return nil, err
	}
	if report.Max, err = durationStat(data.Max()); err != nil {
		return nil, err
	}
	return report, nil
}

func durationStat(value float64, err error) (time.Duration, error) {
	return time.Duration(value), err
}
