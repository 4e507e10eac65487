package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/bench"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/report"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/postgres"
)

var (
	outputDir      string
	postgresSink   bool
	experimentName string
	expStart       int
	expEnd         int
	expStep        int
	fullSweep      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run benchmark experiments and append results to the report files",
	Long: `Run varies one workload parameter at a time and, for every measuring point
and algorithm, records precomputation time, memory growth, single insertion
time and per-event matching time.

Without --experiment a short subscription-count sweep runs. --full runs every
experiment over the ranges used for the published comparisons.`,
	RunE: runBench,
}

func init() {
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for report files (default: bench.outputDir)")
	runCmd.Flags().BoolVar(&postgresSink, "postgres", false, "Also write results to PostgreSQL")
	runCmd.Flags().StringVarP(&experimentName, "experiment", "e", "", "time_subs, time_width, time_event_attribute or time_sub_predicate")
	runCmd.Flags().IntVar(&expStart, "start", 0, "First parameter value")
	runCmd.Flags().IntVar(&expEnd, "end", 0, "Last parameter value")
	runCmd.Flags().IntVar(&expStep, "step", 1, "Parameter increment")
	runCmd.Flags().BoolVar(&fullSweep, "full", false, "Run every experiment over the full ranges")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, wl, algos, err := setup()
	if err != nil {
		return err
	}

	experiments := bench.DefaultExperiments()
	switch {
	case experimentName != "":
		exp, err := bench.ExperimentByName(experimentName, expStart, expEnd, expStep)
		if err != nil {
			return err
		}
		experiments = []bench.Experiment{exp}
	case fullSweep:
		experiments = bench.FullExperiments()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := cfg.Bench.OutputDir
	if outputDir != "" {
		dir = outputDir
	}
	fileSink, err := report.NewFileSink(dir)
	if err != nil {
		return err
	}
	sinks := report.Multi{fileSink}

	if postgresSink || cfg.Bench.PostgresSink {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres sink: %w", err)
		}
		defer db.Close()
		store, err := report.NewStore(ctx, db)
		if err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	slog.Info("benchmark starting",
		"algorithms", algos,
		"experiments", len(experiments),
		"output_dir", fileSink.Dir(),
	)
	if err := bench.NewSuite(bench.NewHarness(), sinks).Run(ctx, wl, algos, experiments); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", fileSink.Dir())
	return nil
}
