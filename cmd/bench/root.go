package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/bench"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/logger"
)

var (
	configPath string
	presetName string
	algoNames  []string
	seed       int64
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark and cross-check content-based matching algorithms",
	Long: `bench generates seeded subscription and event workloads, measures build
time, memory growth, insertion and matching latency for each matching
algorithm, and checks every algorithm against the linear scan.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "Workload preset (overrides bench.preset)")
	rootCmd.PersistentFlags().StringSliceVarP(&algoNames, "algos", "a", nil, "Algorithms to run (default: all)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", -1, "Random seed (default: the preset's)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(presetsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the service config, configures logging and resolves the
// workload and algorithm selection shared by every subcommand.
func setup() (*config.Config, bench.Config, []matching.Algorithm, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, bench.Config{}, nil, err
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger.Setup(level, "text")

	name := cfg.Bench.Preset
	if presetName != "" {
		name = presetName
	}
	wl, err := bench.Preset(name)
	if err != nil {
		return nil, bench.Config{}, nil, err
	}
	if seed >= 0 {
		wl.Seed = seed
	}

	algos, err := parseAlgorithms(algoNames)
	if err != nil {
		return nil, bench.Config{}, nil, err
	}
	return cfg, wl, algos, nil
}

func parseAlgorithms(names []string) ([]matching.Algorithm, error) {
	if len(names) == 0 {
		return matching.Algorithms(), nil
	}
	algos := make([]matching.Algorithm, 0, len(names))
	for _, name := range names {
		algo, err := matching.ParseAlgorithm(name)
		if err != nil {
			return nil, fmt.Errorf("--algos: %w", err)
		}
		algos = append(algos, algo)
	}
	return algos, nil
}
