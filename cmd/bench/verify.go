package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/bench"
)

var (
	verifyJSON  bool
	verifyColor string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every algorithm against the linear scan",
	Long: `Verify builds every selected algorithm on the same seeded workload and
compares the set of matched subscription ids for each event with the linear
scan. It exits non-zero when any algorithm disagrees.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Print results as JSON")
	verifyCmd.Flags().StringVar(&verifyColor, "color", "auto", "Colorize output: auto, always, never")
}

func runVerify(cmd *cobra.Command, args []string) error {
	_, wl, algos, err := setup()
	if err != nil {
		return err
	}
	results, err := bench.Verify(context.Background(), wl, algos)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if verifyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printVerify(cmd, results)
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d algorithms disagree with linear", failed, len(results))
	}
	return nil
}

func printVerify(cmd *cobra.Command, results []bench.VerifyResult) {
	switch verifyColor {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !isatty.IsTerminal(os.Stdout.Fd()) || os.Getenv("NO_COLOR") != ""
	}
	var (
		heading = color.New(color.Bold)
		ok      = color.New(color.FgHiGreen, color.Bold)
		bad     = color.New(color.FgHiRed, color.Bold)
		detail  = color.New(color.FgYellow)
	)

	out := cmd.OutOrStdout()
	heading.Fprintf(out, "%-14s %8s %10s %12s  %s\n", "ALGORITHM", "EVENTS", "MISMATCH", "MATCHED", "STATUS")
	for _, r := range results {
		fmt.Fprintf(out, "%-14s %8d %10d %12d  ", r.Algorithm, r.Events, r.Mismatches, r.TotalMatched)
		if r.OK() {
			ok.Fprintln(out, "OK")
			continue
		}
		bad.Fprintln(out, "MISMATCH")
		if m := r.FirstMismatch; m != nil {
			detail.Fprintf(out, "  first at event %d: missing %v, extra %v\n", m.Event, m.Missing, m.Extra)
		}
	}
}
