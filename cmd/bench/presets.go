package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/bench"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the workload presets",
	RunE:  runPresets,
}

func runPresets(cmd *cobra.Command, args []string) error {
	all := make(map[string]bench.Config)
	for _, name := range bench.PresetNames() {
		cfg, err := bench.Preset(name)
		if err != nil {
			return err
		}
		all[name] = cfg
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(all)
}
