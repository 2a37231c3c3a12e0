package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sebastiankruger/fiber-twin/internal/config"
	"github.com/sebastiankruger/fiber-twin/internal/simulate"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

type simulateOptions struct {
	preset   string
	scenario string
	variants string
	sample   time.Duration
	duration time.Duration
	format   string
	output   string
	workers  int
}

func newSimulateCmd() *cobra.Command {
	var opts simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "run a scenario in simulated time and write the trajectory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.preset, "preset", "extrude", "built-in scenario (see 'fredtwin presets')")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "scenario YAML file; overrides --preset")
	cmd.Flags().StringVar(&opts.variants, "variants", "", "comma separated model variants or 'all'; defaults to the scenario variant")
	cmd.Flags().DurationVar(&opts.sample, "sample", time.Second, "simulated time between samples")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "override the scenario duration")
	cmd.Flags().StringVar(&opts.format, "format", "csv", "output format (csv, yaml)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&opts.workers, "workers", runtime.NumCPU(), "concurrent runs")
	return cmd
}

func runSimulate(cmd *cobra.Command, opts simulateOptions) error {
	sc, err := loadScenario(opts)
	if err != nil {
		return err
	}
	variants, err := parseVariants(opts.variants, sc.Variant)
	if err != nil {
		return err
	}

	var write func(io.Writer, []simulate.Result) error
	switch opts.format {
	case "csv":
		write = simulate.WriteCSV
	case "yaml":
		write = simulate.WriteYAML
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	start := time.Now()
	results, err := simulate.RunAll(cmd.Context(), sc, variants, opts.sample, opts.workers)
	if err != nil {
		return err
	}
	log.Info().
		Int("runs", len(results)).
		Dur("simulated", sc.Duration).
		Dur("took", time.Since(start)).
		Msg("Simulation complete")

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return write(out, results)
}

func loadScenario(opts simulateOptions) (*config.Scenario, error) {
	var sc *config.Scenario
	if opts.scenario != "" {
		var err error
		if sc, err = config.LoadScenario(opts.scenario); err != nil {
			return nil, err
		}
	} else if sc = config.GetPreset(opts.preset); sc == nil {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", opts.preset, strings.Join(config.ListPresets(), ", "))
	}
	if opts.duration > 0 {
		sc.Duration = opts.duration
	}
	return sc, nil
}

func parseVariants(list string, fallback twin.Variant) ([]twin.Variant, error) {
	switch strings.TrimSpace(list) {
	case "":
		return []twin.Variant{fallback}, nil
	case "all":
		return twin.Variants(), nil
	}
	var out []twin.Variant
	for _, name := range strings.Split(list, ",") {
		v, err := twin.ParseVariant(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				sc := config.GetPreset(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-20s %v\n", name, sc.Variant, sc.Duration)
			}
			return nil
		},
	}
}
