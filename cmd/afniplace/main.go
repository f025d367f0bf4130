package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"afniplace/internal/version"
	"afniplace/pkg/afni"
	"afniplace/pkg/config"
	"afniplace/pkg/place"
)

type options struct {
	dsets      []string
	parscan    string
	dmap       string
	saveDir    string
	configPath string
	cores      int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "afniplace",
		Short:        "PLACE phase-encode distortion correction for AFNI datasets",
		Version:      version.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringSliceVarP(&opts.dsets, "dset", "d", nil, "path(s) to .HEAD files (repeat or separate with commas)")
	flags.StringVarP(&opts.parscan, "pscan", "p", "", "path to the ParScan file")
	flags.StringVarP(&opts.dmap, "dmap", "m", "", "path to the Dmap file")
	flags.StringVarP(&opts.saveDir, "save", "s", "", "optional save directory (default: directory of the first -dset)")
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.IntVar(&opts.cores, "cores", 0, "number of timepoints to correct concurrently (default: from config)")
	root.MarkFlagRequired("dset")
	root.MarkFlagRequired("pscan")
	root.MarkFlagRequired("dmap")

	root.AddCommand(newInitConfigCommand())
	return root
}

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a configuration file with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Default configuration written to: %s\n", args[0])
			return nil
		},
	}
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.cores > 0 {
		cfg.Processing.NumCores = opts.cores
	}

	log, logFile, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	fmt.Println("================================")
	fmt.Printf("PLACE CORRECTION %s\n", version.String())
	fmt.Println("Phase-encode unwarping of EPI datasets from a displacement map")
	fmt.Println("================================")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := place.NewReport(log)
	if cfg.Output.Verbose {
		report.Echo = os.Stdout
	}

	params := &place.Params{
		NumCores:  cfg.Processing.NumCores,
		OutputDir: opts.saveDir,
		Suffix:    cfg.Output.Suffix,
		LogName:   cfg.Output.LogName,
	}
	if opts.saveDir == "" && len(opts.dsets) > 0 {
		fmt.Printf("You did not enter a save directory path, program will default to the directory of %s\n", opts.dsets[0])
	}

	pipeline := place.NewPipeline(params, log, report)
	sel := &place.StaticSelector{
		Inputs:    opts.dsets,
		OutputDir: opts.saveDir,
		ParScan:   opts.parscan,
		Dmap:      opts.dmap,
	}

	summary, err := pipeline.RunFromSelector(ctx, sel, afni.NewLoader(log))
	if err != nil {
		return fmt.Errorf("PLACE correction failed: %w", err)
	}

	fmt.Printf("\nCorrected %d of %d datasets in %.2f seconds (%d skipped, %d failed)\n",
		summary.Processed, len(summary.Results), summary.Elapsed.Seconds(), summary.Skipped, summary.Failed)
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Printf("- %s: %v\n", r.Input, r.Err)
		}
	}
	return nil
}
