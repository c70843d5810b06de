package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phil-mansfield/qcloud/io"
	"github.com/phil-mansfield/qcloud/preprocess"
	"github.com/phil-mansfield/qcloud/volume"
)

var syntheticSeed int64

var preprocessCmd = &cobra.Command{
	Use:   "preprocess CONFIG...",
	Short: "Filter source volumes into particle containers",
	Long: `Reads the [Preprocess] section of each configuration file, downsamples and
filters the named dataset, and writes the result atomically to Output.

Several configuration files are processed concurrently. Their Output values
must differ.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPreprocess,
}

func init() {
	preprocessCmd.Flags().Int64Var(
		&syntheticSeed, "synthetic", 0,
		"Ignore Input and generate a synthetic plume with this seed instead.",
	)
	rootCmd.AddCommand(preprocessCmd)
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	cons := make([]*io.PreprocessConfig, len(args))
	outputs := map[string]string{}
	for i, fname := range args {
		con, err := io.ReadPreprocessConfig(fname)
		if err != nil {
			return fmt.Errorf("%s: %w", fname, err)
		}
		if prev, ok := outputs[con.Output]; ok {
			return fmt.Errorf(
				"%s and %s both write to '%s'.", prev, fname, con.Output,
			)
		}
		outputs[con.Output] = fname
		cons[i] = con
	}

	if len(cons) == 1 && cons[0].ValidProfileFile() && profFile == "" {
		if err := files.StartProfile(cons[0].ProfileFile); err != nil {
			return err
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(runtime.NumCPU())
	for i := range cons {
		fname, con := args[i], cons[i]
		g.Go(func() error {
			log, err := configLogger(con.LogFile)
			if err != nil {
				return err
			}
			defer log.Sync()
			log = log.With(zap.String("config", fname))

			var src volume.Source = &volume.HDF5{Path: con.Input}
			if cmd.Flags().Changed("synthetic") {
				src = &volume.Synthetic{Dims: con.Dims(), Seed: syntheticSeed}
			}

			if _, err := preprocess.Run(src, con, log); err != nil {
				return fmt.Errorf("%s: %w", fname, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// configLogger returns the global logger unless a config file asks for its
// own log file and --log was not given.
func configLogger(path string) (*zap.Logger, error) {
	if path == "" || logFile != "" {
		return logger, nil
	}
	return newLogger(path, verbose)
}
