package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phil-mansfield/qcloud/io"
)

var (
	tableDownsampling int32
	tableAsset        bool
)

var convertCmd = &cobra.Command{
	Use:   "convert-table TABLE OUT",
	Short: "Convert a text particle table into a container",
	Long: `Reads a whitespace-separated table whose first five columns are t, z, y,
x and q, and writes it as a binary container, or as a baked asset with
--asset. Rows are reordered by timestep. Rows within a timestep keep their
order.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().Int32Var(
		&tableDownsampling, "downsampling", 1,
		"Downsampling factor recorded in the header.",
	)
	convertCmd.Flags().BoolVar(
		&tableAsset, "asset", false, "Write a baked asset instead of a container.",
	)
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	if tableDownsampling < 1 {
		return fmt.Errorf("--downsampling must be positive, got %d.", tableDownsampling)
	}

	ps, err := io.ReadParticleTable(in)
	if err != nil {
		return err
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].T < ps[j].T })
	hd := io.TableHeader(ps, tableDownsampling)

	if tableAsset {
		a, err := io.NewAsset(hd, ps)
		if err != nil {
			return err
		}
		if err := io.WriteAssetFile(out, a); err != nil {
			return err
		}
	} else if err := io.WriteContainerFile(out, hd, ps); err != nil {
		return err
	}

	logger.Info("Converted table.",
		zap.String("table", in), zap.String("output", out),
		zap.String("particles", humanize.Comma(int64(hd.Count))),
		zap.Int32("timesteps", hd.TimeDim),
	)
	return nil
}
