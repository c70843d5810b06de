package main

import (
	"fmt"
	gio "io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/io"
)

var dumpCount int

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print the header, bounds and per-timestep counts of a container",
	Long: `Prints what a particle file holds. Files ending in .yaml, .yml or .asset
are read as baked assets, everything else as a binary container.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(
		&dumpCount, "dump", 0, "Also print the first N particle records.",
	)
	rootCmd.AddCommand(inspectCmd)
}

func isAssetPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".asset":
		return true
	}
	return false
}

// readParticleFile reads a container or asset, chosen by extension.
func readParticleFile(path string) (qcloud.Header, []qcloud.Particle, error) {
	if !isAssetPath(path) {
		return io.ReadContainerFile(path)
	}
	a, err := io.ReadAssetFile(path)
	if err != nil {
		return qcloud.Header{}, nil, err
	}
	ps, err := a.Particles()
	if err != nil {
		return qcloud.Header{}, nil, err
	}
	return a.Header(), ps, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	hd, ps, err := readParticleFile(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	printInspection(cmd.OutOrStdout(), path, info.Size(), hd, ps)
	return nil
}

func printInspection(
	w gio.Writer, path string, size int64, hd qcloud.Header, ps []qcloud.Particle,
) {
	fmt.Fprintf(w, "File:         %s (%s)\n", path, humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "Particles:    %s\n", humanize.Comma(int64(hd.Count)))
	fmt.Fprintf(w, "Downsampling: %dx\n", hd.DownsamplingFactor)
	fmt.Fprintf(w, "Dimensions:   t=%d, z=%d, y=%d, x=%d\n",
		hd.TimeDim, hd.ZDim, hd.YDim, hd.XDim)
	if !isAssetPath(path) {
		expected := int64(qcloud.HeaderSize) + int64(hd.Count)*qcloud.ParticleSize
		status := "ok"
		if expected != size {
			status = "MISMATCH"
		}
		fmt.Fprintf(w, "Size check:   %d bytes expected, %d on disk: %s\n",
			expected, size, status)
	}

	b := qcloud.BoundsOf(ps)
	fmt.Fprintf(w, "Bounds:       x=[%d, %d], y=[%d, %d], z=[%d, %d]\n",
		b.MinX, b.MaxX, b.MinY, b.MaxY, b.MinZ, b.MaxZ)
	fmt.Fprintf(w, "Value range:  q=[%.6g, %.6g]\n", b.MinQ, b.MaxQ)

	counts, span := timestepCounts(hd, ps)
	fmt.Fprintf(w, "Timesteps:    %d in range, %d empty\n", span, span-len(counts))
	for _, c := range counts {
		fmt.Fprintf(w, "  %4d %12s\n", c.T, humanize.Comma(int64(c.N)))
	}

	for i := 0; i < dumpCount && i < len(ps); i++ {
		p := ps[i]
		fmt.Fprintf(w, "%8d: t=%d z=%d y=%d x=%d q=%.6g\n",
			i, p.T, p.Z, p.Y, p.X, p.Q)
	}
}

type timestepCount struct {
	T, N int
}

// timestepCounts returns the particle count of every timestep which has
// particles, in timestep order, and the number of timesteps covered by the
// header or present in ps. Negative timesteps are ignored.
func timestepCounts(hd qcloud.Header, ps []qcloud.Particle) ([]timestepCount, int) {
	span := int(hd.TimeDim)
	byT := map[int]int{}
	for _, p := range ps {
		if p.T < 0 {
			continue
		}
		byT[int(p.T)]++
		if int(p.T) >= span {
			span = int(p.T) + 1
		}
	}
	if span < 0 {
		span = 0
	}

	counts := make([]timestepCount, 0, len(byT))
	for t, n := range byT {
		counts = append(counts, timestepCount{t, n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].T < counts[j].T })
	return counts, span
}
