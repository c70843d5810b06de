package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/qcloud"
)

var plotBins int

var plotCmd = &cobra.Command{
	Use:   "plot FILE OUT.png",
	Short: "Plot per-timestep counts and the q distribution of a container",
	Long: `Writes two figures next to OUT: OUT_counts.png, the number of particles
at each timestep, and OUT_q.png, a histogram of the retained scalar values.
Needs a python with matplotlib on the path.`,
	Args: cobra.ExactArgs(2),
	RunE: runPlot,
}

func init() {
	plotCmd.Flags().IntVar(&plotBins, "bins", 64, "Number of q histogram bins.")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	if plotBins < 1 {
		return fmt.Errorf("--bins must be positive, got %d.", plotBins)
	}
	hd, ps, err := readParticleFile(args[0])
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(args[1], filepath.Ext(args[1]))
	countsName, qName := base+"_counts.png", base+"_q.png"
	title := filepath.Base(args[0])

	counts, _ := timestepCounts(hd, ps)
	plotCounts(countsName, title, counts)
	plotHistogram(qName, title, ps, plotBins)
	plt.Execute()

	logger.Info("Wrote figures.",
		zap.String("counts", countsName), zap.String("q", qName))
	return nil
}

// plotCounts plots the timesteps which hold particles. Empty timesteps are
// left out.
func plotCounts(fname, title string, counts []timestepCount) {
	ts, ns := make([]float64, len(counts)), make([]float64, len(counts))
	for i, c := range counts {
		ts[i], ns[i] = float64(c.T), float64(c.N)
	}

	plt.Figure()
	plt.Plot(ts, ns, "ok")
	plt.Title(title)
	plt.XLabel("Timestep", plt.FontSize(16))
	plt.YLabel("Particles", plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fname)
}

// qHistogram bins the finite q values of ps into n equal-width bins
// spanning their range. It returns bin centers and counts.
func qHistogram(ps []qcloud.Particle, n int) (centers, counts []float64) {
	centers, counts = make([]float64, n), make([]float64, n)
	finite := make([]qcloud.Particle, 0, len(ps))
	for _, p := range ps {
		if !math.IsNaN(float64(p.Q)) && !math.IsInf(float64(p.Q), 0) {
			finite = append(finite, p)
		}
	}
	if len(finite) == 0 {
		return centers, counts
	}
	ps = finite
	b := qcloud.BoundsOf(ps)
	lo := float64(b.MinQ)
	width := (float64(b.MaxQ) - lo) / float64(n)
	for i := range centers {
		centers[i] = lo + (float64(i)+0.5)*width
	}

	for _, p := range ps {
		i := n - 1
		if width > 0 {
			i = int((float64(p.Q) - lo) / width)
		}
		if i >= n {
			i = n - 1
		}
		counts[i]++
	}
	return centers, counts
}

func plotHistogram(fname, title string, ps []qcloud.Particle, bins int) {
	qs, ns := qHistogram(ps, bins)

	plt.Figure()
	plt.Plot(qs, ns, "k", plt.LW(2))
	plt.Title(title)
	plt.XLabel(`$q$`, plt.FontSize(16))
	plt.YLabel(`$N$`, plt.FontSize(16))
	plt.YScale("log")
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fname)
}
