package main

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phil-mansfield/qcloud/io"
	"github.com/phil-mansfield/qcloud/loader"
	"github.com/phil-mansfield/qcloud/playback"
	"github.com/phil-mansfield/qcloud/preprocess"
	"github.com/phil-mansfield/qcloud/variant"
	"github.com/phil-mansfield/qcloud/view"
	"github.com/phil-mansfield/qcloud/volume"
)

const (
	termWidth, termHeight = 80, 20
)

var watchInput bool

var playCmd = &cobra.Command{
	Use:   "play CONFIG",
	Short: "Play a particle container back in the terminal",
	Long: `Reads the [Playback] and [Variant] sections of CONFIG, loads the particle
source a slice at a time and steps through its timesteps.

With --watch the Input file is watched and reloaded whenever it is
replaced, so a preprocess run in another terminal shows up on its own.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(
		&watchInput, "watch", false, "Reload Input whenever it changes on disk.",
	)
	rootCmd.AddCommand(playCmd)
}

func seconds(x float64) time.Duration {
	return time.Duration(x * float64(time.Second))
}

// playSource builds the particle source named by con.
func playSource(con *io.PlaybackConfig, log *zap.Logger) loader.Source {
	switch con.Source {
	case "Asset":
		return &loader.AssetSource{Path: con.Input}
	case "Generator":
		p := preprocess.DefaultParams()
		p.StepSize, p.Dims = con.StepSize, con.Dims()
		return &loader.GeneratorSource{
			Volume: &volume.Synthetic{Dims: con.Dims(), Seed: con.Seed},
			Params: p,
			Log:    log,
		}
	}
	return &loader.ContainerSource{Path: con.Input}
}

func newPlayLoader(con *io.PlaybackConfig, log *zap.Logger) (*loader.Loader, error) {
	src := playSource(con, log)
	log.Info("Loading.", zap.String("source", loader.Describe(src)))
	return loader.New(src, &loader.HostDevice{}, loader.Options{
		ParticlesPerFrame: con.ParticlesPerFrame,
		UploadChunk:       con.UploadChunk,
		UploadPerFrame:    con.UploadPerFrame,
		Log:               log,
	})
}

func runPlay(cmd *cobra.Command, args []string) error {
	con, vs, err := io.ReadPlaybackConfig(args[0])
	if err != nil {
		return err
	}

	// Nothing may write to the terminal while the program owns it.
	path := logFile
	if path == "" {
		path = con.LogFile
	}
	if path != "" {
		if logger, err = newLogger(path, verbose); err != nil {
			return err
		}
	}

	pal, err := variant.NewPalette(vs)
	if err != nil {
		return err
	}
	ld, err := newPlayLoader(con, logger)
	if err != nil {
		return err
	}
	r := view.NewTermRenderer(pal, termWidth, termHeight)
	ctl, err := playback.New(ld, r, playback.Options{
		TimestepInterval: seconds(con.TimestepInterval),
		AutoPlay:         con.AutoPlay,
		LoadTimeout:      seconds(con.LoadTimeout),
		Log:              logger,
	})
	if err != nil {
		return err
	}
	model, err := view.New(ld, ctl, pal, r, view.Options{
		FrameRate: con.FrameRate,
		HideDelay: seconds(con.HideDelay),
		Log:       logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	if watchInput && con.Source != "Generator" {
		g.Go(func() error {
			err := loader.Watch(gctx, con.Input, loader.DefaultDebounce, func() {
				next, err := newPlayLoader(con, logger)
				if err != nil {
					logger.Warn("Cannot reload.", zap.Error(err))
					return
				}
				p.Send(view.ReloadMsg{Loader: next})
			}, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	_, runErr := p.Run()
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	if errors.Is(runErr, tea.ErrProgramKilled) {
		return nil
	}
	return runErr
}
