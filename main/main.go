package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logFile, profFile string
	verbose           bool

	logger = zap.NewNop()
	files  = &FileGroup{}
)

// FileGroup holds the process-wide output files which have to be closed
// on the way out.
type FileGroup struct {
	prof *os.File
}

// StartProfile begins a CPU profile written to path.
func (fg *FileGroup) StartProfile(path string) error {
	if fg.prof != nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	fg.prof = f
	return nil
}

func (fg *FileGroup) Close() error {
	if fg.prof == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := fg.prof.Close()
	fg.prof = nil
	return err
}

// newLogger builds a console logger writing to path, or to stderr if path
// is empty.
func newLogger(path string, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if path != "" {
		config.OutputPaths = []string{path}
		config.ErrorOutputPaths = []string{path}
	}
	return config.Build()
}

var rootCmd = &cobra.Command{
	Use:   "qcloud",
	Short: "Preprocess and play back pollutant dispersion particle clouds",
	Long: `qcloud turns a 4-D scalar field q[t][z][y][x] stored in an HDF5/NetCDF
file into a flat particle container, and plays containers back one timestep
at a time.

Most modes take a configuration file. Run 'qcloud example-config Preprocess'
or 'qcloud example-config Playback' to see one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// play owns the terminal, so it sets up its own logger.
		if cmd.Name() != "play" {
			var err error
			logger, err = newLogger(logFile, verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		if profFile != "" {
			return files.StartProfile(profFile)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&logFile, "log", "", "Write log output to this file instead of stderr.",
	)
	rootCmd.PersistentFlags().StringVar(
		&profFile, "pprof", "", "Write a CPU profile to this file.",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "Log at debug level.",
	)
}

func main() {
	err := rootCmd.Execute()
	if cerr := files.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if logger.Core().Enabled(zapcore.FatalLevel) {
			logger.Fatal("qcloud failed.", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
