package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phil-mansfield/qcloud/io"
)

var exampleCmd = &cobra.Command{
	Use:       "example-config {Preprocess|Playback}",
	Short:     "Print an example configuration file",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"Preprocess", "Playback"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "Preprocess":
			fmt.Fprintln(cmd.OutOrStdout(), io.ExamplePreprocessFile)
		case "Playback":
			fmt.Fprintln(cmd.OutOrStdout(), io.ExamplePlaybackFile)
		default:
			return fmt.Errorf(
				"Unrecognized mode '%s'. Must be one of [Preprocess | Playback].",
				args[0],
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exampleCmd)
}
