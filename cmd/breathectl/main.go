// breathectl runs and inspects a breath engine process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/breathe/pkg/util"
	"github.com/newtron-network/breathe/pkg/version"
)

var verboseFlag bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "breathectl",
		Short: "Run and inspect a breath dataflow engine",
		Long: `breathectl drives a single-process, user-space packet-processing
engine from a YAML app/link configuration.

  breathectl run config.yaml                 # run until interrupted
  breathectl run config.yaml --watch          # reload on config changes
  breathectl report --redis localhost:6379 '.engine.breaths'

breathectl ships only the demo app classes (source/tee/sink) documented
in its example configuration; real app classes are supplied by whatever
program imports pkg/loader and pkg/engine directly.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newRunCmd(),
		newReportCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version.Info())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setLogLevel() {
	if verboseFlag {
		util.SetLogLevel("debug")
	} else {
		util.SetLogLevel("info")
	}
}
