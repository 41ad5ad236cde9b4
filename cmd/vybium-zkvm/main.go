// Command vybium-zkvm executes guest programs, prints their commitments,
// and inspects continuation proof containers.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vybium-zkvm",
	Short: "Vybium zkVM host tooling",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			logger.Set(logger.Logger().Level(zerolog.WarnLevel))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable execution logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
