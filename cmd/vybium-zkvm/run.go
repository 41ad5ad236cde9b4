package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/logger"
	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var (
	runSegmentLen int
	runPublics    int
	runMetrics    bool
)

var runCmd = &cobra.Command{
	Use:   "run <program.json>",
	Short: "Execute a guest program and print its published values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runMetrics {
			// The counters are emitted through the logger at info level.
			logger.Set(logger.Logger().Level(zerolog.InfoLevel))
		}
		prog, pf, err := loadProgram(args[0])
		if err != nil {
			return err
		}
		cfg := vybiumzkvm.DefaultConfig().
			WithMaxSegmentLen(runSegmentLen).
			WithPublicValues(runPublics).
			WithMetrics(runMetrics)
		vm, err := vybiumzkvm.NewVM(cfg, prog)
		if err != nil {
			return err
		}
		seedInputs(vm, pf)

		segs, err := vm.Execute(cmd.Context())
		if err != nil {
			return err
		}
		last := segs[len(segs)-1]
		fmt.Printf("segments: %d\n", len(segs))
		fmt.Printf("exit code: %d\n", last.Publics.ExitCode)
		for i, v := range vm.PublicValues() {
			fmt.Printf("public[%d] = %d\n", i, v.Bits()[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&runSegmentLen, "segment-len", 1<<22, "max instructions per segment")
	runCmd.Flags().IntVar(&runPublics, "public-values", 32, "size of the public-values space")
	runCmd.Flags().BoolVar(&runMetrics, "metrics", false, "log per-opcode execution counts")
}
