package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var (
	proveOut        string
	proveSegmentLen int
	provePublics    int
)

var proveCmd = &cobra.Command{
	Use:   "prove <program.json>",
	Short: "Execute a guest program and write a continuation proof (mock backend)",
	Long: "Executes the program with continuations and writes the proof container.\n" +
		"Proof bodies come from the insecure mock backend; use for pipeline\n" +
		"development only.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, pf, err := loadProgram(args[0])
		if err != nil {
			return err
		}
		cfg := vybiumzkvm.DefaultConfig().
			WithMaxSegmentLen(proveSegmentLen).
			WithPublicValues(provePublics)
		vm, err := vybiumzkvm.NewVM(cfg, prog)
		if err != nil {
			return err
		}
		seedInputs(vm, pf)

		proof, err := vm.Prove(cmd.Context(), mockProver{vk: vm.VerifyingKey()})
		if err != nil {
			return err
		}
		f, err := os.Create(proveOut)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := proof.Serialize(f); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d segments)\n", proveOut, len(proof.Segments))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proveCmd)
	proveCmd.Flags().StringVarP(&proveOut, "out", "o", "proof.bin", "output proof file")
	proveCmd.Flags().IntVar(&proveSegmentLen, "segment-len", 1<<22, "max instructions per segment")
	proveCmd.Flags().IntVar(&provePublics, "public-values", 32, "size of the public-values space")
}
