package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var (
	verifySegmentLen int
	verifyPublics    int
)

var verifyCmd = &cobra.Command{
	Use:   "verify <program.json> <proof.bin>",
	Short: "Verify a continuation proof against a guest program (mock backend)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, _, err := loadProgram(args[0])
		if err != nil {
			return err
		}
		cfg := vybiumzkvm.DefaultConfig().
			WithMaxSegmentLen(verifySegmentLen).
			WithPublicValues(verifyPublics)
		vm, err := vybiumzkvm.NewVM(cfg, prog)
		if err != nil {
			return err
		}

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		proof, err := vybiumzkvm.DeserializeProof(f)
		if err != nil {
			return err
		}

		verifier, err := vybiumzkvm.NewVerifier(cfg, vm.VerifyingKey(), mockEngine{})
		if err != nil {
			return err
		}
		res, err := verifier.Verify(proof)
		if err != nil {
			return err
		}
		if !res.Valid {
			return fmt.Errorf("proof invalid: %s", res.Error)
		}
		fmt.Printf("proof valid, exit code %d (%d ms)\n", res.ExitCode, res.VerificationTimeMs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().IntVar(&verifySegmentLen, "segment-len", 1<<22, "max instructions per segment")
	verifyCmd.Flags().IntVar(&verifyPublics, "public-values", 32, "size of the public-values space")
}
