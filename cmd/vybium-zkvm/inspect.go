package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <proof.bin>",
	Short: "Decode a continuation proof container and print its connectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		proof, err := vybiumzkvm.DeserializeProof(f)
		if err != nil {
			return err
		}
		fmt.Printf("app commit: %s\n", digestString(proof.AppCommit))
		fmt.Printf("segments: %d\n", len(proof.Segments))
		for i, sp := range proof.Segments {
			c := sp.Connector
			fmt.Printf("  [%d] pc %#x -> %#x  terminate=%v exit=%d  body=%d bytes\n",
				i, c.InitialPC, c.FinalPC, c.IsTerminate, c.ExitCode, len(sp.Body))
		}
		if proof.PublicValues != nil {
			fmt.Printf("public values commit: %s\n", digestString(proof.PublicValues.PublicValuesCommit))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
