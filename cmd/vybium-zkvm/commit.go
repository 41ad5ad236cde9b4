package main

import (
	"fmt"

	"github.com/spf13/cobra"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var commitCmd = &cobra.Command{
	Use:   "commit <program.json>",
	Short: "Print the program commitment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, _, err := loadProgram(args[0])
		if err != nil {
			return err
		}
		vm, err := vybiumzkvm.NewVM(vybiumzkvm.DefaultConfig(), prog)
		if err != nil {
			return err
		}
		fmt.Println(digestString(vm.Commit()))
		return nil
	},
}

func digestString(d vybiumzkvm.Digest) string {
	s := ""
	for i := range d {
		s += fmt.Sprintf("%08x", d[i].Bits()[0])
	}
	return s
}

func init() {
	rootCmd.AddCommand(commitCmd)
}
