package main

import (
	"encoding/json"
	"fmt"
	"os"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

// programFile is the on-disk guest program format: a start pc and one
// entry per instruction, operands in a..g order.
type programFile struct {
	PcStart      uint32            `json:"pc_start"`
	Instructions []instructionFile `json:"instructions"`
	Inputs       [][]uint64        `json:"inputs,omitempty"`
}

// Operands are signed so guest files can write pc-relative branch and
// jump offsets directly; negative values are field-negated on load.
type instructionFile struct {
	Op       string  `json:"op"`
	Operands []int64 `json:"operands,omitempty"`
}

func loadProgram(path string) (*vybiumzkvm.Program, *programFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var pf programFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	insts := make([]vybiumzkvm.Instruction, len(pf.Instructions))
	for i, raw := range pf.Instructions {
		op, err := vybiumzkvm.ParseOpCode(raw.Op)
		if err != nil {
			return nil, nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		operands := make([]uint64, len(raw.Operands))
		for j, v := range raw.Operands {
			if v < 0 {
				if v < -(1 << 31) {
					return nil, nil, fmt.Errorf("instruction %d: offset %d out of range", i, v)
				}
				operands[j] = vybiumzkvm.SignedOffset(int32(v))
			} else {
				operands[j] = uint64(v)
			}
		}
		insts[i] = vybiumzkvm.NewInstruction(op, operands...)
	}
	prog, err := vybiumzkvm.NewProgram(insts, pf.PcStart)
	if err != nil {
		return nil, nil, err
	}
	return prog, &pf, nil
}

// seedInputs pushes the program file's input vectors onto the host stream.
func seedInputs(vm *vybiumzkvm.VM, pf *programFile) {
	for _, vec := range pf.Inputs {
		elems := make([]vybiumzkvm.FieldElement, len(vec))
		for i, v := range vec {
			elems[i] = vybiumzkvm.NewFieldElement(v)
		}
		vm.Streams().PushInputVector(elems)
	}
}
