package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/exec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/hint"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/logger"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// ctxCheckInterval is how many steps run between context polls.
const ctxCheckInterval = 1 << 10

// VM executes a program and splits the run into segments.
type VM struct {
	cfg     VmConfig
	prog    *program.Program
	inv     *exec.Inventory
	machine *exec.Machine
	metrics *Metrics
	log     zerolog.Logger
}

// NewVM builds a machine for one execution of prog under cfg.
func NewVM(cfg VmConfig, prog *program.Program) (*VM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vm config: %w", err)
	}
	if prog == nil {
		return nil, fmt.Errorf("program cannot be nil")
	}
	inv, err := exec.DefaultInventory()
	if err != nil {
		return nil, err
	}
	rc, err := lookup.NewVariableRangeChecker(0, cfg.Memory.Decomp)
	if err != nil {
		return nil, err
	}
	bw, err := lookup.NewBitwiseLookup(1, exec.LimbBits)
	if err != nil {
		return nil, err
	}
	rt, err := lookup.NewRangeTupleChecker(2, []uint32{1 << 8, 1 << 11})
	if err != nil {
		return nil, err
	}
	mode := memory.Volatile
	if cfg.ContinuationEnabled {
		mode = memory.Persistent
	}
	mem, err := memory.NewController(cfg.Memory, mode, rc)
	if err != nil {
		return nil, err
	}
	vm := &VM{
		cfg:  cfg,
		prog: prog,
		inv:  inv,
		machine: &exec.Machine{
			Mem:        mem,
			Range:      rc,
			Bitwise:    bw,
			RangeTuple: rt,
			Streams:    hint.NewStreams(),
			Hash:       poseidon2.NewPermutation(),
		},
		log: logger.Logger().With().Str("component", "vm").Logger(),
	}
	if cfg.CollectMetrics {
		vm.metrics = NewMetrics()
	}
	return vm, nil
}

// Machine exposes the chip bundle, mainly for seeding initial memory.
func (vm *VM) Machine() *exec.Machine { return vm.machine }

// Streams exposes the host input and hint streams.
func (vm *VM) Streams() *hint.Streams { return vm.machine.Streams }

// Metrics returns the collected counters; nil when disabled.
func (vm *VM) Metrics() *Metrics { return vm.metrics }

// fetch classifies pc faults before delegating to the program.
func (vm *VM) fetch(pc uint32) (*program.Instruction, *ExecutionError) {
	if pc%program.DefaultPCStep != 0 {
		return nil, execErr(ErrPcNotAligned, pc, nil)
	}
	if int(pc/program.DefaultPCStep) >= vm.prog.Len() {
		return nil, execErr(ErrPcOutOfBounds, pc, nil)
	}
	inst, err := vm.prog.InstructionAt(pc)
	if err != nil {
		return nil, execErr(ErrFail, pc, err)
	}
	return inst, nil
}

// classify maps executor failures onto the closed error codes.
func classify(pc uint32, inst *program.Instruction, err error) *ExecutionError {
	switch {
	case errors.Is(err, hint.ErrHintOutOfBounds):
		return execErr(ErrHintOutOfBounds, pc, err)
	case errors.Is(err, hint.ErrEndOfInputStream):
		return execErr(ErrEndOfInputStream, pc, err)
	case inst.Opcode == program.Phantom:
		return execErr(ErrInvalidPhantomInstruction, pc, err)
	default:
		return execErr(ErrFail, pc, err)
	}
}

// Execute runs the program to termination, closing a segment when it
// reaches MaxSegmentLen instructions or touches MaxSegmentCells memory
// cells. The returned segments chain: each segment's final
// (pc, timestamp) equals the next segment's initial pair, and only the
// last segment terminates.
func (vm *VM) Execute(ctx context.Context) ([]*Segment, error) {
	st := exec.ExecutionState{PC: vm.prog.PcStart, Timestamp: vm.machine.Mem.Timestamp()}
	var segments []*Segment
	current := vm.openSegment(0, st)
	segCells := vm.machine.Mem.CellsAccessed()
	if vm.machine.Mem.Mode() == memory.Persistent {
		mt, err := vm.machine.Mem.InitialMerkleTree(vm.machine.Hash)
		if err != nil {
			return nil, err
		}
		current.PreRoot = mt.Root()
	}

	for steps := 0; ; steps++ {
		if steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		inst, ferr := vm.fetch(st.PC)
		if ferr != nil {
			return nil, ferr
		}
		ex, ok := vm.inv.Lookup(inst.Opcode)
		if !ok {
			return nil, execErr(ErrInvalidInstruction, st.PC, fmt.Errorf("opcode %s", inst.Opcode))
		}

		rec, err := ex.Preprocess(vm.machine, st, inst)
		if err != nil {
			return nil, classify(st.PC, inst, err)
		}
		if err := ex.ExecuteCore(rec); err != nil {
			return nil, classify(st.PC, inst, err)
		}
		next, err := ex.Postprocess(vm.machine, rec)
		if err != nil {
			return nil, classify(st.PC, inst, err)
		}

		current.Records = append(current.Records, rec)
		if vm.metrics != nil {
			vm.metrics.Count(inst.Opcode)
		}

		if rec.IsTerminate {
			if err := vm.sealSegment(current, next, rec); err != nil {
				return nil, err
			}
			segments = append(segments, current)
			break
		}
		st = next

		if current.Len() >= vm.cfg.MaxSegmentLen ||
			vm.machine.Mem.CellsAccessed()-segCells >= vm.cfg.MaxSegmentCells {
			if !vm.cfg.ContinuationEnabled {
				return nil, execErr(ErrFail, st.PC,
					fmt.Errorf("segment limit reached without continuations"))
			}
			if err := vm.sealSegment(current, st, nil); err != nil {
				return nil, err
			}
			segments = append(segments, current)
			opened := vm.openSegment(len(segments), st)
			opened.PreRoot = current.PostRoot
			current = opened
			segCells = vm.machine.Mem.CellsAccessed()
		}
	}

	vm.log.Info().
		Int("segments", len(segments)).
		Uint64("cells_accessed", vm.machine.Mem.CellsAccessed()).
		Uint32("exit_code", segments[len(segments)-1].Publics.ExitCode).
		Msg("execution finished")
	if vm.metrics != nil {
		vm.metrics.Log(vm.log)
	}
	return segments, nil
}

func (vm *VM) openSegment(index int, st exec.ExecutionState) *Segment {
	return &Segment{
		Index: index,
		Publics: SegmentPublicValues{
			InitialPC:        st.PC,
			InitialTimestamp: st.Timestamp,
		},
	}
}

func (vm *VM) sealSegment(s *Segment, final exec.ExecutionState, term *exec.StepRecord) error {
	s.Publics.FinalPC = final.PC
	s.Publics.FinalTimestamp = final.Timestamp
	if term != nil {
		s.Publics.IsTerminate = true
		s.Publics.ExitCode = term.ExitCode
	}
	if vm.machine.Mem.Mode() == memory.Persistent {
		mt, err := vm.machine.Mem.FinalMerkleTree(vm.machine.Hash)
		if err != nil {
			return err
		}
		s.PostRoot = mt.Root()
	}
	return nil
}
