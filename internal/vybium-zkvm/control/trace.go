package control

import (
	"context"
	"runtime"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/exec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// rowWidth returns the cell count one record needs: the shared IO prefix
// plus its reads, writes and core witness.
func rowWidth(rec *exec.StepRecord) int {
	n := 3 + program.NumOperands
	for _, r := range rec.Reads {
		n += len(r)
	}
	for _, w := range rec.Writes {
		n += len(w)
	}
	n += len(rec.Core)
	if rec.IsTerminate {
		n++
	}
	return n
}

// GenerateTrace materializes the committed rows of one segment. Rows are
// independent once the records exist, so generation is sharded across
// workers. Every row is padded to the widest record in the segment.
func (vm *VM) GenerateTrace(ctx context.Context, seg *Segment) ([][]fr.Element, error) {
	if seg.Len() == 0 {
		return nil, nil
	}
	width := 0
	for _, rec := range seg.Records {
		if w := rowWidth(rec); w > width {
			width = w
		}
	}

	rows := make([][]fr.Element, seg.Len())
	workers := runtime.GOMAXPROCS(0)
	if workers > seg.Len() {
		workers = seg.Len()
	}
	chunk := (seg.Len() + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > seg.Len() {
			hi = seg.Len()
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				rec := seg.Records[i]
				ex, ok := vm.inv.Lookup(rec.Inst.Opcode)
				if !ok {
					return execErr(ErrInvalidInstruction, rec.From.PC, nil)
				}
				row := make([]fr.Element, width)
				ex.GenerateTraceRow(row, rec)
				rows[i] = row
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
