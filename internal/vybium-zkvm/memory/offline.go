package memory

import (
	"fmt"
	"slices"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
)

// OfflineRow is one row of the offline-checker witness: a width-1 event plus
// the auxiliary strict-less-than decomposition against the previous access
// of the same cell. Rows are sorted by (space, pointer, timestamp).
type OfflineRow struct {
	CellAccess

	// AddressChange marks the first access of a new (space, pointer) in
	// the sorted order.
	AddressChange bool

	// TimestampDiffLimbs decompose timestamp - prevTimestamp - 1 into
	// limbs of the configured width; every limb is sent to the range
	// checker. Empty on address-change rows, where the comparison runs on
	// the address instead.
	TimestampDiffLimbs []uint32
}

// OfflineMemory replays a record arena into the offline-checker witness.
// The core argument is a sorted-tuple comparison: records sorted by
// (space, pointer, timestamp) must be adjacent-consistent, with every read
// returning the value of the most recent preceding write of the same cell.
type OfflineMemory struct {
	cfg          Config
	rangeChecker *lookup.VariableRangeChecker
}

// NewOfflineMemory creates the replay layer.
func NewOfflineMemory(cfg Config, rc *lookup.VariableRangeChecker) *OfflineMemory {
	return &OfflineMemory{cfg: cfg, rangeChecker: rc}
}

// BuildWitness sorts the event stream and materializes the full witness,
// declaring every timestamp-difference limb to the range checker. It fails
// if the events are inconsistent, which indicates a controller bug.
func (om *OfflineMemory) BuildWitness(events []CellAccess) ([]OfflineRow, error) {
	sorted := append([]CellAccess(nil), events...)
	slices.SortFunc(sorted, compareCellAccess)

	rows := make([]OfflineRow, len(sorted))
	for i, ev := range sorted {
		row := OfflineRow{CellAccess: ev}
		if i == 0 || sorted[i-1].Space != ev.Space || sorted[i-1].Pointer != ev.Pointer {
			row.AddressChange = true
		} else {
			prev := sorted[i-1]
			if prev.Timestamp != ev.PrevTimestamp {
				return nil, fmt.Errorf("event at (%d, %d) t=%d: recorded previous timestamp %d, adjacent is %d",
					ev.Space, ev.Pointer, ev.Timestamp, ev.PrevTimestamp, prev.Timestamp)
			}
			if !prev.Value.Equal(&ev.PrevValue) {
				return nil, fmt.Errorf("event at (%d, %d) t=%d: recorded previous value diverges from adjacent event",
					ev.Space, ev.Pointer, ev.Timestamp)
			}
		}
		if !ev.IsWrite && !ev.Value.Equal(&ev.PrevValue) {
			return nil, fmt.Errorf("read at (%d, %d) t=%d returns a value never written",
				ev.Space, ev.Pointer, ev.Timestamp)
		}
		if !row.AddressChange {
			limbs, err := om.lessThanLimbs(ev.PrevTimestamp, ev.Timestamp)
			if err != nil {
				return nil, err
			}
			row.TimestampDiffLimbs = limbs
		}
		rows[i] = row
	}
	return rows, nil
}

// lessThanLimbs produces the witness for prev < cur: the limb decomposition
// of cur - prev - 1. Both operands must fit in ClkMaxBits so the difference
// is expressible in F.
func (om *OfflineMemory) lessThanLimbs(prev, cur uint32) ([]uint32, error) {
	limit := uint64(1) << om.cfg.ClkMaxBits
	if uint64(prev) >= limit || uint64(cur) >= limit {
		return nil, fmt.Errorf("timestamp outside 2^%d", om.cfg.ClkMaxBits)
	}
	if prev >= cur {
		return nil, fmt.Errorf("timestamps not strictly increasing: %d then %d", prev, cur)
	}
	diff := uint64(cur - prev - 1)
	var limbs []uint32
	bits := om.cfg.ClkMaxBits
	for bits > 0 {
		w := om.cfg.Decomp
		if bits < w {
			w = bits
		}
		limb := uint32(diff & (1<<w - 1))
		limbs = append(limbs, limb)
		if om.rangeChecker != nil {
			if err := om.rangeChecker.AddCount(limb, w); err != nil {
				return nil, err
			}
		}
		diff >>= w
		bits -= w
	}
	return limbs, nil
}

// CheckWitness re-verifies a witness from the rows alone: sorted order,
// adjacency consistency, read faithfulness, and the strict-less-than
// recomposition. A mutation of any cell value or timestamp limb makes it
// fail.
func (om *OfflineMemory) CheckWitness(rows []OfflineRow) error {
	for i, row := range rows {
		if i > 0 {
			prev := rows[i-1]
			if compareCellAccess(prev.CellAccess, row.CellAccess) >= 0 {
				return fmt.Errorf("row %d breaks the sorted order", i)
			}
			sameAddr := prev.Space == row.Space && prev.Pointer == row.Pointer
			if sameAddr == row.AddressChange {
				return fmt.Errorf("row %d address-change marker disagrees with the sorted sequence", i)
			}
			if sameAddr {
				if !prev.Value.Equal(&row.PrevValue) {
					return fmt.Errorf("row %d previous value diverges from adjacent row", i)
				}
				if prev.Timestamp != row.PrevTimestamp {
					return fmt.Errorf("row %d previous timestamp diverges from adjacent row", i)
				}
			}
		}
		if !row.IsWrite && !row.Value.Equal(&row.PrevValue) {
			return fmt.Errorf("row %d read returns a value never written", i)
		}
		if !row.AddressChange {
			// Recompose cur - prev - 1 from the limbs.
			var diff uint64
			shift := 0
			for _, limb := range row.TimestampDiffLimbs {
				w := om.cfg.Decomp
				remaining := om.cfg.ClkMaxBits - shift
				if remaining < w {
					w = remaining
				}
				if uint64(limb) >= 1<<w {
					return fmt.Errorf("row %d timestamp limb %d out of range", i, limb)
				}
				diff |= uint64(limb) << shift
				shift += w
			}
			if uint64(row.Timestamp) != uint64(row.PrevTimestamp)+diff+1 {
				return fmt.Errorf("row %d strict-less-than witness does not recompose", i)
			}
		}
	}
	return nil
}

func compareCellAccess(a, b CellAccess) int {
	if a.Space != b.Space {
		if a.Space < b.Space {
			return -1
		}
		return 1
	}
	if a.Pointer != b.Pointer {
		if a.Pointer < b.Pointer {
			return -1
		}
		return 1
	}
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	return 0
}

// FieldRow flattens one witness row into trace cells, in the column order
// (space, pointer, timestamp, isWrite, value, prevValue, prevTimestamp,
// addressChange, diffLimbs...).
func (row *OfflineRow) FieldRow() []fr.Element {
	out := make([]fr.Element, 0, 8+len(row.TimestampDiffLimbs))
	out = append(out,
		fr.NewElement(uint64(row.Space)),
		fr.NewElement(uint64(row.Pointer)),
		fr.NewElement(uint64(row.Timestamp)),
		boolToField(row.IsWrite),
		row.Value,
		row.PrevValue,
		fr.NewElement(uint64(row.PrevTimestamp)),
		boolToField(row.AddressChange),
	)
	for _, l := range row.TimestampDiffLimbs {
		out = append(out, fr.NewElement(uint64(l)))
	}
	return out
}

func boolToField(b bool) fr.Element {
	if b {
		return fr.NewElement(1)
	}
	return fr.Element{}
}
