package memory

import (
	"errors"
	"fmt"
	"slices"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
)

// Caller-visible failure classes. Out-of-range pointers and malformed access
// widths abort the segment; they are distinguished from the fatal
// precondition violations (unaligned chunked access, write to address space
// 0) which panic.
var (
	ErrInvalidPointer = errors.New("invalid pointer")
	ErrInvalidAccess  = errors.New("invalid access")
)

// Mode selects between volatile and persistent memory.
type Mode int

const (
	// Volatile memory has no persistent root: initial memory is zero and
	// the final state is discarded.
	Volatile Mode = iota

	// Persistent memory commits initial and final Merkle roots publicly.
	Persistent
)

type cellKey struct {
	space   uint32
	pointer uint32
}

type cellState struct {
	value     fr.Element
	timestamp uint32
}

// Controller is the timestamped memory of one segment. Every access
// increments the timestamp by exactly the number of cells touched; records
// land in an append-only arena replayed at segment close.
type Controller struct {
	cfg  Config
	dims Dimensions
	mode Mode

	timestamp     uint32
	cellsAccessed uint64

	cells   map[cellKey]cellState
	initial map[cellKey]fr.Element

	records []AccessRecord

	rangeChecker *lookup.VariableRangeChecker
}

// NewController creates a fresh segment memory. The initial image (program
// image, hint region, or the final image of the previous segment) is
// installed with SetInitialCell before execution starts.
func NewController(cfg Config, mode Mode, rc *lookup.VariableRangeChecker) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}
	return &Controller{
		cfg:          cfg,
		dims:         cfg.Dimensions(),
		mode:         mode,
		timestamp:    1,
		cells:        make(map[cellKey]cellState),
		initial:      make(map[cellKey]fr.Element),
		records:      make([]AccessRecord, 0, 1024),
		rangeChecker: rc,
	}, nil
}

// Mode returns the memory mode.
func (c *Controller) Mode() Mode { return c.mode }

// Config returns the memory configuration.
func (c *Controller) Config() Config { return c.cfg }

// Dimensions returns the Merkle tree geometry.
func (c *Controller) Dimensions() Dimensions { return c.dims }

// Timestamp returns the current (monotone) timestamp.
func (c *Controller) Timestamp() uint32 { return c.timestamp }

// IncrementTimestamp bumps the timestamp by one without touching memory.
// Executors use it to preserve the adapter's expected timestamp delta when
// an instruction skips an optional access.
func (c *Controller) IncrementTimestamp() {
	c.timestamp++
}

// CellsAccessed returns the total cell count across all accesses; the
// segmentation heuristic reads it.
func (c *Controller) CellsAccessed() uint64 { return c.cellsAccessed }

// Records exposes the record arena. The slice is owned by the controller and
// valid until the next segment starts.
func (c *Controller) Records() []AccessRecord { return c.records }

// SetInitialCell installs one cell of the initial image. Must be called
// before the first access; the cell's initial timestamp is 0.
func (c *Controller) SetInitialCell(space, pointer uint32, v fr.Element) error {
	if space == 0 {
		return fmt.Errorf("address space 0 holds immediates, not memory")
	}
	if len(c.records) > 0 {
		return fmt.Errorf("initial image is frozen once execution starts")
	}
	k := cellKey{space, pointer}
	c.initial[k] = v
	c.cells[k] = cellState{value: v, timestamp: 0}
	return nil
}

func (c *Controller) checkPointer(space, pointer uint32, n int) error {
	if n != 1 && n != 2 && n != 4 && n != 8 && n != 16 && n != 32 {
		return fmt.Errorf("%w: access width %d is not a supported power of two", ErrInvalidAccess, n)
	}
	if n > c.cfg.MaxAccessAdapterN {
		return fmt.Errorf("%w: access width %d exceeds max adapter width %d", ErrInvalidAccess, n, c.cfg.MaxAccessAdapterN)
	}
	if n > 1 && pointer%uint32(n) != 0 {
		// Unaligned chunked access is a precondition violation that
		// indicates a bug in executor code rather than bad input.
		panic(fmt.Sprintf("unaligned access: width %d at pointer %d", n, pointer))
	}
	limit := uint64(1) << c.cfg.PointerMaxBits
	if uint64(pointer)+uint64(n) > limit {
		return fmt.Errorf("%w: pointer %d width %d exceeds %d bits", ErrInvalidPointer, pointer, n, c.cfg.PointerMaxBits)
	}
	if space >= c.dims.ASOffset+1<<c.dims.ASHeight {
		return fmt.Errorf("%w: address space %d out of range", ErrInvalidPointer, space)
	}
	// The range checker receives the pointer decomposition so the AIR can
	// reproduce the bound.
	if c.rangeChecker != nil {
		if err := c.rangeChecker.CheckRange(uint64(pointer), c.cfg.PointerMaxBits, c.cfg.Decomp); err != nil {
			return fmt.Errorf("pointer range check: %w", err)
		}
	}
	return nil
}

// ReadCell reads one cell. An address-space-0 read returns the pointer
// value itself as an immediate with a synthetic record.
func (c *Controller) ReadCell(space, pointer uint32) (fr.Element, RecordID, error) {
	if space == 0 {
		return fr.NewElement(uint64(pointer)), ImmediateRecord, nil
	}
	vals, id, err := c.Read(space, pointer, 1)
	if err != nil {
		return fr.Element{}, ImmediateRecord, err
	}
	return vals[0], id, nil
}

// Read returns n consecutive cells starting at pointer and appends a read
// record. The timestamp advances by n.
func (c *Controller) Read(space, pointer uint32, n int) ([]fr.Element, RecordID, error) {
	if space == 0 {
		return nil, ImmediateRecord, fmt.Errorf("%w: multi-cell read from the immediate space", ErrInvalidAccess)
	}
	if err := c.checkPointer(space, pointer, n); err != nil {
		return nil, ImmediateRecord, err
	}
	rec := AccessRecord{
		Address:        Address{Space: space, Pointer: pointer},
		Timestamp:      c.timestamp,
		IsWrite:        false,
		Values:         make([]fr.Element, n),
		PrevValues:     make([]fr.Element, n),
		PrevTimestamps: make([]uint32, n),
	}
	for i := 0; i < n; i++ {
		k := cellKey{space, pointer + uint32(i)}
		st := c.cells[k] // zero value: untouched cell, value 0 at time 0
		rec.Values[i] = st.value
		rec.PrevValues[i] = st.value
		rec.PrevTimestamps[i] = st.timestamp
		c.cells[k] = cellState{value: st.value, timestamp: c.timestamp + uint32(i)}
	}
	c.timestamp += uint32(n)
	c.cellsAccessed += uint64(n)
	c.records = append(c.records, rec)
	return rec.Values, RecordID(len(c.records) - 1), nil
}

// Write stores n consecutive cells starting at pointer and appends a write
// record. Writing to address space 0 is a precondition violation.
func (c *Controller) Write(space, pointer uint32, values []fr.Element) (RecordID, error) {
	if space == 0 {
		panic("write to address space 0")
	}
	n := len(values)
	if err := c.checkPointer(space, pointer, n); err != nil {
		return ImmediateRecord, err
	}
	rec := AccessRecord{
		Address:        Address{Space: space, Pointer: pointer},
		Timestamp:      c.timestamp,
		IsWrite:        true,
		Values:         append([]fr.Element(nil), values...),
		PrevValues:     make([]fr.Element, n),
		PrevTimestamps: make([]uint32, n),
	}
	for i := 0; i < n; i++ {
		k := cellKey{space, pointer + uint32(i)}
		st := c.cells[k]
		rec.PrevValues[i] = st.value
		rec.PrevTimestamps[i] = st.timestamp
		c.cells[k] = cellState{value: values[i], timestamp: c.timestamp + uint32(i)}
	}
	c.timestamp += uint32(n)
	c.cellsAccessed += uint64(n)
	c.records = append(c.records, rec)
	return RecordID(len(c.records) - 1), nil
}

// Record returns the record behind an id. Immediate ids have no record.
func (c *Controller) Record(id RecordID) (*AccessRecord, bool) {
	if id < 0 || int(id) >= len(c.records) {
		return nil, false
	}
	return &c.records[id], true
}

// CellValue returns the current value of one cell without recording an
// access. Trace generation and the boundary chip use it.
func (c *Controller) CellValue(space, pointer uint32) fr.Element {
	return c.cells[cellKey{space, pointer}].value
}

// InitialBlock returns the initial-image chunk of (space, label).
func (c *Controller) InitialBlock(space, label uint32) [Chunk]fr.Element {
	var out [Chunk]fr.Element
	for i := 0; i < Chunk; i++ {
		out[i] = c.initial[cellKey{space, label*Chunk + uint32(i)}]
	}
	return out
}

// FinalBlock returns the current chunk of (space, label), the equipartition
// entry after folding all writes over the initial image.
func (c *Controller) FinalBlock(space, label uint32) [Chunk]fr.Element {
	var out [Chunk]fr.Element
	for i := 0; i < Chunk; i++ {
		out[i] = c.cells[cellKey{space, label*Chunk + uint32(i)}].value
	}
	return out
}

// TouchedBlocks lists every (space, label) pair touched by the initial image
// or by execution, sorted by (space, label).
func (c *Controller) TouchedBlocks() []Address {
	seen := make(map[Address]struct{})
	for k := range c.cells {
		seen[Address{Space: k.space, Pointer: k.pointer / Chunk}] = struct{}{}
	}
	out := make([]Address, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sortAddresses(out)
	return out
}

func sortAddresses(addrs []Address) {
	slices.SortFunc(addrs, func(a, b Address) int {
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
		return 0
	})
}
