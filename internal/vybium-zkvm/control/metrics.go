package control

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// Metrics collects per-opcode execution counts. The segmentation loop is
// single threaded, so plain counters suffice.
type Metrics struct {
	counts map[program.OpCode]uint64
	total  uint64
}

// NewMetrics creates empty counters.
func NewMetrics() *Metrics {
	return &Metrics{counts: make(map[program.OpCode]uint64)}
}

// Count records one executed instruction.
func (m *Metrics) Count(op program.OpCode) {
	m.counts[op]++
	m.total++
}

// Total returns the executed instruction count.
func (m *Metrics) Total() uint64 { return m.total }

// OpCount returns the count for one opcode.
func (m *Metrics) OpCount(op program.OpCode) uint64 { return m.counts[op] }

// Log emits the counters sorted by frequency.
func (m *Metrics) Log(log zerolog.Logger) {
	type entry struct {
		op program.OpCode
		n  uint64
	}
	entries := make([]entry, 0, len(m.counts))
	for op, n := range m.counts {
		entries = append(entries, entry{op, n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].n > entries[j].n })

	ev := log.Info().Uint64("total", m.total)
	for _, e := range entries {
		ev = ev.Uint64(e.op.String(), e.n)
	}
	ev.Msg("opcode metrics")
}
