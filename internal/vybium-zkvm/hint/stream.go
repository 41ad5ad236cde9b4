// Package hint implements the non-deterministic advice channel between the
// host and the VM: the input stream of host-provided vectors and the hint
// stream the phantom opcodes feed and the HINT loads consume.
package hint

import (
	"errors"
	"sync"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
)

// ErrHintOutOfBounds is returned when the hint stream is drained.
var ErrHintOutOfBounds = errors.New("hint stream drained")

// ErrEndOfInputStream is returned when the host input stream is depleted.
var ErrEndOfInputStream = errors.New("host input stream depleted")

// Streams owns the advice state of one VM instance: a FIFO of host input
// vectors and a FIFO hint stream of field elements. One VM instance holds
// the streams exclusively; the mutex only guards setup against the brief
// per-opcode acquisitions.
type Streams struct {
	mu sync.Mutex

	inputs [][]fr.Element
	hints  []fr.Element
}

// NewStreams creates empty streams.
func NewStreams() *Streams {
	return &Streams{}
}

// PushInputVector appends one host input vector. Called by the host before
// (or during) execution.
func (s *Streams) PushInputVector(v []fr.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, append([]fr.Element(nil), v...))
}

// PopInputVector removes and returns the oldest input vector.
func (s *Streams) PopInputVector() ([]fr.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		return nil, ErrEndOfInputStream
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	return v, nil
}

// PushHints appends elements to the hint stream.
func (s *Streams) PushHints(v ...fr.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = append(s.hints, v...)
}

// PopHint removes and returns the oldest hint element.
func (s *Streams) PopHint() (fr.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hints) == 0 {
		return fr.Element{}, ErrHintOutOfBounds
	}
	v := s.hints[0]
	s.hints = s.hints[1:]
	return v, nil
}

// PopHints removes and returns the oldest n hint elements; it fails without
// consuming anything if fewer are buffered.
func (s *Streams) PopHints(n int) ([]fr.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hints) < n {
		return nil, ErrHintOutOfBounds
	}
	v := s.hints[:n]
	s.hints = s.hints[n:]
	return v, nil
}

// HintLen returns the buffered hint count.
func (s *Streams) HintLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hints)
}

// DrainHints clears the hint stream. The controller calls it on a segment
// boundary only when the executor explicitly requests a drain.
func (s *Streams) DrainHints() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = nil
}
