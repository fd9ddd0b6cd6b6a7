package vm

import (
	"fmt"
	"io"
)

// StackState is the recorded contents of one in-use stack.
type StackState struct {
	Index    int     `cbor:"1,keyasint"`
	Capacity int     `cbor:"2,keyasint"`
	Values   []Value `cbor:"3,keyasint"` // bottom first
}

// Snapshot records the observable state of an execution.
type Snapshot struct {
	Current  int          `cbor:"1,keyasint"`
	Cursor   int          `cbor:"2,keyasint"`
	Counters Counters     `cbor:"3,keyasint"`
	Steps    uint64       `cbor:"4,keyasint"`
	Stacks   []StackState `cbor:"5,keyasint"`
}

// Stack returns the recorded state of stack index.
func (s *Snapshot) Stack(index int) (StackState, bool) {
	for _, st := range s.Stacks {
		if st.Index == index {
			return st, true
		}
	}
	return StackState{}, false
}

func (e *execution) snapshot() *Snapshot {
	snap := &Snapshot{
		Current:  e.bank.Current(),
		Cursor:   e.ip,
		Counters: e.counters,
		Steps:    e.steps,
	}
	for i := 0; i < MaxStacks; i++ {
		s := e.bank.Stack(i)
		if s == nil {
			continue
		}
		snap.Stacks = append(snap.Stacks, StackState{
			Index:    i,
			Capacity: s.Cap(),
			Values:   s.Values(),
		})
	}
	return snap
}

// dumpStack writes the current stack bottom to top, one element per line.
func dumpStack(w io.Writer, index int, s *Stack) error {
	if s == nil {
		_, err := fmt.Fprintf(w, "stack %d: not in use\n", index)
		return err
	}
	if _, err := fmt.Fprintf(w, "stack %d (%d/%d):\n", index, s.Len(), s.Cap()); err != nil {
		return err
	}
	for i, v := range s.Values() {
		if _, err := fmt.Fprintf(w, "  [%d] %d\n", i, v); err != nil {
			return err
		}
	}
	return nil
}
