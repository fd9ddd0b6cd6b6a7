package vm

import "errors"

// Value is the cell type held by every stack. Arithmetic wraps at 32 bits.
type Value int32

var (
	ErrStackEmpty   = errors.New("stack empty")
	ErrStackFull    = errors.New("stack full")
	ErrInvalidStack = errors.New("invalid stack index")
	ErrStackInUse   = errors.New("stack already in use")
	ErrNoFreeStack  = errors.New("no free stack slot")
	ErrBadCapacity  = errors.New("invalid stack capacity")
)

// Stack is a fixed-capacity LIFO of Values. Index 0 of data is the bottom.
type Stack struct {
	data     []Value
	capacity int
}

// initialAlloc caps the backing array allocated up front. Larger stacks
// grow on Push.
const initialAlloc = 256

// NewStack returns a stack holding at most capacity elements.
func NewStack(capacity int) *Stack {
	return &Stack{
		data:     make([]Value, 0, min(capacity, initialAlloc)),
		capacity: capacity,
	}
}

// Len returns the number of elements on the stack.
func (s *Stack) Len() int { return len(s.data) }

// Cap returns the fixed capacity.
func (s *Stack) Cap() int { return s.capacity }

// Push adds v on top.
func (s *Stack) Push(v Value) error {
	if len(s.data) >= s.capacity {
		return ErrStackFull
	}
	s.data = append(s.data, v)
	return nil
}

// Pop removes and returns the top element.
func (s *Stack) Pop() (Value, error) {
	v, err := s.PeekTop()
	if err != nil {
		return 0, err
	}
	s.data = s.data[:len(s.data)-1]
	return v, nil
}

// PopBottom removes and returns the oldest element, shifting the rest down.
func (s *Stack) PopBottom() (Value, error) {
	v, err := s.PeekBottom()
	if err != nil {
		return 0, err
	}
	copy(s.data, s.data[1:])
	s.data = s.data[:len(s.data)-1]
	return v, nil
}

// PeekTop returns the top element without removing it.
func (s *Stack) PeekTop() (Value, error) {
	if len(s.data) == 0 {
		return 0, ErrStackEmpty
	}
	return s.data[len(s.data)-1], nil
}

// PeekBottom returns the bottom element without removing it.
func (s *Stack) PeekBottom() (Value, error) {
	if len(s.data) == 0 {
		return 0, ErrStackEmpty
	}
	return s.data[0], nil
}

// Rotate moves the bottom element to the top. If the push half fails the
// element is lost.
func (s *Stack) Rotate() error {
	v, err := s.PopBottom()
	if err != nil {
		return err
	}
	return s.Push(v)
}

// Clear empties the stack.
func (s *Stack) Clear() {
	s.data = s.data[:0]
}

// Values returns a copy of the contents, bottom first.
func (s *Stack) Values() []Value {
	out := make([]Value, len(s.data))
	copy(out, s.data)
	return out
}
