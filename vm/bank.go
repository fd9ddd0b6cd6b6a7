package vm

import "fmt"

// MaxStacks is the number of stack slots in a Bank.
const MaxStacks = 10

// AutoIndex asks Create to pick the first free slot.
const AutoIndex = -1

// Bank owns the stack slots of one execution and tracks which stack is
// current. A nil slot is unused.
type Bank struct {
	slots   [MaxStacks]*Stack
	current int

	// maxCapacity bounds the capacity Create accepts; 0 means unbounded.
	maxCapacity int
}

// NewBank creates a bank with stack 0 allocated at the given capacity and
// selected as current.
func NewBank(capacity, maxCapacity int) *Bank {
	b := &Bank{maxCapacity: maxCapacity}
	b.slots[0] = NewStack(capacity)
	return b
}

func (b *Bank) stack(index int) (*Stack, error) {
	if index < 0 || index >= MaxStacks || b.slots[index] == nil {
		return nil, fmt.Errorf("stack %d: %w", index, ErrInvalidStack)
	}
	return b.slots[index], nil
}

// Stack returns the stack at index, or nil if the slot is unused or out of
// range.
func (b *Bank) Stack(index int) *Stack {
	s, _ := b.stack(index)
	return s
}

// InUse reports whether index names an allocated slot.
func (b *Bank) InUse(index int) bool {
	return b.Stack(index) != nil
}

// Current returns the index of the current stack. The slot may have been
// deleted since it was selected.
func (b *Bank) Current() int {
	return b.current
}

// Create allocates a stack at index, or at the first free slot when index is
// negative. The new index is pushed onto the current stack. The current
// stack is not changed. If the push fails the slot is released again.
func (b *Bank) Create(index, capacity int) (int, error) {
	if capacity <= 0 || (b.maxCapacity > 0 && capacity > b.maxCapacity) {
		return 0, fmt.Errorf("capacity %d: %w", capacity, ErrBadCapacity)
	}
	if index < 0 {
		index = -1
		for i, s := range b.slots {
			if s == nil {
				index = i
				break
			}
		}
		if index < 0 {
			return 0, ErrNoFreeStack
		}
	} else if index >= MaxStacks {
		return 0, fmt.Errorf("stack %d: %w", index, ErrInvalidStack)
	} else if b.slots[index] != nil {
		return 0, fmt.Errorf("stack %d: %w", index, ErrStackInUse)
	}

	b.slots[index] = NewStack(capacity)
	if err := b.Push(b.current, Value(index)); err != nil {
		b.slots[index] = nil
		return 0, err
	}
	return index, nil
}

// Delete releases the stack at index.
func (b *Bank) Delete(index int) error {
	if _, err := b.stack(index); err != nil {
		return err
	}
	b.slots[index] = nil
	return nil
}

// Select makes index the current stack.
func (b *Bank) Select(index int) error {
	if _, err := b.stack(index); err != nil {
		return err
	}
	b.current = index
	return nil
}

// Push pushes v onto the stack at index.
func (b *Bank) Push(index int, v Value) error {
	s, err := b.stack(index)
	if err != nil {
		return err
	}
	if err := s.Push(v); err != nil {
		return fmt.Errorf("stack %d: %w", index, err)
	}
	return nil
}

// Pop pops the top of the stack at index.
func (b *Bank) Pop(index int) (Value, error) {
	return b.read(index, (*Stack).Pop)
}

// PopBottom removes the bottom element of the stack at index.
func (b *Bank) PopBottom(index int) (Value, error) {
	return b.read(index, (*Stack).PopBottom)
}

// PeekTop reads the top of the stack at index.
func (b *Bank) PeekTop(index int) (Value, error) {
	return b.read(index, (*Stack).PeekTop)
}

// PeekBottom reads the bottom of the stack at index.
func (b *Bank) PeekBottom(index int) (Value, error) {
	return b.read(index, (*Stack).PeekBottom)
}

func (b *Bank) read(index int, op func(*Stack) (Value, error)) (Value, error) {
	s, err := b.stack(index)
	if err != nil {
		return 0, err
	}
	v, err := op(s)
	if err != nil {
		return 0, fmt.Errorf("stack %d: %w", index, err)
	}
	return v, nil
}

// Rotate moves the bottom element of the stack at index to its top.
func (b *Bank) Rotate(index int) error {
	s, err := b.stack(index)
	if err != nil {
		return err
	}
	if err := s.Rotate(); err != nil {
		return fmt.Errorf("stack %d: %w", index, err)
	}
	return nil
}

// Clear empties the stack at index.
func (b *Bank) Clear(index int) error {
	s, err := b.stack(index)
	if err != nil {
		return err
	}
	s.Clear()
	return nil
}

// Release frees every slot. The bank is unusable afterwards.
func (b *Bank) Release() {
	for i := range b.slots {
		b.slots[i] = nil
	}
}
