package vm

import (
	"bytes"
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Hash escapes: #c<ch>  #n<decimal>\  #s<name>\  #g<name>\
// ---------------------------------------------------------------------------

// escape decodes and executes the escape sequence starting at the cursor and
// leaves the cursor on its last byte.
func (e *execution) escape() error {
	start := e.ip
	if start+1 >= len(e.src) {
		return e.fail(StatusMalformedEscape, ErrMalformedEscape)
	}

	switch kind := e.src[start+1]; kind {
	case 'c':
		if start+2 >= len(e.src) {
			return e.fail(StatusMalformedEscape, ErrMalformedEscape)
		}
		if err := e.push(Value(e.src[start+2])); err != nil {
			return err
		}
		e.ip = start + 2
		return nil

	case 'n', 's', 'g':
		rel := bytes.IndexByte(e.src[start+2:], escapeEnd)
		if rel < 0 {
			return e.fail(StatusMalformedEscape, fmt.Errorf("#%c without terminating backslash: %w", kind, ErrMalformedEscape))
		}
		if rel > MaxEscapeLen {
			return e.fail(StatusEscapeTooLong, fmt.Errorf("#%c payload is %d bytes, limit %d", kind, rel, MaxEscapeLen))
		}
		end := start + 2 + rel
		payload := string(e.src[start+2 : end])

		var err error
		switch kind {
		case 'n':
			err = e.number(payload)
		case 's':
			err = e.command(payload, stackCommands)
		case 'g':
			err = e.command(payload, queryCommands)
		}
		if err != nil {
			return err
		}
		e.ip = end
		return nil
	}
	return e.fail(StatusUnknownEscape, fmt.Errorf("unknown escape #%c", e.src[start+1]))
}

func (e *execution) number(text string) error {
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return e.fail(StatusBadNumber, err)
	}
	return e.push(Value(n))
}

func (e *execution) command(name string, table map[string]func(*execution) error) error {
	fn, ok := table[name]
	if !ok {
		if e.vm.cfg.strict {
			return e.fail(StatusUnknownCommand, fmt.Errorf("unknown command %q", name))
		}
		log.Debugf("ignoring unknown command %q at %d", name, e.ip)
		return nil
	}
	return fn(e)
}

var queryCommands = map[string]func(*execution) error{
	"cs": func(e *execution) error {
		return e.push(Value(e.bank.Current()))
	},
	// length of the current stack before the push
	"ln": func(e *execution) error {
		st, err := e.bank.stack(e.bank.Current())
		if err != nil {
			return e.stackFail(err, StatusEmptyStack)
		}
		return e.push(Value(st.Len()))
	},
}

// stackCommands are the #s operations. Operands are popped from the current
// stack in the order they are listed in each comment.
var stackCommands = map[string]func(*execution) error{
	// capacity, index: create a stack, index < 0 picks a free slot.
	"ns": func(e *execution) error {
		capacity, err := e.pop()
		if err != nil {
			return err
		}
		index, err := e.pop()
		if err != nil {
			return err
		}
		idx, err := e.bank.Create(int(index), int(capacity))
		if err != nil {
			return e.stackFail(err, StatusEmptyStack)
		}
		log.Debugf("created stack %d with capacity %d", idx, capacity)
		return nil
	},
	// index: delete a stack.
	"ds": func(e *execution) error {
		return e.withIndex(e.bank.Delete)
	},
	// index: select the current stack.
	"cs": func(e *execution) error {
		return e.withIndex(e.bank.Select)
	},
	// index: clear a stack.
	"clr": func(e *execution) error {
		return e.withIndex(e.bank.Clear)
	},
	// index: move the top of stack index onto the current stack.
	"tfa": func(e *execution) error {
		return e.transferIn(e.bank.Pop)
	},
	// index: copy the top of stack index onto the current stack.
	"tfb": func(e *execution) error {
		return e.transferIn(e.bank.PeekTop)
	},
	// index, value: push value onto stack index.
	"tfc": func(e *execution) error {
		index, err := e.pop()
		if err != nil {
			return err
		}
		v, err := e.pop()
		if err != nil {
			return err
		}
		if err := e.bank.Push(int(index), v); err != nil {
			return e.stackFail(err, StatusEmptyStack)
		}
		return nil
	},
	// index: copy the top of the current stack onto stack index.
	"tfd": func(e *execution) error {
		return e.transferOut(e.bank.PeekTop)
	},
	// index: move the bottom of stack index onto the current stack.
	"tfe": func(e *execution) error {
		return e.transferIn(e.bank.PopBottom)
	},
	// index: copy the bottom of stack index onto the current stack.
	"tff": func(e *execution) error {
		return e.transferIn(e.bank.PeekBottom)
	},
	// index: move the bottom of the current stack onto stack index.
	"tfg": func(e *execution) error {
		return e.transferOut(e.bank.PopBottom)
	},
	// index: copy the bottom of the current stack onto stack index.
	"tfh": func(e *execution) error {
		return e.transferOut(e.bank.PeekBottom)
	},
}

func (e *execution) withIndex(fn func(int) error) error {
	index, err := e.pop()
	if err != nil {
		return err
	}
	if err := fn(int(index)); err != nil {
		return e.stackFail(err, StatusEmptyStack)
	}
	return nil
}

// transferIn pops an index, reads from that stack with get and pushes the
// value onto the current stack.
func (e *execution) transferIn(get func(int) (Value, error)) error {
	index, err := e.pop()
	if err != nil {
		return err
	}
	v, err := get(int(index))
	if err != nil {
		return e.stackFail(err, StatusEmptyStack)
	}
	return e.push(v)
}

// transferOut pops an index, reads from the current stack with get and
// pushes the value onto that stack.
func (e *execution) transferOut(get func(int) (Value, error)) error {
	index, err := e.pop()
	if err != nil {
		return err
	}
	v, err := get(e.bank.Current())
	if err != nil {
		return e.stackFail(err, StatusEmptyStack)
	}
	if err := e.bank.Push(int(index), v); err != nil {
		return e.stackFail(err, StatusEmptyStack)
	}
	return nil
}
