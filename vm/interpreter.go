package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// run walks the program from the cursor until the end of the text or the
// first failure. Every handler leaves the cursor on the last byte it
// consumed; the loop then moves one past it.
func (e *execution) run() error {
	limit := e.vm.cfg.stepLimit
	for e.ip < len(e.src) {
		if limit > 0 && e.steps >= limit {
			return e.fail(StatusStepLimit, fmt.Errorf("limit of %d steps reached", limit))
		}
		e.steps++

		op := e.src[e.ip]
		if e.vm.cfg.trace {
			log.Debugf("step %d: %q at %d, stack %d, counters %d/%d",
				e.steps, op, e.ip, e.bank.Current(), e.counters.BracketDepth, e.counters.PendingThen)
		}

		done, err := e.step(op)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		e.ip++
	}
	return nil
}

// step executes the instruction op found at the cursor. done reports that
// the program ended normally.
func (e *execution) step(op byte) (done bool, err error) {
	switch {
	case op >= '0' && op <= '9':
		return false, e.push(Value(op - '0'))
	case op >= 'a' && op <= 'z':
		return false, e.jump(op)
	case op >= 'A' && op <= 'Z':
		// Labels were recorded by the pre-scan.
		return false, nil
	}

	switch op {
	case '+', '-', '*', '/', '%', '=', '>', '<', '&', '{', '}':
		return false, e.binary(op)

	case ':':
		v, err := e.pop()
		if err != nil {
			return false, err
		}
		return false, e.output(e.vm.console.WriteInt(v))

	case ';':
		v, err := e.pop()
		if err != nil {
			return false, err
		}
		return false, e.output(e.vm.console.WriteChar(v))

	case '.':
		v, err := e.vm.console.ReadInt()
		if err != nil {
			return false, e.input(err)
		}
		return false, e.push(v)

	case ',':
		v, err := e.vm.console.ReadChar()
		if err != nil {
			return false, e.input(err)
		}
		return false, e.push(v)

	case '"':
		line, err := e.vm.console.ReadLine()
		if err != nil {
			return false, e.input(err)
		}
		for _, b := range line {
			if err := e.push(Value(b)); err != nil {
				return false, err
			}
		}
		return false, e.push(0)

	case '_':
		v, err := e.pop()
		if err != nil {
			return false, err
		}
		if err := e.push(v); err != nil {
			return false, err
		}
		return false, e.push(v)

	case '@':
		b, a, err := e.pop2()
		if err != nil {
			return false, err
		}
		for _, v := range [...]Value{a, b, a, b} {
			if err := e.push(v); err != nil {
				return false, err
			}
		}
		return false, nil

	case '~':
		if err := e.bank.Rotate(e.bank.Current()); err != nil {
			return false, e.stackFail(err, StatusEmptyStack)
		}
		return false, nil

	case '`':
		cur := e.bank.Current()
		if err := dumpStack(e.vm.cfg.diag, cur, e.bank.Stack(cur)); err != nil {
			log.Warningf("stack dump: %s", err)
		}
		return false, nil

	case commentMark:
		end, ok := skipComment(e.src, e.ip)
		if !ok {
			e.ip = end
			return true, nil
		}
		e.ip = end
		return false, nil

	case '[':
		v, err := e.pop()
		if err != nil {
			return false, err
		}
		if v != 0 {
			e.counters.BracketDepth++
			return false, nil
		}
		return false, e.skip('[', ']', StatusUnbalancedBracket)

	case ']':
		if e.counters.BracketDepth > 0 {
			e.counters.BracketDepth--
		}
		return false, nil

	case '?':
		v, err := e.pop()
		if err != nil {
			return false, err
		}
		if v != 0 {
			e.counters.PendingThen++
			return false, nil
		}
		return false, e.skip('?', '|', StatusUnbalancedConditional)

	case '|':
		if e.counters.PendingThen == 0 {
			return false, nil
		}
		e.counters.PendingThen--
		return false, e.skip('|', '\'', StatusUnbalancedConditional)

	case '\'':
		return false, nil

	case escapeMark:
		return false, e.escape()
	}
	return false, nil
}

// skip moves the cursor onto the close token matching the open token under
// it. unbalanced is the status reported when the text ends first.
func (e *execution) skip(open, close byte, unbalanced Status) error {
	end, err := seek(e.src, e.ip+1, open, close)
	if err != nil {
		if errors.Is(err, ErrMalformedEscape) {
			return e.fail(StatusMalformedEscape, err)
		}
		return e.fail(unbalanced, fmt.Errorf("no %q matching %q: %w", close, open, err))
	}
	e.ip = end
	return nil
}

// jump moves the cursor to the label named by the lowercase letter and
// restores the nesting counters captured for it.
func (e *execution) jump(letter byte) error {
	label, ok := e.labels.Lookup(letter)
	if !ok {
		return e.fail(StatusUnresolvedLabel, fmt.Errorf("label %c is not declared", letter-'a'+'A'))
	}
	e.ip = label.Pos
	e.counters = label.Snapshot
	return nil
}

// ---------------------------------------------------------------------------
// Arithmetic and comparison
// ---------------------------------------------------------------------------

func (e *execution) binary(op byte) error {
	right, left, err := e.pop2()
	if err != nil {
		return err
	}

	var v Value
	switch op {
	case '+':
		v = left + right
	case '-':
		v = left - right
	case '*':
		v = left * right
	case '/':
		if right == 0 {
			return e.fail(StatusDivideByZero, nil)
		}
		v = left / right
	case '%':
		if right == 0 {
			return e.fail(StatusDivideByZero, nil)
		}
		v = floorMod(left, right)
	case '=':
		v = truth(left == right)
	case '>':
		v = truth(left > right)
	case '<':
		v = truth(left < right)
	case '&':
		v = truth(left != 0 && right != 0)
	case '{':
		v = truth(left <= right)
	case '}':
		v = truth(left >= right)
	}
	return e.push(v)
}

// floorMod returns a mod b with the sign of b.
func floorMod(a, b Value) Value {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

func truth(b bool) Value {
	if b {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Current stack helpers
// ---------------------------------------------------------------------------

func (e *execution) push(v Value) error {
	if err := e.bank.Push(e.bank.Current(), v); err != nil {
		return e.stackFail(err, StatusEmptyStack)
	}
	return nil
}

func (e *execution) pop() (Value, error) {
	v, err := e.bank.Pop(e.bank.Current())
	if err != nil {
		return 0, e.stackFail(err, StatusEmptyStack)
	}
	return v, nil
}

// pop2 pops the two operands of a binary instruction, first-popped first.
func (e *execution) pop2() (first, second Value, err error) {
	cur := e.bank.Current()
	if first, err = e.bank.Pop(cur); err != nil {
		return 0, 0, e.stackFail(err, StatusInsufficientStack)
	}
	if second, err = e.bank.Pop(cur); err != nil {
		return 0, 0, e.stackFail(err, StatusInsufficientStack)
	}
	return first, second, nil
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func (e *execution) fail(status Status, err error) *Error {
	ve := &Error{Status: status, Pos: e.ip, Err: err}
	if e.ip < len(e.src) {
		ve.Op = e.src[e.ip]
	}
	return ve
}

func (e *execution) stackFail(err error, empty Status) *Error {
	return e.fail(stackStatus(err, empty), err)
}

func (e *execution) output(err error) error {
	if err != nil {
		return e.fail(StatusIOError, err)
	}
	return nil
}

func (e *execution) input(err error) error {
	if errors.Is(err, ErrNoInteger) {
		return e.fail(StatusBadInput, err)
	}
	return e.fail(StatusIOError, err)
}
