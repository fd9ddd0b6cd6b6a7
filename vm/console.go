package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrNoInteger is returned by Console.ReadInt when the input does not start
// with a decimal integer.
var ErrNoInteger = errors.New("no integer in input")

// Console is the I/O collaborator used by the output and input
// instructions.
type Console interface {
	// WriteInt prints v in decimal followed by a newline.
	WriteInt(v Value) error
	// WriteChar prints v as a single character.
	WriteChar(v Value) error
	// ReadInt reads one decimal integer, skipping leading white space.
	ReadInt() (Value, error)
	// ReadChar reads one character. End of input yields 0.
	ReadChar() (Value, error)
	// ReadLine reads up to, not including, CR, LF or end of input. The
	// terminator is consumed.
	ReadLine() ([]byte, error)
	// Flush pushes buffered output to the underlying writer.
	Flush() error
}

// StreamConsole implements Console over a reader and a writer. Output is
// buffered and flushed before every read and by Flush.
type StreamConsole struct {
	in  *bufio.Reader
	out *bufio.Writer
}

// NewStreamConsole wraps r and w.
func NewStreamConsole(r io.Reader, w io.Writer) *StreamConsole {
	return &StreamConsole{
		in:  bufio.NewReader(r),
		out: bufio.NewWriter(w),
	}
}

func (c *StreamConsole) WriteInt(v Value) error {
	_, err := fmt.Fprintf(c.out, "%d\n", v)
	return err
}

// WriteChar writes the low byte of v, as putchar does.
func (c *StreamConsole) WriteChar(v Value) error {
	return c.out.WriteByte(byte(v))
}

func (c *StreamConsole) Flush() error {
	return c.out.Flush()
}

func (c *StreamConsole) ReadInt() (Value, error) {
	if err := c.out.Flush(); err != nil {
		return 0, err
	}

	var b byte
	var err error
	for {
		b, err = c.in.ReadByte()
		if err != nil {
			return 0, readErr(err)
		}
		if !isSpace(b) {
			break
		}
	}

	var text []byte
	if b == '-' || b == '+' {
		text = append(text, b)
		if b, err = c.in.ReadByte(); err != nil {
			return 0, readErr(err)
		}
	}
	for b >= '0' && b <= '9' {
		text = append(text, b)
		if b, err = c.in.ReadByte(); err != nil {
			if err == io.EOF {
				break
			}
			return 0, err
		}
	}
	if err == nil {
		c.in.UnreadByte()
	}

	n, perr := strconv.ParseInt(string(text), 10, 32)
	if perr != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoInteger, text)
	}
	return Value(n), nil
}

func (c *StreamConsole) ReadChar() (Value, error) {
	if err := c.out.Flush(); err != nil {
		return 0, err
	}
	b, err := c.in.ReadByte()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return Value(b), nil
}

func (c *StreamConsole) ReadLine() ([]byte, error) {
	if err := c.out.Flush(); err != nil {
		return nil, err
	}
	var line []byte
	for {
		b, err := c.in.ReadByte()
		if err == io.EOF {
			return line, nil
		}
		if err != nil {
			return line, err
		}
		if b == '\r' || b == '\n' {
			return line, nil
		}
		line = append(line, b)
	}
}

// readErr turns end of input into ErrNoInteger.
func readErr(err error) error {
	if err == io.EOF {
		return fmt.Errorf("%w: %v", ErrNoInteger, err)
	}
	return err
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
