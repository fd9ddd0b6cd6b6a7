package vm

import (
	"bytes"
	"errors"
)

const (
	commentMark = '!'
	escapeMark  = '#'
	escapeEnd   = '\\'
)

var (
	// ErrUnterminated means the text ended before the close token.
	ErrUnterminated = errors.New("unterminated construct")
	// ErrMalformedEscape means an escape sequence ran past the end of the
	// text without its terminator.
	ErrMalformedEscape = errors.New("malformed escape sequence")
)

// skipComment returns the position of the line terminator ending the comment
// that starts at pos. ok is false when the text ends first.
func skipComment(src []byte, pos int) (end int, ok bool) {
	i := bytes.IndexByte(src[pos:], '\n')
	if i < 0 {
		return len(src), false
	}
	return pos + i, true
}

// skipEscape returns the position of the last byte of the escape sequence
// starting at pos (the raw character for #c, the backslash otherwise).
func skipEscape(src []byte, pos int) (int, error) {
	if pos+1 >= len(src) {
		return 0, ErrMalformedEscape
	}
	if src[pos+1] == 'c' {
		if pos+2 >= len(src) {
			return 0, ErrMalformedEscape
		}
		return pos + 2, nil
	}
	i := bytes.IndexByte(src[pos+1:], escapeEnd)
	if i < 0 {
		return 0, ErrMalformedEscape
	}
	return pos + 1 + i, nil
}

// seek advances from pos, which must be just past an already consumed open
// token, to the close token at which nesting returns to zero and returns its
// position. Comments and escape sequences are passed over before the
// open/close test so their contents never change the depth.
func seek(src []byte, pos int, open, close byte) (int, error) {
	depth := 1
	for i := pos; i < len(src); i++ {
		switch src[i] {
		case commentMark:
			end, ok := skipComment(src, i)
			if !ok {
				return 0, ErrUnterminated
			}
			i = end
			continue
		case escapeMark:
			end, err := skipEscape(src, i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		switch src[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, ErrUnterminated
}

// SegmentKind classifies a span of program text.
type SegmentKind int

const (
	SegmentInstruction SegmentKind = iota
	SegmentComment
	SegmentEscape
)

// Segment is a span [Start, End) of program text. Instruction segments are
// always one byte long.
type Segment struct {
	Kind  SegmentKind
	Start int
	End   int
}

// Segments splits src into instructions, comments and escape sequences using
// the same rules as the skip engine. A trailing comment without a newline is
// a valid final segment. On a malformed escape the segments found so far are
// returned along with an *Error carrying the escape's position.
func Segments(src []byte) ([]Segment, error) {
	var segs []Segment
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case commentMark:
			end, _ := skipComment(src, i)
			segs = append(segs, Segment{Kind: SegmentComment, Start: i, End: end})
			i = end - 1
		case escapeMark:
			end, err := skipEscape(src, i)
			if err != nil {
				return segs, &Error{Status: StatusMalformedEscape, Pos: i, Op: escapeMark, Err: err}
			}
			segs = append(segs, Segment{Kind: SegmentEscape, Start: i, End: end + 1})
			i = end
		default:
			segs = append(segs, Segment{Kind: SegmentInstruction, Start: i, End: i + 1})
		}
	}
	return segs, nil
}
