package vm

// LabelCount is the size of the label namespace (A–Z).
const LabelCount = 26

// Counters is the control nesting state restored on every jump.
type Counters struct {
	BracketDepth int `cbor:"1,keyasint"`
	PendingThen  int `cbor:"2,keyasint"`
}

// Label is a declared jump target.
type Label struct {
	Active   bool
	Pos      int
	Snapshot Counters
}

// LabelTable maps the letters A–Z to their declarations.
type LabelTable [LabelCount]Label

// Lookup returns the label for letter, which may be given in either case.
func (t *LabelTable) Lookup(letter byte) (Label, bool) {
	idx, ok := labelIndex(letter)
	if !ok || !t[idx].Active {
		return Label{}, false
	}
	return t[idx], true
}

// Declared returns the letters of every active label in order.
func (t *LabelTable) Declared() []byte {
	var out []byte
	for i, l := range t {
		if l.Active {
			out = append(out, byte('A'+i))
		}
	}
	return out
}

func labelIndex(letter byte) (int, bool) {
	switch {
	case letter >= 'A' && letter <= 'Z':
		return int(letter - 'A'), true
	case letter >= 'a' && letter <= 'z':
		return int(letter - 'a'), true
	}
	return 0, false
}

// ScanLabels walks the whole program once, skipping comments and escape
// sequences, and records every uppercase letter with the nesting counters
// in effect at its position. A later declaration of the same letter
// overwrites the earlier one.
//
// The bracket depth counts open [ blocks. The pending-then count is the
// number of enclosing conditionals whose then branch (between ? and |)
// contains the position, which is what execution will have accumulated when
// it falls through into that branch.
func ScanLabels(src []byte) (*LabelTable, error) {
	segs, err := Segments(src)
	if err != nil {
		return nil, err
	}

	var (
		table    LabelTable
		brackets int
		conds    []bool // true while in the then branch
		pending  int
	)
	for _, seg := range segs {
		if seg.Kind != SegmentInstruction {
			continue
		}
		c := src[seg.Start]
		switch {
		case c == '[':
			brackets++
		case c == ']':
			if brackets > 0 {
				brackets--
			}
		case c == '?':
			conds = append(conds, true)
			pending++
		case c == '|':
			if n := len(conds); n > 0 && conds[n-1] {
				conds[n-1] = false
				pending--
			}
		case c == '\'':
			if n := len(conds); n > 0 {
				if conds[n-1] {
					pending--
				}
				conds = conds[:n-1]
			}
		case c >= 'A' && c <= 'Z':
			table[c-'A'] = Label{
				Active:   true,
				Pos:      seg.Start,
				Snapshot: Counters{BracketDepth: brackets, PendingThen: pending},
			}
		}
	}
	return &table, nil
}
