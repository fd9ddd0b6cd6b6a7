package server

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/exdot/vm"
)

// Severity of a problem found by analyze.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Problem is a static finding about a program.
type Problem struct {
	Severity Severity
	Start    int
	End      int
	Message  string
}

// analysis is everything the editor features need to know about one
// version of a document.
type analysis struct {
	src      []byte
	segs     []vm.Segment
	labels   *vm.LabelTable
	jumps    map[byte][]int // label letter → offsets of its jumps
	problems []Problem
}

// analyze segments src, resolves labels and collects problems. It never
// fails: a malformed escape becomes a problem and the segments before it are
// still used.
func analyze(src []byte) *analysis {
	a := &analysis{src: src, jumps: make(map[byte][]int)}

	segs, err := vm.Segments(src)
	a.segs = segs
	if err != nil {
		pos := len(src)
		if ve, ok := err.(*vm.Error); ok {
			pos = ve.Pos
		}
		a.problem(SeverityError, pos, len(src), "escape sequence has no terminating backslash")
	}

	// The segments before a malformed escape are still valid input for the
	// label scan.
	a.labels, _ = vm.ScanLabels(src[:a.scanned()])

	var opens []int
	var conds []int
	for _, seg := range a.segs {
		switch seg.Kind {
		case vm.SegmentEscape:
			a.checkEscape(seg)
		case vm.SegmentInstruction:
			c := src[seg.Start]
			switch {
			case c >= 'a' && c <= 'z':
				label := c - 'a' + 'A'
				a.jumps[label] = append(a.jumps[label], seg.Start)
				if _, ok := a.labels.Lookup(c); !ok {
					a.problem(SeverityWarning, seg.Start, seg.End, fmt.Sprintf("jump to undeclared label %c", label))
				}
			case c == '[':
				opens = append(opens, seg.Start)
			case c == ']':
				if len(opens) > 0 {
					opens = opens[:len(opens)-1]
				}
			case c == '?':
				conds = append(conds, seg.Start)
			case c == '\'':
				if len(conds) > 0 {
					conds = conds[:len(conds)-1]
				}
			}
		}
	}
	for _, pos := range opens {
		a.problem(SeverityWarning, pos, pos+1, "[ has no matching ]")
	}
	for _, pos := range conds {
		a.problem(SeverityWarning, pos, pos+1, "? has no closing '")
	}

	sort.SliceStable(a.problems, func(i, j int) bool {
		return a.problems[i].Start < a.problems[j].Start
	})
	return a
}

// scanned returns the length of the prefix of src covered by segments.
func (a *analysis) scanned() int {
	if len(a.segs) == 0 {
		return 0
	}
	return a.segs[len(a.segs)-1].End
}

func (a *analysis) problem(sev Severity, start, end int, msg string) {
	a.problems = append(a.problems, Problem{Severity: sev, Start: start, End: end, Message: msg})
}

func (a *analysis) checkEscape(seg vm.Segment) {
	kind := a.src[seg.Start+1]
	switch kind {
	case 'c':
		return
	case 'n', 's', 'g':
	default:
		a.problem(SeverityError, seg.Start, seg.Start+2, fmt.Sprintf("unknown escape #%c", kind))
		return
	}
	payload := string(a.src[seg.Start+2 : seg.End-1])

	switch kind {
	case 'n':
		if len(payload) > vm.MaxEscapeLen {
			a.problem(SeverityError, seg.Start, seg.End, fmt.Sprintf("escape payload longer than %d bytes", vm.MaxEscapeLen))
		} else if _, err := strconv.ParseInt(payload, 10, 32); err != nil {
			a.problem(SeverityError, seg.Start, seg.End, fmt.Sprintf("%q is not a 32-bit integer", payload))
		}
	case 's', 'g':
		if len(payload) > vm.MaxEscapeLen {
			a.problem(SeverityError, seg.Start, seg.End, fmt.Sprintf("escape payload longer than %d bytes", vm.MaxEscapeLen))
		} else if _, ok := lookupCommand(kind, payload); !ok {
			a.problem(SeverityWarning, seg.Start, seg.End, fmt.Sprintf("unknown command #%c%s\\ is ignored", kind, payload))
		}
	}
}

// segmentAt returns the segment containing offset.
func (a *analysis) segmentAt(offset int) (vm.Segment, bool) {
	i := sort.Search(len(a.segs), func(i int) bool { return a.segs[i].End > offset })
	if i < len(a.segs) && a.segs[i].Start <= offset {
		return a.segs[i], true
	}
	return vm.Segment{}, false
}

// letterAt returns the uppercase label letter of the label or jump
// instruction at offset.
func (a *analysis) letterAt(offset int) (byte, bool) {
	seg, ok := a.segmentAt(offset)
	if !ok || seg.Kind != vm.SegmentInstruction {
		return 0, false
	}
	c := a.src[seg.Start]
	switch {
	case c >= 'A' && c <= 'Z':
		return c, true
	case c >= 'a' && c <= 'z':
		return c - 'a' + 'A', true
	}
	return 0, false
}

// describe returns markdown documentation for the segment at offset.
func (a *analysis) describe(offset int) string {
	seg, ok := a.segmentAt(offset)
	if !ok {
		return ""
	}
	switch seg.Kind {
	case vm.SegmentComment:
		return ""
	case vm.SegmentEscape:
		return a.describeEscape(seg)
	}

	c := a.src[seg.Start]
	switch {
	case c >= '0' && c <= '9':
		return fmt.Sprintf("**%c** push %c", c, c)
	case c >= 'A' && c <= 'Z':
		l, _ := a.labels.Lookup(c)
		return fmt.Sprintf("**%c** label, %d jump(s)\n\nbracket depth %d, pending then %d",
			c, len(a.jumps[c]), l.Snapshot.BracketDepth, l.Snapshot.PendingThen)
	case c >= 'a' && c <= 'z':
		label := c - 'a' + 'A'
		if _, ok := a.labels.Lookup(c); !ok {
			return fmt.Sprintf("**%c** jump to undeclared label %c", c, label)
		}
		return fmt.Sprintf("**%c** jump to label %c", c, label)
	}
	if doc, ok := instructionDocs[c]; ok {
		return fmt.Sprintf("**%c** %s", c, doc)
	}
	return ""
}

func (a *analysis) describeEscape(seg vm.Segment) string {
	text := string(a.src[seg.Start:seg.End])
	kind := a.src[seg.Start+1]
	switch kind {
	case 'c':
		return fmt.Sprintf("`%s` push character code %d", text, a.src[seg.Start+2])
	case 'n':
		return fmt.Sprintf("`%s` push a decimal integer", text)
	case 's', 'g':
		name := string(a.src[seg.Start+2 : seg.End-1])
		if doc, ok := lookupCommand(kind, name); ok {
			return fmt.Sprintf("`%s` %s", text, doc)
		}
		return fmt.Sprintf("`%s` unknown command", text)
	}
	return fmt.Sprintf("`%s` unknown escape", text)
}

var instructionDocs = map[byte]string{
	'+':  "pop b, pop a, push a+b",
	'-':  "pop b, pop a, push a-b",
	'*':  "pop b, pop a, push a*b",
	'/':  "pop b, pop a, push a/b truncated toward zero",
	'%':  "pop b, pop a, push a mod b with the sign of b",
	'=':  "pop b, pop a, push 1 if a = b",
	'>':  "pop b, pop a, push 1 if a > b",
	'<':  "pop b, pop a, push 1 if a < b",
	'&':  "pop b, pop a, push 1 if both are non-zero",
	'{':  "pop b, pop a, push 1 if a <= b",
	'}':  "pop b, pop a, push 1 if a >= b",
	':':  "pop and print as a decimal integer and newline",
	';':  "pop and print as a character",
	'.':  "read a decimal integer and push it",
	',':  "read one character and push its code, 0 at end of input",
	'"':  "read a line and push its characters followed by 0",
	'_':  "duplicate the top",
	'@':  "duplicate the top pair",
	'~':  "move the bottom element to the top",
	'`':  "dump the current stack",
	'[':  "pop; if zero skip past the matching ]",
	']':  "end of a [ block",
	'?':  "pop; if zero continue after the matching |",
	'|':  "end of the then branch; skip the else branch when the then branch ran",
	'\'': "end of a conditional",
}

var stackCommandDocs = map[string]string{
	"ns":  "pop capacity, pop index; create a stack (index < 0 picks a free slot) and push its index",
	"ds":  "pop index; delete that stack",
	"cs":  "pop index; make it the current stack",
	"clr": "pop index; empty that stack",
	"tfa": "pop index; move its top onto the current stack",
	"tfb": "pop index; copy its top onto the current stack",
	"tfc": "pop index, pop value; push value onto that stack",
	"tfd": "pop index; copy the current top onto that stack",
	"tfe": "pop index; move its bottom onto the current stack",
	"tff": "pop index; copy its bottom onto the current stack",
	"tfg": "pop index; move the current bottom onto that stack",
	"tfh": "pop index; copy the current bottom onto that stack",
}

var queryCommandDocs = map[string]string{
	"cs": "push the index of the current stack",
	"ln": "push the number of elements on the current stack",
}

func lookupCommand(kind byte, name string) (string, bool) {
	table := stackCommandDocs
	if kind == 'g' {
		table = queryCommandDocs
	}
	doc, ok := table[name]
	return doc, ok
}

// commandNames returns the sorted #s or #g command names starting with
// prefix.
func commandNames(kind byte, prefix string) []string {
	table := stackCommandDocs
	if kind == 'g' {
		table = queryCommandDocs
	}
	var names []string
	for name := range table {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
