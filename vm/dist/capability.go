package dist

import (
	"sort"

	"github.com/chazu/exdot/vm"
)

// Capability names reported for a program.
const (
	CapInput  = "input"  // . , "
	CapOutput = "output" // : ;
	CapJump   = "jump"   // a-z
	CapStacks = "stacks" // #s and #g escapes
	CapDebug  = "debug"  // `
)

var instructionCaps = map[byte]string{
	'.': CapInput, ',': CapInput, '"': CapInput,
	':': CapOutput, ';': CapOutput,
	'`': CapDebug,
}

// Capabilities lists, sorted, the capabilities the program text uses.
// Comments and escape payloads are not inspected. The error is the one
// vm.Segments reports for a malformed escape.
func Capabilities(src []byte) ([]string, error) {
	segs, err := vm.Segments(src)
	seen := make(map[string]bool)
	for _, seg := range segs {
		switch seg.Kind {
		case vm.SegmentInstruction:
			op := src[seg.Start]
			if c, ok := instructionCaps[op]; ok {
				seen[c] = true
			} else if op >= 'a' && op <= 'z' {
				seen[CapJump] = true
			}
		case vm.SegmentEscape:
			if k := src[seg.Start+1]; k == 's' || k == 'g' {
				seen[CapStacks] = true
			}
		}
	}

	caps := make([]string, 0, len(seen))
	for c := range seen {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	if len(caps) == 0 {
		caps = nil
	}
	return caps, err
}

// CapabilityPolicy controls which capabilities a program may use. A nil
// AllowedCapabilities means "allow all".
type CapabilityPolicy struct {
	AllowedCapabilities map[string]bool // nil = allow all
	DeniedCapabilities  map[string]bool
}

// NewPermissivePolicy creates a policy that allows all capabilities.
func NewPermissivePolicy() *CapabilityPolicy {
	return &CapabilityPolicy{}
}

// Deny adds a capability to the deny list.
func (p *CapabilityPolicy) Deny(capability string) {
	if p.DeniedCapabilities == nil {
		p.DeniedCapabilities = make(map[string]bool)
	}
	p.DeniedCapabilities[capability] = true
}

// Check returns an error naming the first capability of c the policy does
// not allow.
func (p *CapabilityPolicy) Check(c *Chunk) error {
	for _, capability := range c.Capabilities {
		if p.DeniedCapabilities[capability] {
			return &DeniedError{Capability: capability}
		}
		if p.AllowedCapabilities != nil && !p.AllowedCapabilities[capability] {
			return &DeniedError{Capability: capability}
		}
	}
	return nil
}

// DeniedError is returned by Check.
type DeniedError struct {
	Capability string
}

func (e *DeniedError) Error() string {
	return "program requires denied capability " + e.Capability
}
