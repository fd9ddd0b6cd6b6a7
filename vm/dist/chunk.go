// Package dist implements the content-addressed exchange formats for EXDot.
// A program travels as a Chunk keyed by the hash of its text; the outcome of
// running it travels as a Report carrying the final Snapshot. All values are
// encoded as canonical CBOR so equal values produce equal bytes.
package dist

import (
	"encoding/hex"
	"time"

	"github.com/chazu/exdot/vm"
	"golang.org/x/crypto/blake2b"
)

// Hash is a program content hash.
type Hash [32]byte

// String returns the lowercase hex form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex digits, enough to identify a program in
// listings.
func (h Hash) Short() string {
	return h.String()[:12]
}

// ParseHash decodes the hex form produced by String.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, hex.ErrLength
	}
	copy(h[:], b)
	return h, nil
}

// HashProgram returns the BLAKE2b-256 digest of the program text. The text
// is hashed as-is: two programs differing only in comments hash differently.
func HashProgram(src []byte) Hash {
	return blake2b.Sum256(src)
}

// Chunk is a program together with its content hash.
type Chunk struct {
	Hash         Hash     `cbor:"1,keyasint"`
	Name         string   `cbor:"2,keyasint,omitempty"` // file name or "-e"
	Source       []byte   `cbor:"3,keyasint"`
	Capabilities []string `cbor:"4,keyasint,omitempty"` // see Capabilities
}

// NewChunk hashes src and records the capabilities it uses. Source text that
// cannot be segmented gets no capabilities; running it reports the error.
func NewChunk(name string, src []byte) *Chunk {
	caps, _ := Capabilities(src)
	return &Chunk{
		Hash:         HashProgram(src),
		Name:         name,
		Source:       src,
		Capabilities: caps,
	}
}

// Verify reports whether the chunk's hash matches its source.
func (c *Chunk) Verify() bool {
	return HashProgram(c.Source) == c.Hash
}

// Report is the outcome of one run of a chunk.
type Report struct {
	RunID    string        `cbor:"1,keyasint"`
	Hash     Hash          `cbor:"2,keyasint"`
	Status   vm.Status     `cbor:"3,keyasint"`
	Message  string        `cbor:"4,keyasint,omitempty"` // error text for failed runs
	Steps    uint64        `cbor:"5,keyasint"`
	Started  time.Time     `cbor:"6,keyasint"`
	Duration time.Duration `cbor:"7,keyasint"`
	Snapshot *vm.Snapshot  `cbor:"8,keyasint,omitempty"`
}

// NewReport builds the report for a finished run. err is the value returned
// by vm.Run and snap the state from vm.Last.
func NewReport(runID string, h Hash, started time.Time, elapsed time.Duration, err error, snap *vm.Snapshot) *Report {
	r := &Report{
		RunID:    runID,
		Hash:     h,
		Status:   vm.StatusOf(err),
		Started:  started,
		Duration: elapsed,
		Snapshot: snap,
	}
	if err != nil {
		r.Message = err.Error()
	}
	if snap != nil {
		r.Steps = snap.Steps
	}
	return r
}
