package journal

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/exdot/vm"
	"github.com/chazu/exdot/vm/dist"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// execute runs src and returns its chunk and report.
func execute(t *testing.T, name, src string, started time.Time) (*dist.Chunk, *dist.Report) {
	t.Helper()
	var out bytes.Buffer
	machine := vm.NewVM(vm.NewStreamConsole(strings.NewReader(""), &out))
	c := dist.NewChunk(name, []byte(src))
	err := machine.Run(c.Source)
	return c, dist.NewReport("", c.Hash, started, time.Millisecond, err, machine.Last())
}

func TestRecordAndGet(t *testing.T) {
	j := openTemp(t)
	c, r := execute(t, "add.exdot", "53+:", time.Now())

	id, err := j.Record(c, r)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" || id != r.RunID {
		t.Errorf("Record id = %q, report id = %q", id, r.RunID)
	}

	got, err := j.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != vm.StatusOK {
		t.Errorf("status = %v, want ok", got.Status)
	}
	if got.Hash != c.Hash {
		t.Error("hash mismatch")
	}
	if got.Snapshot == nil || got.Snapshot.Steps != 4 {
		t.Errorf("snapshot = %+v, want 4 steps", got.Snapshot)
	}
}

func TestRecordFailedRun(t *testing.T) {
	j := openTemp(t)
	c, r := execute(t, "bad.exdot", "1+", time.Now())

	id, err := j.Record(c, r)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := j.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != vm.StatusInsufficientStack {
		t.Errorf("status = %v, want insufficient stack", got.Status)
	}
	if got.Message == "" {
		t.Error("failed run should keep its error message")
	}
}

func TestProgramStoredOnce(t *testing.T) {
	j := openTemp(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		c, r := execute(t, "loop.exdot", "12+:", now.Add(time.Duration(i)*time.Second))
		if _, err := j.Record(c, r); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	h := dist.HashProgram([]byte("12+:"))
	n, err := j.Runs(h)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if n != 3 {
		t.Errorf("runs = %d, want 3", n)
	}

	var programs int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM programs`).Scan(&programs); err != nil {
		t.Fatal(err)
	}
	if programs != 1 {
		t.Errorf("programs = %d, want 1", programs)
	}

	c, err := j.Chunk(h)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if string(c.Source) != "12+:" || c.Name != "loop.exdot" {
		t.Errorf("chunk = %q %q", c.Name, c.Source)
	}
}

func TestListNewestFirst(t *testing.T) {
	j := openTemp(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	programs := []string{"1:", "2:", "3:"}
	for i, src := range programs {
		c, r := execute(t, src, src, base.Add(time.Duration(i)*time.Minute))
		if _, err := j.Record(c, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := j.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List(2) returned %d entries", len(entries))
	}
	if entries[0].Name != "3:" || entries[1].Name != "2:" {
		t.Errorf("order = %q, %q; want 3:, 2:", entries[0].Name, entries[1].Name)
	}
	if !entries[0].Started.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("started = %v", entries[0].Started)
	}
	if entries[0].Hash != dist.HashProgram([]byte("3:")) {
		t.Error("hash mismatch")
	}
	if entries[0].Steps != 2 || entries[0].Duration != time.Millisecond {
		t.Errorf("entry = %+v", entries[0])
	}

	all, err := j.List(0)
	if err != nil {
		t.Fatalf("List(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) returned %d entries, want 3", len(all))
	}
}

func TestNotFound(t *testing.T) {
	j := openTemp(t)
	if _, err := j.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
	if _, err := j.Chunk(dist.HashProgram([]byte("x"))); !errors.Is(err, ErrNotFound) {
		t.Errorf("Chunk = %v, want ErrNotFound", err)
	}
}

func TestRecordRejectsMismatchedReport(t *testing.T) {
	j := openTemp(t)
	c, r := execute(t, "a", "1:", time.Now())
	r.Hash = dist.HashProgram([]byte("2:"))
	if _, err := j.Record(c, r); err == nil {
		t.Error("expected error for report of a different program")
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c, r := execute(t, "a", "1:", time.Now())
	id, err := j.Record(c, r)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	if _, err := j.Get(id); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
