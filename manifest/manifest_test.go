package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/exdot/vm"
	"github.com/chazu/exdot/vm/dist"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[engine]
stack-capacity = 64
max-capacity = 128
step-limit = 1000
strict-escapes = true
trace = true
deny = ["input"]

[log]
verbosity = 2
file = "exdot.log"

[journal]
path = "runs.db"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Engine.StackCapacity != 64 {
		t.Errorf("stack-capacity = %d, want 64", c.Engine.StackCapacity)
	}
	if c.Engine.MaxCapacity != 128 {
		t.Errorf("max-capacity = %d, want 128", c.Engine.MaxCapacity)
	}
	if c.Engine.StepLimit != 1000 {
		t.Errorf("step-limit = %d, want 1000", c.Engine.StepLimit)
	}
	if !c.Engine.StrictEscapes || !c.Engine.Trace {
		t.Error("strict-escapes and trace should be true")
	}
	if len(c.Engine.Deny) != 1 || c.Engine.Deny[0] != "input" {
		t.Errorf("deny = %v, want [input]", c.Engine.Deny)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}

	absDir, _ := filepath.Abs(dir)
	if c.Dir != absDir {
		t.Errorf("Dir = %q, want %q", c.Dir, absDir)
	}
	if c.Journal.Path != filepath.Join(absDir, "runs.db") {
		t.Errorf("journal path = %q, want it resolved against %q", c.Journal.Path, absDir)
	}
	if got := c.LogFile(); got == nil || *got != filepath.Join(absDir, "exdot.log") {
		t.Errorf("LogFile = %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[engine]
step-limit = 5
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Engine.StackCapacity != vm.DefaultStackCapacity {
		t.Errorf("stack-capacity = %d, want default %d", c.Engine.StackCapacity, vm.DefaultStackCapacity)
	}
	if c.Engine.MaxCapacity != vm.DefaultMaxCapacity {
		t.Errorf("max-capacity = %d, want default %d", c.Engine.MaxCapacity, vm.DefaultMaxCapacity)
	}
	if c.Journal.Path != "" {
		t.Errorf("journal path = %q, want empty", c.Journal.Path)
	}
	if c.LogFile() != nil {
		t.Error("LogFile should be nil without a log file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[engine\n", "parse error"},
		{"unknown key", "[engine]\nstack-size = 4\n", "unknown key"},
		{"zero capacity", "[engine]\nstack-capacity = 0\n", "invalid"},
		{"negative max", "[engine]\nmax-capacity = -1\n", "invalid"},
		{"unbounded max", "[engine]\nmax-capacity = 0\n", "invalid"},
		{"unknown capability", "[engine]\ndeny = [\"network\"]\n", "invalid"},
		{"verbosity too low", "[log]\nverbosity = -9\n", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing exdot.toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[engine]\nstep-limit = 7\n")

	sub := filepath.Join(root, "programs", "loops")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if c.Engine.StepLimit != 7 {
		t.Errorf("step-limit = %d, want 7", c.Engine.StepLimit)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if c != nil {
		t.Error("expected nil config when no exdot.toml exists")
	}
}

func TestValidateDefault(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestOptionsApplyToVM(t *testing.T) {
	c := Default()
	c.Engine.StackCapacity = 2
	c.Engine.StepLimit = 100

	var out bytes.Buffer
	machine := vm.NewVM(vm.NewStreamConsole(strings.NewReader(""), &out), c.Options()...)
	if status := machine.Execute([]byte("123")); status != vm.StatusFullStack {
		t.Errorf("capacity option: status = %v, want full stack", status)
	}
	if status := machine.Execute([]byte("A1_-a")); status != vm.StatusStepLimit {
		t.Errorf("step-limit option: status = %v, want step limit", status)
	}

	c.Engine.StrictEscapes = true
	machine = vm.NewVM(vm.NewStreamConsole(strings.NewReader(""), &out), c.Options()...)
	if status := machine.Execute([]byte("#sbogus\\")); status != vm.StatusUnknownCommand {
		t.Errorf("strict option: status = %v, want unknown command", status)
	}
}

func TestPolicy(t *testing.T) {
	c := Default()
	c.Engine.Deny = []string{dist.CapInput}
	p := c.Policy()
	if err := p.Check(dist.NewChunk("x", []byte(".:"))); err == nil {
		t.Error("policy should deny input")
	}
	if err := p.Check(dist.NewChunk("x", []byte("1:"))); err != nil {
		t.Errorf("policy should allow output: %v", err)
	}
}
