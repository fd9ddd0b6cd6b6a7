// EXDot CLI - runs EXDot programs and serves the language server
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/exdot/journal"
	"github.com/chazu/exdot/manifest"
	"github.com/chazu/exdot/server"
	"github.com/chazu/exdot/vm"
	"github.com/chazu/exdot/vm/dist"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("exdot.cli")

// Exit codes for failures outside the interpreter.
const (
	exitNoArguments = -555
	exitNoFile      = -666
	exitUsage       = 2
	exitFailure     = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// verbosity is a repeatable boolean flag: each -v raises the log level.
type verbosity int

func (v *verbosity) String() string {
	return strconv.Itoa(int(*v))
}

func (v *verbosity) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on {
		*v++
	}
	return nil
}

func (v *verbosity) IsBoolFlag() bool { return true }

type options struct {
	verbose   verbosity
	configDir string
	inline    string
	inlineSet bool
	steps     uint64
	strict    bool
	trace     bool
	dumpState string
	journal   string
	history   int
	lsp       bool
}

// run is main without the process exit, returning the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("exdot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&opts.verbose, "v", "Verbose logging (repeat for more)")
	fs.StringVar(&opts.configDir, "config", "", "Directory containing exdot.toml (default: search upward from the working directory)")
	fs.StringVar(&opts.inline, "e", "", "Run the given program text instead of a file")
	fs.Uint64Var(&opts.steps, "steps", 0, "Stop after N instructions (0: use config)")
	fs.BoolVar(&opts.strict, "strict", false, "Fail on unknown #s and #g commands")
	fs.BoolVar(&opts.trace, "trace", false, "Log every instruction (needs -v -v)")
	fs.StringVar(&opts.dumpState, "dump-state", "", "Write the final state as CBOR to this file")
	fs.StringVar(&opts.journal, "journal", "", "Record the run in this journal database")
	fs.IntVar(&opts.history, "history", 0, "List the last N journal runs and exit")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: exdot [options] <program.exd>\n\n")
		fmt.Fprintf(stderr, "Runs an EXDot program. The exit code is the program's status.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  exdot hello.exd                  # Run a program\n")
		fmt.Fprintf(stderr, "  exdot -e '53+:'                  # Run inline text\n")
		fmt.Fprintf(stderr, "  exdot -steps 1000 loop.exd       # Bound a runaway loop\n")
		fmt.Fprintf(stderr, "  exdot -journal runs.db -history 10\n")
		fmt.Fprintf(stderr, "  exdot -lsp                       # Language server for editors\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitUsage
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "e" {
			opts.inlineSet = true
		}
	})

	cfg, err := loadConfig(opts.configDir)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitFailure
	}
	applyFlags(cfg, &opts)
	commonlog.Configure(cfg.Log.Verbosity, cfg.LogFile())

	if opts.lsp {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(stderr, "ERROR: language server: %v\n", err)
			return exitFailure
		}
		return 0
	}

	if opts.history > 0 {
		return printHistory(cfg.Journal.Path, opts.history, stdout, stderr)
	}

	chunk, code := loadProgram(fs.Args(), &opts, stdout)
	if chunk == nil {
		return code
	}
	if err := cfg.Policy().Check(chunk); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitFailure
	}

	vmOpts := append(cfg.Options(), vm.WithDiagnostics(stderr))
	machine := vm.NewVM(vm.NewStreamConsole(stdin, stdout), vmOpts...)

	started := time.Now()
	runErr := machine.Run(chunk.Source)
	elapsed := time.Since(started)
	status := vm.StatusOf(runErr)

	if opts.dumpState != "" {
		if err := dumpState(opts.dumpState, machine.Last()); err != nil {
			log.Warningf("dump state: %s", err)
		}
	}
	if cfg.Journal.Path != "" {
		report := dist.NewReport("", chunk.Hash, started, elapsed, runErr, machine.Last())
		if err := record(cfg.Journal.Path, chunk, report); err != nil {
			log.Warningf("journal: %s", err)
		}
	}

	if runErr != nil {
		log.Noticef("%s: %s", chunk.Name, runErr)
		fmt.Fprintf(stderr, "Error Status %d\n", status.Code())
	}
	return status.Code()
}

func loadConfig(dir string) (*manifest.Config, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	cfg, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = manifest.Default()
	}
	return cfg, nil
}

// applyFlags lets command line flags override the configuration file.
func applyFlags(cfg *manifest.Config, opts *options) {
	cfg.Log.Verbosity += int(opts.verbose)
	if opts.steps > 0 {
		cfg.Engine.StepLimit = opts.steps
	}
	if opts.strict {
		cfg.Engine.StrictEscapes = true
	}
	if opts.trace {
		cfg.Engine.Trace = true
	}
	if opts.journal != "" {
		cfg.Journal.Path = opts.journal
	}
}

// loadProgram returns the program named on the command line. On failure it
// reports the problem and returns a nil chunk and the exit code.
func loadProgram(args []string, opts *options, stdout io.Writer) (*dist.Chunk, int) {
	if opts.inlineSet {
		return dist.NewChunk("-e", []byte(opts.inline)), 0
	}
	if len(args) < 1 {
		fmt.Fprintln(stdout, "ERROR: At least 1 command line argument is required.")
		return nil, exitNoArguments
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		log.Debugf("read %s: %s", args[0], err)
		fmt.Fprintf(stdout, "ERROR: No file named %s\n", args[0])
		return nil, exitNoFile
	}
	return dist.NewChunk(args[0], src), 0
}

func dumpState(path string, snap *vm.Snapshot) error {
	if snap == nil {
		return errors.New("no state recorded")
	}
	data, err := dist.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func record(path string, c *dist.Chunk, r *dist.Report) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()
	id, err := j.Record(c, r)
	if err != nil {
		return err
	}
	log.Infof("recorded run %s", id)
	return nil
}

func printHistory(path string, limit int, stdout, stderr io.Writer) int {
	if path == "" {
		fmt.Fprintln(stderr, "ERROR: -history needs a journal (-journal or [journal] path)")
		return exitUsage
	}
	j, err := journal.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitFailure
	}
	defer j.Close()

	entries, err := j.List(limit)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitFailure
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%s  %s  %s  %5d  %8d steps  %8s  %s\n",
			e.Started.Format("2006-01-02 15:04:05"), e.RunID, e.Hash.Short(),
			e.Status.Code(), e.Steps, e.Duration.Round(time.Microsecond), e.Name)
	}
	return 0
}
