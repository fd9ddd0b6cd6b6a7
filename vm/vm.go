package vm

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("exdot.vm")

// VM runs EXDot programs. A VM holds configuration and the console only;
// every call to Run builds a fresh stack bank and label table and releases
// them when the program ends, so a VM can run many programs one after
// another. A VM is not safe for concurrent use.
type VM struct {
	console Console
	cfg     config
	last    *Snapshot
}

// NewVM creates a VM that performs program I/O through console.
func NewVM(console Console, opts ...Option) *VM {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &VM{console: console, cfg: cfg}
}

// execution is the state of a single run.
type execution struct {
	vm       *VM
	src      []byte
	ip       int
	bank     *Bank
	labels   *LabelTable
	counters Counters
	steps    uint64
}

// Run pre-scans src for labels and executes it to completion. The returned
// error, if any, is an *Error; use StatusOf to obtain the status code. Side
// effects performed before a failure are kept.
func (vm *VM) Run(src []byte) error {
	vm.last = nil

	labels, err := ScanLabels(src)
	if err != nil {
		log.Infof("label pre-scan failed: %s", err)
		return err
	}
	log.Debugf("running %d bytes, labels %q", len(src), labels.Declared())

	e := &execution{
		vm:     vm,
		src:    src,
		bank:   NewBank(vm.cfg.stackCapacity, vm.cfg.maxCapacity),
		labels: labels,
	}
	defer func() {
		vm.last = e.snapshot()
		e.bank.Release()
	}()

	err = e.run()
	if ferr := vm.console.Flush(); ferr != nil && err == nil {
		err = &Error{Status: StatusIOError, Pos: e.ip, Err: ferr}
	}
	if err != nil {
		log.Infof("run failed after %d steps: %s", e.steps, err)
		return err
	}
	log.Debugf("run finished after %d steps", e.steps)
	return nil
}

// Execute runs src and returns only its status.
func (vm *VM) Execute(src []byte) Status {
	return StatusOf(vm.Run(src))
}

// Last returns the state captured at the end of the most recent run, before
// its stacks were released. It is nil if the run failed during label
// pre-scan.
func (vm *VM) Last() *Snapshot {
	return vm.last
}
