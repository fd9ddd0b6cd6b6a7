// Package manifest handles exdot.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chazu/exdot/vm"
	"github.com/chazu/exdot/vm/dist"
)

// FileName is the name of the configuration file.
const FileName = "exdot.toml"

// Config represents an exdot.toml configuration. The json tags name the
// fields as the validation schema sees them.
type Config struct {
	Engine  Engine  `toml:"engine" json:"engine"`
	Log     Log     `toml:"log" json:"log"`
	Journal Journal `toml:"journal" json:"journal"`

	// Dir is the directory containing the exdot.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Engine configures the interpreter.
type Engine struct {
	StackCapacity int      `toml:"stack-capacity" json:"stack-capacity"`
	MaxCapacity   int      `toml:"max-capacity" json:"max-capacity"`
	StepLimit     uint64   `toml:"step-limit" json:"step-limit"`
	StrictEscapes bool     `toml:"strict-escapes" json:"strict-escapes"`
	Trace         bool     `toml:"trace" json:"trace"`
	Deny          []string `toml:"deny" json:"deny,omitempty"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file"`
}

// Journal configures the run journal.
type Journal struct {
	Path string `toml:"path" json:"path"`
}

// Default returns the configuration used when no exdot.toml is present.
func Default() *Config {
	return &Config{
		Engine: Engine{
			StackCapacity: vm.DefaultStackCapacity,
			MaxCapacity:   vm.DefaultMaxCapacity,
		},
	}
}

// Load parses an exdot.toml file from the given directory. Keys missing
// from the file keep their default values.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s in %s", undecoded[0], path)
	}
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Relative paths are relative to the file.
	if c.Journal.Path != "" && !filepath.IsAbs(c.Journal.Path) {
		c.Journal.Path = filepath.Join(c.Dir, c.Journal.Path)
	}
	if c.Log.File != "" && !filepath.IsAbs(c.Log.File) {
		c.Log.File = filepath.Join(c.Dir, c.Log.File)
	}

	return c, nil
}

// FindAndLoad walks up from startDir to find an exdot.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options converts the engine section into VM options.
func (c *Config) Options() []vm.Option {
	return []vm.Option{
		vm.WithStackCapacity(c.Engine.StackCapacity),
		vm.WithMaxCapacity(c.Engine.MaxCapacity),
		vm.WithStepLimit(c.Engine.StepLimit),
		vm.WithStrictEscapes(c.Engine.StrictEscapes),
		vm.WithTrace(c.Engine.Trace),
	}
}

// Policy returns the capability policy built from the deny list.
func (c *Config) Policy() *dist.CapabilityPolicy {
	p := dist.NewPermissivePolicy()
	for _, capability := range c.Engine.Deny {
		p.Deny(capability)
	}
	return p
}

// LogFile returns the log file path for commonlog.Configure, nil for stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	return &path
}
