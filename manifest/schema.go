package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// schemaSource constrains a decoded Config.
const schemaSource = `
#Capability: "input" | "output" | "jump" | "stacks" | "debug"

#Config: {
	engine: {
		"stack-capacity": int & >0
		"max-capacity":   int & >0
		"step-limit":     int & >=0
		"strict-escapes": bool
		trace:            bool
		deny?: [...#Capability]
	}
	log: {
		verbosity: int & >=-4
		file:      string
	}
	journal: {
		path: string
	}
}
`

// Validate checks c against the configuration schema.
func Validate(c *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return err
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", errors.Details(err, nil))
	}
	return nil
}
