// Package schema validates emitted artifacts against embedded CUE schemas.
//
// The schema source is compiled into the binary, so validation needs no
// external files and the binary can never disagree with its own schema
// version. Validation failures are surfaced, never silently corrected.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// KindRecord names the descriptor record schema.
const KindRecord = "record"

//go:embed record.cue
var schemaSource string

var (
	// ErrInvalid indicates data that does not conform to its schema.
	ErrInvalid = errors.New("schema validation failed")

	// errUnknownKind is returned for kinds with no registered definition.
	errUnknownKind = errors.New("unknown schema kind")
)

// definitionsByKind maps a kind to its CUE definition path.
var definitionsByKind = map[string]string{
	KindRecord: "#Record",
}

var (
	compileOnce sync.Once
	compiled    cue.Value
	compileErr  error
)

// compiledSchema compiles the embedded schema once per process.
func compiledSchema() (cue.Value, error) {
	compileOnce.Do(func() {
		compiled = cuecontext.New().CompileString(schemaSource, cue.Filename("record.cue"))
		compileErr = compiled.Err()
	})

	return compiled, compileErr
}

// Validate checks a JSON-encoded payload against the registered schema for
// kind. Violations are wrapped in ErrInvalid with the CUE details attached.
func Validate(kind string, data []byte) error {
	definition, ok := definitionsByKind[kind]
	if !ok {
		return fmt.Errorf("%s: %w", kind, errUnknownKind)
	}

	root, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}

	target := root.LookupPath(cue.ParsePath(definition))
	if target.Err() != nil {
		return fmt.Errorf("lookup %s: %w", definition, target.Err())
	}

	// JSON is a subset of CUE, so the payload compiles directly.
	value := root.Context().CompileBytes(data, cue.Filename(kind+".json"))
	if value.Err() != nil {
		return fmt.Errorf("decode %s payload: %w", kind, value.Err())
	}

	unified := target.Unify(value)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return fmt.Errorf("%s: %s: %w", kind, cueerrors.Details(err, nil), ErrInvalid)
	}

	return nil
}
