// Package schema embeds the structural JSON Schema for config.json and
// compiles it once, mirroring the teacher's apps/cli/schemas.Compile
// (embed.FS + sync.Once compiler, schema registered under a synthetic
// mem:// URL).
package schema

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed config.schema.json
var schemaFS embed.FS

const schemaURL = "mem://schemas/config.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func get() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		data, err := schemaFS.ReadFile("config.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("read config schema: %w", err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("decode config schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("register config schema: %w", err)
			return
		}
		s, err := c.Compile(schemaURL)
		if err != nil {
			compileErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		compiled = s
	})
	return compiled, compileErr
}

// Validate checks instance (a decoded JSON value, typically map[string]any)
// against config.json's structural schema: required keys and field types.
// Cross-field and filesystem-backed rules (does source_directory exist,
// does each glob compile) are out of schema's reach and live in
// projectconfig.Validate instead.
func Validate(instance any) error {
	s, err := get()
	if err != nil {
		return err
	}
	return s.Validate(instance)
}
