// Package docschema embeds the structural JSON Schema for a FileDoc batch
// item and compiles it once, the same embed.FS + sync.Once shape as
// internal/projectconfig/schema, grounded on apps/cli/schemas.Compile.
package docschema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
)

//go:embed filedoc.schema.json
var schemaFS embed.FS

const schemaURL = "mem://schemas/filedoc.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func get() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		data, err := schemaFS.ReadFile("filedoc.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("read filedoc schema: %w", err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("decode filedoc schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("register filedoc schema: %w", err)
			return
		}
		s, err := c.Compile(schemaURL)
		if err != nil {
			compileErr = fmt.Errorf("compile filedoc schema: %w", err)
			return
		}
		compiled = s
	})
	return compiled, compileErr
}

// Validate round-trips doc through JSON and checks it against FileDoc's
// structural schema: required keys (filepath, filename, dataset,
// content_hash, documented_at) and field types. insert_documentation_batch
// runs this ahead of marshaling each row, so a caller-assembled FileDoc
// missing a required field is rejected before any SQL executes.
func Validate(doc docmodel.FileDoc) error {
	s, err := get()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshal FileDoc for schema check: %v", codequeryerr.ErrValidation, err)
	}
	var instance any
	if err := json.Unmarshal(b, &instance); err != nil {
		return fmt.Errorf("%w: decode FileDoc for schema check: %v", codequeryerr.ErrValidation, err)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("%w: FileDoc does not match schema: %v", codequeryerr.ErrValidation, err)
	}
	return nil
}
