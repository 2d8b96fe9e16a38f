package ws

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed push_schema.json
var pushSchemaJSON []byte

// newPushValidator compiles the embedded push envelope schema. Every push
// frame off the wire is validated against it before payload decoding, so a
// malformed server push is rejected at the boundary instead of surfacing as
// a half-decoded event.
func newPushValidator() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(pushSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse push schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("push.schema.json", doc); err != nil {
		return nil, fmt.Errorf("add push schema: %w", err)
	}
	sch, err := c.Compile("push.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile push schema: %w", err)
	}
	return sch, nil
}

// validatePush checks one raw frame against the push envelope schema.
func validatePush(sch *jsonschema.Schema, raw []byte) error {
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse push frame: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("push frame rejected: %w", err)
	}
	return nil
}
