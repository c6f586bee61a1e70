package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of a run configuration file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&RunConfig{})
}

// SchemaJSON returns Schema indented for display.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
