// Package schemas embeds the JSON Schemas shipped with prompteval.
package schemas

import _ "embed"

// RubricSchemaJSON is the JSON Schema for rubric.yaml files.
//
//go:embed rubric.schema.json
var RubricSchemaJSON string
