package rubric

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/promptqa/prompteval/schemas"
)

// defaultPrinter formats schema violation messages.
var defaultPrinter = message.NewPrinter(language.English)

// rubricSchema is the compiled JSON Schema for rubric.yaml files.
var rubricSchema = mustCompileSchema(schemas.RubricSchemaJSON, "rubric.schema.json")

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateBytes validates raw rubric YAML against the embedded schema and
// returns one message per violation. An empty slice means the document is
// schema-valid; semantic checks (weight sums, offset targets) still follow
// in RubricVersion.Validate.
func ValidateBytes(data []byte) []string {
	doc, err := yamlToJSONValue(data)
	if err != nil {
		return []string{err.Error()}
	}

	err = rubricSchema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	return flattenViolations(ve, nil)
}

// yamlToJSONValue decodes YAML and round-trips it through JSON so the
// validator sees JSON-typed values rather than YAML decoder types.
func yamlToJSONValue(data []byte) (any, error) {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return nil, fmt.Errorf("YAML parse error: %v", err)
	}

	raw, err := json.Marshal(yamlDoc)
	if err != nil {
		return nil, fmt.Errorf("schema: %v", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema: %v", err)
	}
	return doc, nil
}

// flattenViolations walks the validation error tree and renders one line per
// leaf violation, prefixed with its JSON Pointer location.
func flattenViolations(ve *jsonschema.ValidationError, out []string) []string {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		return append(out, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
	}
	for _, c := range ve.Causes {
		out = flattenViolations(c, out)
	}
	return out
}
