package classify

import (
	"embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"clipspace/internal/catalog"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type subtypeSchema struct {
	subtype catalog.JSONSubtype
	schema  *jsonschema.Schema
}

// subtypeSchemas is ordered; the first schema a payload validates against
// wins.
var subtypeSchemas = mustLoadSchemas()

func mustLoadSchemas() []subtypeSchema {
	compiler := jsonschema.NewCompiler()
	names := []catalog.JSONSubtype{
		catalog.SubtypeStyleGuide,
		catalog.SubtypeJourneyMap,
		catalog.SubtypeChatbotConvo,
	}
	for _, name := range names {
		file := fmt.Sprintf("schemas/%s.json", name)
		raw, err := schemaFS.ReadFile(file)
		if err != nil {
			panic(fmt.Sprintf("classify: missing schema %s: %v", file, err))
		}
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
		if err != nil {
			panic(fmt.Sprintf("classify: invalid schema %s: %v", file, err))
		}
		if err := compiler.AddResource(file, doc); err != nil {
			panic(fmt.Sprintf("classify: add schema %s: %v", file, err))
		}
	}
	schemas := make([]subtypeSchema, 0, len(names))
	for _, name := range names {
		schema, err := compiler.Compile(fmt.Sprintf("schemas/%s.json", name))
		if err != nil {
			panic(fmt.Sprintf("classify: compile schema %s: %v", name, err))
		}
		schemas = append(schemas, subtypeSchema{subtype: name, schema: schema})
	}
	return schemas
}

// DetectJSONSubtype reports which recognized JSON shape, if any, the text
// payload matches. Non-JSON payloads return ("", false) cheaply.
func DetectJSONSubtype(text string) (catalog.JSONSubtype, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(trimmed))
	if err != nil {
		return "", false
	}
	for _, candidate := range subtypeSchemas {
		if err := candidate.schema.Validate(instance); err == nil {
			return candidate.subtype, true
		}
	}
	return "", false
}
