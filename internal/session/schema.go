package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Session record schemas. Only the envelope fields every record has ever
// carried are required; additional properties are allowed so records written
// by newer schema versions still validate (forward compatibility), and
// variant payloads stay optional so minimal older records still load
// (backward compatibility).
const (
	envelopeProperties = `
		"session_id":    { "type": "string", "minLength": 1 },
		"started_at":    { "type": "string" },
		"current_index": { "type": "integer", "minimum": 0 },
		"total_items":   { "type": "integer", "minimum": 1 },
		"file_snapshot": { "type": "object" },
		"completed_at":  { "type": ["string", "null"] }`

	envelopeRequired = `["session_id", "started_at", "current_index", "total_items"]`

	auditSchemaJSON = `{
		"type": "object",
		"properties": {` + envelopeProperties + `,
			"partial_ratings": { "type": "object" }
		},
		"required": ` + envelopeRequired + `
	}`

	improveSchemaJSON = `{
		"type": "object",
		"properties": {` + envelopeProperties + `,
			"transaction_id":       { "type": "string" },
			"partial_improvements": { "type": "object" },
			"previous_session_id":  { "type": "string" }
		},
		"required": ` + envelopeRequired + `
	}`
)

var (
	schemaOnce    sync.Once
	schemaErr     error
	auditSchema   *gojsonschema.Schema
	improveSchema *gojsonschema.Schema
)

func compileSchemas() {
	auditSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(auditSchemaJSON))
	if schemaErr != nil {
		return
	}

	improveSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(improveSchemaJSON))
}

// validateSchema checks raw record bytes against the schema for the given
// session type. A failed check wraps ErrValidation with the offending fields.
func validateSchema(data []byte, sessionType Type) error {
	schemaOnce.Do(compileSchemas)

	if schemaErr != nil {
		return fmt.Errorf("compile session schema: %w", schemaErr)
	}

	schema := auditSchema
	if sessionType == TypeImprove {
		schema = improveSchema
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// The loader rejects non-JSON input before schema rules apply.
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
}
