// Package schemas provides JSON Schema validation for member records and output files.
package schemas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	embedded "github.com/jonathan/handle-crawler/schemas"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

var (
	memberSchemaOnce sync.Once
	memberSchema     *gojsonschema.Schema
	memberSchemaErr  error
)

// memberRecordSchema compiles the embedded record schema once.
func memberRecordSchema() (*gojsonschema.Schema, error) {
	memberSchemaOnce.Do(func() {
		memberSchema, memberSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(embedded.MemberRecord))
		if memberSchemaErr != nil {
			memberSchemaErr = &SchemaLoadError{
				Path:    "member_record.schema.json",
				Message: "embedded schema does not compile",
				Cause:   memberSchemaErr,
			}
		}
	})
	return memberSchema, memberSchemaErr
}

// ValidateMemberRecord validates one record (any value marshalling to a
// MemberRecord document) against the embedded schema.
func ValidateMemberRecord(rec any) error {
	schema, err := memberRecordSchema()
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(rec))
	if err != nil {
		return fmt.Errorf("failed to load member record: %w", err)
	}
	return toValidationError(result, "")
}

// ValidateOutputFile validates a crawler output file: a JSON array whose
// elements each satisfy the member record schema. Field paths in the returned
// *ValidationError are prefixed with the element index, e.g. "[3].nickname".
func ValidateOutputFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read output file: %w", err)
	}
	return ValidateOutput(data)
}

// ValidateOutput validates crawler output held in memory, with the same rules
// as ValidateOutputFile.
func ValidateOutput(data []byte) error {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return &ValidationError{Errors: []FieldError{{
			Field:   "(root)",
			Message: fmt.Sprintf("output must be a JSON array of records: %v", err),
		}}}
	}

	schema, err := memberRecordSchema()
	if err != nil {
		return err
	}

	combined := &ValidationError{}
	seen := make(map[string]int, len(records))
	for i, raw := range records {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			combined.Errors = append(combined.Errors, FieldError{
				Field:   fmt.Sprintf("[%d]", i),
				Message: err.Error(),
			})
			continue
		}
		if !result.Valid() {
			combined.Errors = append(combined.Errors, fieldErrors(result, fmt.Sprintf("[%d]", i))...)
			continue
		}

		var rec struct {
			Nickname string `json:"nickname"`
		}
		if json.Unmarshal(raw, &rec) == nil {
			if first, dup := seen[rec.Nickname]; dup {
				combined.Errors = append(combined.Errors, FieldError{
					Field:   fmt.Sprintf("[%d].nickname", i),
					Message: fmt.Sprintf("duplicate nickname %q (first at [%d])", rec.Nickname, first),
				})
			} else {
				seen[rec.Nickname] = i
			}
		}
	}

	if len(combined.Errors) > 0 {
		return combined
	}
	return nil
}

// ValidateJSON validates a JSON file against a JSON Schema file
func ValidateJSON(schemaPath, jsonPath string) error {
	// Resolve absolute paths to handle relative paths correctly
	schemaAbsPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to resolve schema path: %w", err)
	}

	jsonAbsPath, err := filepath.Abs(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to resolve JSON path: %w", err)
	}

	// Check if files exist
	if _, err := os.Stat(schemaAbsPath); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", schemaAbsPath)
	}

	if _, err := os.Stat(jsonAbsPath); os.IsNotExist(err) {
		return fmt.Errorf("JSON file not found: %s", jsonAbsPath)
	}

	schemaLoader := gojsonschema.NewReferenceLoader("file://" + schemaAbsPath)
	documentLoader := gojsonschema.NewReferenceLoader("file://" + jsonAbsPath)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    schemaAbsPath,
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	return toValidationError(result, "")
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	return toValidationError(result, "")
}

// toValidationError converts a failed result into a *ValidationError, or nil.
func toValidationError(result *gojsonschema.Result, prefix string) error {
	if result.Valid() {
		return nil
	}
	return &ValidationError{Errors: fieldErrors(result, prefix)}
}

func fieldErrors(result *gojsonschema.Result, prefix string) []FieldError {
	errs := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		switch {
		case prefix != "" && field == "(root)":
			field = prefix
		case prefix != "":
			field = prefix + "." + field
		case field == "":
			field = "(root)"
		}
		errs = append(errs, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return errs
}
