package validator

// =============================================================================
// VALIDATOR PHILOSOPHY: CRASH EARLY, CRASH LOUD
// =============================================================================
//
// The CUE validator is the contract guard at both ends of the mapper.
//
// Inputs (designs handed over by elaboration, template libraries supplied by
// configuration) are checked before a single port is classified: a
// misspelled "rd_ports" or a slot capability of "rwx" must stop the pass
// with a message naming the field, not turn into an allocation that quietly
// wires the wrong pins.
//
// The fact tables fed to OPA and the output report are checked too: a rule
// that reads a misspelled field sees "undefined" and silently never fires.
//
// WHEN VALIDATION FAILS:
// 1. DON'T loosen the schema to make the error go away
// 2. DO find out which producer broke the contract and fix it there
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed design_schema.cue
var designSchemaFS embed.FS

//go:embed template_schema.cue
var templateSchemaFS embed.FS

//go:embed report_schema.cue
var reportSchemaFS embed.FS

//go:embed facts_schema.cue
var factsSchemaFS embed.FS

// Validator validates design files against the #Design definition.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded design schema
func New() (*Validator, error) {
	ctx, schema, err := compileSchema(designSchemaFS, "design_schema.cue")
	if err != nil {
		return nil, err
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate checks that the data conforms to #Design.
// Returns nil if valid, or a detailed error explaining what failed.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the schema
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	if err := unifyJSON(v.ctx, v.schema, "#Design", jsonBytes); err != nil {
		return fmt.Errorf("design schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(jsonBytes []byte) []string {
	err := unifyJSON(v.ctx, v.schema, "#Design", jsonBytes)
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// TemplateValidator validates template library files.
type TemplateValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewTemplateValidator creates a validator for template libraries
func NewTemplateValidator() (*TemplateValidator, error) {
	ctx, schema, err := compileSchema(templateSchemaFS, "template_schema.cue")
	if err != nil {
		return nil, err
	}
	return &TemplateValidator{ctx: ctx, schema: schema}, nil
}

// ValidateJSON checks a template library document against #TemplateLibrary.
func (v *TemplateValidator) ValidateJSON(jsonBytes []byte) error {
	if err := unifyJSON(v.ctx, v.schema, "#TemplateLibrary", jsonBytes); err != nil {
		return fmt.Errorf("template schema validation failed: %w", err)
	}
	return nil
}

// ReportValidator validates mapping reports against the output schema
type ReportValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewReportValidator creates a validator for mapping reports
func NewReportValidator() (*ReportValidator, error) {
	ctx, schema, err := compileSchema(reportSchemaFS, "report_schema.cue")
	if err != nil {
		return nil, err
	}
	return &ReportValidator{ctx: ctx, schema: schema}, nil
}

// Validate checks that the report conforms to #Report
func (v *ReportValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling report to JSON: %w", err)
	}
	if err := unifyJSON(v.ctx, v.schema, "#Report", jsonBytes); err != nil {
		return fmt.Errorf("report schema validation failed: %w", err)
	}
	return nil
}

// FactsValidator validates fact tables before they reach the policy engine
type FactsValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewFactsValidator creates a validator for fact tables
func NewFactsValidator() (*FactsValidator, error) {
	ctx, schema, err := compileSchema(factsSchemaFS, "facts_schema.cue")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{ctx: ctx, schema: schema}, nil
}

// Validate checks that the tables conform to #Tables
func (v *FactsValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling facts to JSON: %w", err)
	}
	if err := unifyJSON(v.ctx, v.schema, "#Tables", jsonBytes); err != nil {
		return fmt.Errorf("facts schema validation failed: %w", err)
	}
	return nil
}

func compileSchema(fs embed.FS, name string) (*cue.Context, cue.Value, error) {
	ctx := cuecontext.New()

	schemaBytes, err := fs.ReadFile(name)
	if err != nil {
		return nil, cue.Value{}, fmt.Errorf("loading embedded schema %s: %w", name, err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, cue.Value{}, fmt.Errorf("compiling schema %s: %w", name, schema.Err())
	}
	return ctx, schema, nil
}

func unifyJSON(ctx *cue.Context, schema cue.Value, path string, jsonBytes []byte) error {
	dataValue := ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	def := schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	// Unify the data with the schema (this is CUE's type checking)
	unified := def.Unify(dataValue)
	return unified.Validate(cue.Concrete(true))
}
