package compiler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keytrigger/internal/trigger"
)

//go:embed schema/trigger.schema.json
var triggerSchemaJSON []byte

const triggerSchemaURL = "trigger.schema.json"

// Format is the encoding of a trigger document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported document extension %q", filepath.Ext(path))
	}
}

var triggerSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(triggerSchemaURL, bytes.NewReader(triggerSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add trigger schema: %w", err)
	}
	s, err := c.Compile(triggerSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile trigger schema: %w", err)
	}
	return s, nil
})

// ValidateDocument checks a trigger document against the embedded JSON
// Schema. Every failing leaf is reported as an E120 error.
func ValidateDocument(data []byte, f Format) []ValidationError {
	instance, err := decodeInstance(data, f)
	if err != nil {
		return []ValidationError{{Field: "document", Message: err.Error(), Code: ErrUnsupportedType}}
	}

	schema, err := triggerSchema()
	if err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error(), Code: ErrSchema}}
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []ValidationError{{Field: "document", Message: err.Error(), Code: ErrSchema}}
	}
	var errs []ValidationError
	collectSchemaErrors(ve, &errs)
	return errs
}

// ParseDocument schema-checks a trigger document, decodes it and runs the
// structural rules. The trigger is only meaningful when no errors are
// returned.
func ParseDocument(data []byte, f Format) (trigger.Trigger, []ValidationError) {
	if errs := ValidateDocument(data, f); len(errs) > 0 {
		return trigger.Trigger{}, errs
	}

	var doc trigger.Document
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return trigger.Trigger{}, []ValidationError{{Field: "document", Message: err.Error(), Code: ErrUnsupportedType}}
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return trigger.Trigger{}, []ValidationError{{Field: "document", Message: err.Error(), Code: ErrUnsupportedType}}
		}
	}

	t, err := doc.Trigger()
	if err != nil {
		return trigger.Trigger{}, []ValidationError{{Field: "document", Message: err.Error(), Code: ErrUnsupportedType}}
	}
	if errs := Validate(t); len(errs) > 0 {
		return t, errs
	}
	return t, nil
}

// decodeInstance turns a document into the generic JSON value the schema
// validator expects. YAML is re-encoded through JSON so numbers and maps
// have the same shape either way.
func decodeInstance(data []byte, f Format) (any, error) {
	switch f {
	case FormatJSON:
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

func collectSchemaErrors(ve *jsonschema.ValidationError, out *[]ValidationError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, ValidationError{
			Field:   pointerToField(ve.InstanceLocation),
			Message: ve.Message,
			Code:    ErrSchema,
		})
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, out)
	}
}

// pointerToField renders a JSON pointer like /keys/0/type as keys[0].type.
func pointerToField(ptr string) string {
	if ptr == "" || ptr == "/" {
		return "document"
	}
	var b strings.Builder
	for _, part := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(part); err == nil {
			b.WriteString("[" + part + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
