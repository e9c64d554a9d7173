package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wesleyorama2/courier/internal/request"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, err := range ve {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// Schema returns a filter that validates the response data against a JSON
// Schema document. Valid data passes through unchanged; invalid data fails
// the request with ValidationErrors.
func Schema(schema string) (request.Filter, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return func(ctx context.Context, resp *request.Response, url string, opts *request.Options) (interface{}, error) {
		value, err := decodedOf(resp.Data)
		if err != nil {
			return nil, err
		}
		if err := compiled.Validate(value); err != nil {
			if verr, ok := err.(*jsonschema.ValidationError); ok {
				return nil, flatten(verr)
			}
			return nil, err
		}
		return resp.Data, nil
	}, nil
}

// decodedOf returns response data in the form jsonschema validates.
func decodedOf(data interface{}) (interface{}, error) {
	var raw []byte
	switch d := data.(type) {
	case string:
		raw = []byte(d)
	case []byte:
		raw = d
	default:
		// Round-trip so numbers and maps have the decoder's types.
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encoding response data: %w", err)
		}
		raw = b
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

func flatten(err *jsonschema.ValidationError) ValidationErrors {
	var errs ValidationErrors
	if err.Message != "" {
		errs = append(errs, fmt.Errorf("validation error at %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		errs = append(errs, flatten(cause)...)
	}
	return errs
}
