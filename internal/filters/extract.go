// Package filters provides response filters beyond the built-in JSON decoder.
package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/courier/internal/request"
)

// Extract returns a filter that replaces the response data with the value
// at a JSONPath expression such as $.users[0].name. The result is the
// decoded value (string, float64, bool, nil, map or slice).
func Extract(path string) (request.Filter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty JSONPath expression")
	}
	gpath := ToGjsonPath(path)

	return func(ctx context.Context, resp *request.Response, url string, opts *request.Options) (interface{}, error) {
		doc, err := documentOf(resp.Data)
		if err != nil {
			return nil, err
		}
		result := gjson.Get(doc, gpath)
		if !result.Exists() {
			return nil, fmt.Errorf("path not found: %s", path)
		}
		return result.Value(), nil
	}, nil
}

// documentOf renders response data as JSON text.
func documentOf(data interface{}) (string, error) {
	switch d := data.(type) {
	case string:
		if d == "" {
			return "", fmt.Errorf("empty JSON string")
		}
		if !gjson.Valid(d) {
			return "", fmt.Errorf("response is not valid JSON")
		}
		return d, nil
	case []byte:
		return documentOf(string(d))
	default:
		// Already decoded by an earlier filter.
		b, err := json.Marshal(d)
		if err != nil {
			return "", fmt.Errorf("encoding response data: %w", err)
		}
		return string(b), nil
	}
}

// ToGjsonPath converts a JSONPath expression to gjson path syntax.
//
//	$.users[0].name -> users.0.name
//	$['name']       -> name
//	$               -> @this
func ToGjsonPath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return "@this"
	}
	path = strings.TrimPrefix(path, ".")

	replacer := strings.NewReplacer(
		"['", ".", "']", "",
		`["`, ".", `"]`, "",
		"[", ".", "]", "",
	)
	path = replacer.Replace(path)
	return strings.Trim(path, ".")
}
