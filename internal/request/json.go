package request

import (
	"context"
	"encoding/json"
)

// ResponseTypeJSON asks for the response data to be decoded as JSON.
const ResponseTypeJSON = "json"

// JSONTest matches textual responses to requests with ResponseType "json".
func JSONTest(resp *Response, url string, opts *Options) bool {
	if resp == nil || opts == nil || opts.ResponseType != ResponseTypeJSON {
		return false
	}
	switch resp.Data.(type) {
	case string, []byte:
		return true
	}
	return false
}

// JSONFilter decodes textual response data into its structured form.
func JSONFilter(ctx context.Context, resp *Response, url string, opts *Options) (interface{}, error) {
	var raw []byte
	switch data := resp.Data.(type) {
	case string:
		raw = []byte(data)
	case []byte:
		raw = data
	default:
		return resp.Data, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &FilterError{URL: url, Response: resp, Err: err}
	}
	return decoded, nil
}
