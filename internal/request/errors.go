package request

import "fmt"

// ProviderLoadError is returned to every request waiting on a failed
// default-provider load.
type ProviderLoadError struct {
	Env string
	Err error
}

// Error returns the error message
func (e *ProviderLoadError) Error() string {
	if e.Env == "" {
		return fmt.Sprintf("loading default provider: %v", e.Err)
	}
	return fmt.Sprintf("loading default provider for environment %q: %v", e.Env, e.Err)
}

func (e *ProviderLoadError) Unwrap() error { return e.Err }

// TransportError is a provider-level failure. Response is set when the
// provider received one.
type TransportError struct {
	URL      string
	Response *Response
	Err      error
}

// Error returns the error message
func (e *TransportError) Error() string {
	if e.Response != nil && e.Err == nil {
		return fmt.Sprintf("request %s failed with status %d", e.URL, e.Response.StatusCode)
	}
	return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FilterError is a failure raised by a response filter. The transport
// response is kept as delivered.
type FilterError struct {
	URL      string
	Response *Response
	Err      error
}

// Error returns the error message
func (e *FilterError) Error() string {
	return fmt.Sprintf("filtering response for %s: %v", e.URL, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }
