// Package dispatch routes HTTP requests through pluggable providers and
// post-processes responses with pluggable filters.
//
// A Dispatcher holds two ordered registries. The provider registry decides
// which function performs a request; the filter registry decides how the
// response data is transformed. Entries are matched newest-last unless
// registered with Prepend, and each registration returns a Handle that
// removes it again.
//
// When no registered provider accepts a request the default provider is
// used. It is built lazily on the first such request from the configured
// environment ("net" for the live network, "replay" for a fixtures file),
// and requests that arrive while it is loading wait for the same load.
//
// Basic Usage:
//
//	d := dispatch.New(dispatch.Config{Timeout: 10 * time.Second})
//
//	resp, err := d.Get(ctx, "https://api.example.com/users", &dispatch.Options{
//	    ResponseType: dispatch.ResponseTypeJSON,
//	}).Wait()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Data)
//
// Routing a host to a custom provider:
//
//	h, err := d.Providers().Register(regexp.MustCompile(`^https://internal\.`), myProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Destroy()
//
// Reducing a response with JSONPath:
//
//	extract, _ := dispatch.ExtractFilter("$.users[0].name")
//	d.Filters().Register("https://api.example.com/users", extract, dispatch.Prepend())
//
// Errors are *TransportError when the provider fails or answers with an
// HTTP error status, *FilterError when a filter fails, and
// *ProviderLoadError when the default provider cannot be built.
package dispatch
