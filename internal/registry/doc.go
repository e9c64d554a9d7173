// Package registry provides an ordered table of values tagged with predicates.
//
// Entries are matched in sequence order; the first entry whose predicate
// accepts the match arguments wins. A registry may carry a default value that
// is returned when nothing matches.
//
// # Tests
//
// Register accepts three kinds of test:
//
//   - string: exact equality with the first match argument
//   - *regexp.Regexp: pattern match against the first match argument
//   - Predicate (or func(...any) bool): called with every match argument
//
// # Basic Usage
//
//	r := registry.New[string]()
//	h, _ := r.Register("foo", "handler")
//	v, err := r.Match("foo") // "handler", nil
//	h.Destroy()
//	_, err = r.Match("foo")  // *NoMatchError
//
// # Thread Safety
//
// Registry is safe for concurrent use. Match iterates a snapshot of the
// entries, so registrations and destroys made while a match is running
// (including from inside a predicate) do not affect that match.
package registry
