// Package flags provides typed, read-only handles on single feature gates.
//
// Flags/Toggles are dependencies, and should be passed to the components that
// need them in the same way you'd construct and pass a database handle, or
// reference to another component. Build them in your func main from the
// gate engine; every call reads the snapshot current at that moment for the
// evaluation context carried by its context.Context (see
// evaluation.WithContext), or the shared snapshot when it carries none.
package flags
