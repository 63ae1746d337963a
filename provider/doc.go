// Package provider defines the capability every feature gate source
// implements, and the closed set of source kinds an operator can select.
//
// Providers are dependencies, and should be passed to the components that
// need them in the same way you'd construct and pass a database handle.
// Select one in your func main, once, using ParseKind on the configured
// selection value; concrete variants live in the envvar and remote
// sub-packages.
package provider
