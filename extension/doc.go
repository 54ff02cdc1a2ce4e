// Package extension provides run-time registries that let the engine work
// with user-defined Go types (for example custom action inputs or outputs).
//
// The registries are normally modified through the public APIs under the
// root caseflow package, therefore most applications do not need to import
// this package directly.
package extension
