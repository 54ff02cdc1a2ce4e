// Package idgen centralises identifier generation so that unit tests can
// substitute deterministic values.
package idgen
