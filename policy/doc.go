// Package policy provides optional declarative rules that can be applied on
// top of a running engine – for example to block selected tools for a crew or
// to require a decision before an action executes.
package policy
