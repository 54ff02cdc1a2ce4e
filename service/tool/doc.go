// Package tool defines the uniform call contract shared by the research
// tools agents may consult: web search, embedded legal knowledge and
// document reading.  Tools register in the action registry under the
// tool/ prefix and expose a single call method.
package tool
