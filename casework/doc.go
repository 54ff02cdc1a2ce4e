// Package casework holds the legal-domain model: case intake validation,
// case records, complexity grading, inheritance tax assessment and the
// structured report assembled from a finished crew run.
package casework
