package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a new globally unique identifier as string. It is implemented
// as a thin wrapper so tests can stub it.

var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// NewCaseID builds a public case identifier made of the supplied prefix and
// the first 8 hex characters of a fresh UUID, upper-cased, e.g. PROB_9F31C2AB.
var NewCaseIDFunc = func(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + strings.ToUpper(hex[:8])
}

func NewCaseID(prefix string) string { return NewCaseIDFunc(prefix) }
