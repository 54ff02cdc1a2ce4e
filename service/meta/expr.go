package meta

import (
	"os"
	"strings"
	"unicode"
)

// expandEnvExpr substitutes every ${env.KEY} expression with the value of the
// KEY environment variable; unset keys expand to the empty string and
// malformed expressions stay literal.
func expandEnvExpr(value string) string {
	const marker = "${env."
	var out strings.Builder
	rest := value
	for {
		idx := strings.Index(rest, marker)
		if idx < 0 {
			out.WriteString(rest)
			return out.String()
		}
		out.WriteString(rest[:idx])

		tail := rest[idx+len(marker):]
		end := strings.IndexByte(tail, '}')
		if end < 0 {
			// No closing brace; keep the remainder literal.
			out.WriteString(rest[idx:])
			return out.String()
		}

		key := tail[:end]
		if !validEnvKey(key) {
			// Keep the marker literal and rescan what follows so nested
			// expressions still expand.
			out.WriteString(marker)
			rest = tail
			continue
		}

		out.WriteString(os.Getenv(key))
		rest = tail[end+1:]
	}
}

// validEnvKey accepts letters, digits and underscores only.
func validEnvKey(key string) bool {
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
