// Package guard is the trust boundary between the language model and the
// database. Model output is treated as untrusted input: it is classified by
// keyword inspection and checked against the sender's permissions before
// anything reaches the executor.
//
// Classification is a best-effort heuristic, not a SQL parser. It errs
// toward rejection: anything it cannot positively recognize as a single
// read or a single recognized write is unknown and never executed.
package guard

import (
	"strings"

	"github.com/askdb/askdb/internal/failure"
)

type Class string

const (
	ClassRead    Class = "read"
	ClassWrite   Class = "write"
	ClassUnknown Class = "unknown"
)

// Statement is a candidate SQL text with its assigned classification.
type Statement struct {
	SQL   string
	Class Class
}

var writeKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {}, "TRUNCATE": {},
}

// Classify assigns a class by leading keyword. Only a bare SELECT is a
// read; WITH is deliberately not, because PostgreSQL allows CTEs to wrap
// data-modifying statements. Any statement chaining makes the candidate
// unknown regardless of its head.
func Classify(sqlText string) Statement {
	st := Statement{SQL: sqlText, Class: ClassUnknown}

	stripped := stripNoise(sqlText)
	trimmed := strings.TrimSpace(stripped)
	if trimmed == "" {
		return st
	}
	if isChained(trimmed) {
		return st
	}

	fields := strings.Fields(trimmed)
	keyword := strings.ToUpper(fields[0])
	switch {
	case keyword == "SELECT":
		st.Class = ClassRead
	default:
		if _, ok := writeKeywords[keyword]; ok {
			st.Class = ClassWrite
		}
	}
	return st
}

// Check enforces the policy for one classified statement. Reads always
// pass. Writes pass only for senders with write mode. Unknowns never pass:
// write mode unlocks recognized single write statements, not statements the
// classifier could not account for.
func Check(st Statement, writeAllowed bool) error {
	switch st.Class {
	case ClassRead:
		return nil
	case ClassWrite:
		if writeAllowed {
			return nil
		}
		return failure.New(failure.KindPolicyRejected,
			"statement modifies data and this sender is read-only")
	default:
		return failure.New(failure.KindPolicyRejected,
			"statement could not be recognized as a single permitted query")
	}
}

// isChained reports whether a terminator is followed by more content.
// Comments and string literals were removed before scanning, so a ';'
// inside a quoted value does not count.
func isChained(sqlText string) bool {
	idx := strings.Index(sqlText, ";")
	if idx < 0 {
		return false
	}
	return strings.TrimSpace(sqlText[idx+1:]) != ""
}

// stripNoise removes line comments, block comments, and string literals so
// the chaining scan only sees structural characters. Dollar-quoted strings
// are not handled; statements using them end up unknown, which is the safe
// direction.
func stripNoise(sqlText string) string {
	var sb strings.Builder
	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		switch {
		case runes[i] == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
		case runes[i] == '\'':
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					// Doubled quote is an escaped quote inside the literal.
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i += 2
						continue
					}
					break
				}
				i++
			}
			sb.WriteString("''")
		case runes[i] == '"':
			i++
			for i < len(runes) && runes[i] != '"' {
				i++
			}
			sb.WriteString(`""`)
		default:
			sb.WriteRune(runes[i])
		}
	}
	return sb.String()
}
