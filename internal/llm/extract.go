package llm

import (
	"strings"

	"github.com/askdb/askdb/internal/failure"
)

// sqlKeywords are the leading keywords that make a line "statement-shaped".
// The set is intentionally wider than what the guard will permit: the
// extractor's job is to recognize SQL, the guard's job is to reject it.
var sqlKeywords = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "SHOW": {}, "EXPLAIN": {}, "DESCRIBE": {},
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {},
	"TRUNCATE": {}, "CREATE": {}, "GRANT": {}, "REVOKE": {},
}

// ExtractStatement isolates the first statement-shaped block from a raw
// model response. It tolerates markdown code fences, surrounding
// whitespace, and a trailing explanation. Chained statements are kept
// intact so the guard sees them; trailing prose after a complete statement
// is dropped. When nothing SQL-shaped is present the extraction fails
// instead of guessing.
func ExtractStatement(raw string) (string, error) {
	text := stripFences(raw)
	lines := strings.Split(text, "\n")

	start := -1
	for i, line := range lines {
		if leadingKeyword(line) != "" {
			start = i
			break
		}
	}
	if start < 0 {
		return "", failure.New(failure.KindGenerationFailed, "no SQL statement found in model response")
	}

	var out []string
	terminated := false
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) > 0 {
				break
			}
			continue
		}
		if terminated && leadingKeyword(trimmed) == "" {
			break
		}
		out = append(out, line)
		if strings.Contains(trimmed, ";") {
			terminated = true
		}
	}

	statement := strings.TrimSpace(strings.Join(out, "\n"))
	if statement == "" {
		return "", failure.New(failure.KindGenerationFailed, "no SQL statement found in model response")
	}
	return statement, nil
}

func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	open := strings.Index(trimmed, "```")
	if open < 0 {
		return trimmed
	}

	rest := trimmed[open+3:]
	// Drop the language tag on the fence line, if any.
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(rest, "sql")
	}
	if close := strings.Index(rest, "```"); close >= 0 {
		rest = rest[:close]
	}
	return strings.TrimSpace(rest)
}

func leadingKeyword(line string) string {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return ""
	}
	word := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	if _, ok := sqlKeywords[word]; ok {
		return word
	}
	return ""
}
