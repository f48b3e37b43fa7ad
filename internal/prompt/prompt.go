// Package prompt builds the single instruction sent to the language model
// for one question. Composition is a pure function so prompts are
// reproducible in tests.
package prompt

import (
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/schema"
)

const rules = `Rules:
- Output exactly one SQL statement and nothing else: no explanation, no markdown, no comments.
- Use PostgreSQL syntax.
- Use only the tables and columns listed in the schema; never invent names.
- For counting questions use COUNT(*).
- For listing questions add a LIMIT clause (default LIMIT 10) unless the question asks for more.
- Prefer explicit column lists over SELECT * when the question names specific fields.`

// Compose merges the schema snapshot, the generation rules, and the literal
// user question into one prompt. The question is embedded verbatim.
func Compose(question string, snap schema.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("You convert natural-language questions about a business database into a single SQL statement.\n\n")
	sb.WriteString("Database schema:\n")
	sb.WriteString(snap.Text())
	sb.WriteString("\n")
	sb.WriteString(rules)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Question: %s\n", question))
	sb.WriteString("SQL:")
	return sb.String()
}
