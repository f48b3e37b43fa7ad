// Package schema introspects the target database and produces the compact
// textual schema description that grounds SQL generation.
package schema

import (
	"fmt"
	"strings"
	"time"
)

type Column struct {
	Name string
	Type string
}

type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// QualifiedName keeps prompts compact: tables in the default schema go by
// their bare name, anything else is schema-qualified so two same-named
// tables in different schemas stay distinguishable.
func (t Table) QualifiedName() string {
	if t.Schema == "" || t.Schema == "public" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Snapshot is an ordered view of the user-defined tables at one point in
// time. Ordering follows the introspection query (table name, then column
// ordinal position), which makes Text deterministic for a given database
// state.
type Snapshot struct {
	Tables  []Table
	TakenAt time.Time
}

// Text serializes the snapshot for embedding in a model prompt. The same
// snapshot always produces byte-identical output.
func (s Snapshot) Text() string {
	if len(s.Tables) == 0 {
		return "(no tables found)"
	}

	var sb strings.Builder
	for i, table := range s.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("TABLE: %s\n", table.QualifiedName()))
		for _, col := range table.Columns {
			sb.WriteString(fmt.Sprintf("  - %s (%s)\n", col.Name, col.Type))
		}
	}
	return sb.String()
}

func (s Snapshot) TableCount() int {
	return len(s.Tables)
}
