// Package format renders pipeline outcomes into the reply text sent back
// to the sender. Rendering is deterministic: identical inputs always
// produce identical replies, and raw internal error text never leaves this
// package.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/execute"
	"github.com/askdb/askdb/internal/failure"
)

type Options struct {
	// ShowSQL appends the executed statement to successful replies.
	ShowSQL bool
	// MaxDisplayRows caps how many rows are rendered in one reply.
	MaxDisplayRows int
}

type Formatter struct {
	showSQL        bool
	maxDisplayRows int
}

func New(opts Options) *Formatter {
	maxRows := opts.MaxDisplayRows
	if maxRows <= 0 {
		maxRows = 15
	}
	return &Formatter{showSQL: opts.ShowSQL, maxDisplayRows: maxRows}
}

// Success renders a bounded result set as a readable summary rather than a
// raw dump.
func (f *Formatter) Success(sqlText string, result execute.Result) string {
	var sb strings.Builder

	switch {
	case result.RowCount == 0:
		sb.WriteString("No results found.")
	case result.RowCount == 1 && len(result.Columns) == 1:
		sb.WriteString(fmt.Sprintf("Result: %s", renderValue(result.Rows[0][0])))
	default:
		shown := result.RowCount
		if shown > f.maxDisplayRows {
			shown = f.maxDisplayRows
		}
		for i := 0; i < shown; i++ {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, renderRow(result.Columns, result.Rows[i])))
		}
		if hidden := result.RowCount - shown; hidden > 0 {
			sb.WriteString(fmt.Sprintf("... and %d more rows\n", hidden))
		}
	}

	if result.Truncated {
		sb.WriteString(fmt.Sprintf("\n(Results were truncated at %d rows; ask a narrower question for the rest.)", result.RowCount))
	}
	if f.showSQL && strings.TrimSpace(sqlText) != "" {
		sb.WriteString(fmt.Sprintf("\n\nSQL: %s", sqlText))
	}
	return sb.String()
}

// Busy is the fixed reply for a question that arrived while the sender's
// queue was already full. Every question received while running gets a
// reply, including this one.
func (f *Formatter) Busy() string {
	return "I'm still working on your earlier questions. Please ask again in a moment."
}

// Failure renders one fixed, plain-language message per failure kind. The
// failure's internal detail is deliberately not included: driver and HTTP
// errors can echo connection strings and credentials.
func (f *Formatter) Failure(fail *failure.Failure) string {
	switch fail.Kind {
	case failure.KindUnauthorized:
		return "Sorry, you are not authorized to query this database."
	case failure.KindSchemaUnavailable:
		return "I could not read the database structure right now. Please check the database connection and try again."
	case failure.KindGenerationFailed:
		return "I could not turn that question into a database query. Try rephrasing it."
	case failure.KindPolicyRejected:
		msg := "That query is not allowed"
		if fail.Detail != "" {
			msg += ": " + fail.Detail
		}
		return msg + "."
	case failure.KindExecutionTimeout:
		return "The query took too long and was stopped. Try a narrower question."
	case failure.KindExecutionError:
		return "The database could not run the generated query. Try rephrasing your question."
	case failure.KindConnectionLost:
		return "The database connection was lost. Please try again in a moment."
	default:
		return "Something went wrong while answering your question. Please try again."
	}
}

func renderRow(columns []string, row []any) string {
	parts := make([]string, 0, len(row))
	for i, v := range row {
		name := ""
		if i < len(columns) {
			name = columns[i]
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, renderValue(v)))
	}
	return strings.Join(parts, " | ")
}

func renderValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", value), "0"), ".")
	default:
		return fmt.Sprintf("%v", value)
	}
}
