package format

import (
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/execute"
	"github.com/askdb/askdb/internal/failure"
)

func TestSuccessEmptyResult(t *testing.T) {
	f := New(Options{})
	got := f.Success("SELECT * FROM employees", execute.Result{Columns: []string{"id"}})
	if got != "No results found." {
		t.Fatalf("Success() = %q, want %q", got, "No results found.")
	}
}

func TestSuccessSingleValue(t *testing.T) {
	f := New(Options{})
	result := execute.Result{
		Columns:  []string{"count"},
		Rows:     [][]any{{int64(42)}},
		RowCount: 1,
	}
	if got := f.Success("SELECT COUNT(*) FROM employees", result); got != "Result: 42" {
		t.Fatalf("Success() = %q, want %q", got, "Result: 42")
	}
}

func TestSuccessMultipleRowsMentionsAllValues(t *testing.T) {
	f := New(Options{})
	result := execute.Result{
		Columns:  []string{"id", "name"},
		Rows:     [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}},
		RowCount: 2,
	}
	got := f.Success("SELECT id, name FROM employees", result)
	if !strings.Contains(got, "Alice") || !strings.Contains(got, "Bob") {
		t.Fatalf("Success() = %q, want both names present", got)
	}
	if !strings.Contains(got, "1. id: 1 | name: Alice") {
		t.Fatalf("Success() = %q, want numbered row rendering", got)
	}
}

func TestSuccessCapsDisplayedRows(t *testing.T) {
	f := New(Options{MaxDisplayRows: 2})
	result := execute.Result{
		Columns:  []string{"n"},
		Rows:     [][]any{{int64(1)}, {int64(2)}, {int64(3)}, {int64(4)}},
		RowCount: 4,
	}
	got := f.Success("SELECT n FROM t", result)
	if strings.Contains(got, "3. ") {
		t.Fatalf("Success() = %q, want at most 2 rendered rows", got)
	}
	if !strings.Contains(got, "... and 2 more rows") {
		t.Fatalf("Success() = %q, want hidden-row note", got)
	}
}

func TestSuccessTruncatedNote(t *testing.T) {
	f := New(Options{})
	result := execute.Result{
		Columns:   []string{"n"},
		Rows:      [][]any{{int64(1)}},
		RowCount:  1,
		Truncated: true,
	}
	got := f.Success("SELECT n FROM t", result)
	if !strings.Contains(got, "truncated at 1 rows") {
		t.Fatalf("Success() = %q, want truncation note", got)
	}
}

func TestSuccessShowSQL(t *testing.T) {
	result := execute.Result{
		Columns:  []string{"count"},
		Rows:     [][]any{{int64(7)}},
		RowCount: 1,
	}
	withSQL := New(Options{ShowSQL: true}).Success("SELECT COUNT(*) FROM t", result)
	if !strings.Contains(withSQL, "SQL: SELECT COUNT(*) FROM t") {
		t.Fatalf("Success() = %q, want SQL line", withSQL)
	}
	withoutSQL := New(Options{}).Success("SELECT COUNT(*) FROM t", result)
	if strings.Contains(withoutSQL, "SQL:") {
		t.Fatalf("Success() = %q, want no SQL line", withoutSQL)
	}
}

func TestSuccessDeterministic(t *testing.T) {
	f := New(Options{ShowSQL: true})
	result := execute.Result{
		Columns:  []string{"id", "name"},
		Rows:     [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}},
		RowCount: 2,
	}
	first := f.Success("SELECT id, name FROM employees", result)
	second := f.Success("SELECT id, name FROM employees", result)
	if first != second {
		t.Fatalf("Success() not deterministic:\n%q\n%q", first, second)
	}
}

func TestFailureMessagesOmitInternalDetail(t *testing.T) {
	f := New(Options{})
	tests := []struct {
		name string
		fail *failure.Failure
		want string
	}{
		{
			name: "unauthorized",
			fail: failure.New(failure.KindUnauthorized, "sender 99 not in allow list"),
			want: "not authorized",
		},
		{
			name: "schema unavailable",
			fail: failure.New(failure.KindSchemaUnavailable, "dial tcp 10.0.0.5:5432: i/o timeout"),
			want: "database structure",
		},
		{
			name: "generation failed",
			fail: failure.New(failure.KindGenerationFailed, "model returned status 500"),
			want: "rephrasing",
		},
		{
			name: "execution timeout",
			fail: failure.New(failure.KindExecutionTimeout, "context deadline exceeded"),
			want: "took too long",
		},
		{
			name: "execution error",
			fail: failure.New(failure.KindExecutionError, `relation "emp" does not exist`),
			want: "could not run",
		},
		{
			name: "connection lost",
			fail: failure.New(failure.KindConnectionLost, "bad connection"),
			want: "connection was lost",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Failure(tt.fail)
			if !strings.Contains(got, tt.want) {
				t.Fatalf("Failure() = %q, want it to contain %q", got, tt.want)
			}
			if tt.fail.Kind != failure.KindUnauthorized && strings.Contains(got, tt.fail.Detail) {
				t.Fatalf("Failure() = %q leaked internal detail %q", got, tt.fail.Detail)
			}
		})
	}
}

func TestFailurePolicyRejectedIncludesReason(t *testing.T) {
	f := New(Options{})
	fail := failure.New(failure.KindPolicyRejected, "chained statements are not allowed")
	got := f.Failure(fail)
	if !strings.Contains(got, "chained statements are not allowed") {
		t.Fatalf("Failure() = %q, want the policy reason included", got)
	}
}
