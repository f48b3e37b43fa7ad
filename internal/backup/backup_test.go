package backup

import (
	"context"
	"io"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/askdb/askdb/internal/schema"
)

type staticSchema struct {
	snap schema.Snapshot
	err  error
}

func (s staticSchema) Refresh(context.Context) (schema.Snapshot, error) {
	return s.snap, s.err
}

func employeesSnapshot() schema.Snapshot {
	return schema.Snapshot{Tables: []schema.Table{{
		Name: "employees",
		Columns: []schema.Column{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "text"},
			{Name: "note", Type: "text"},
		},
	}}}
}

func TestDumpRendersSchemaAndRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "employees"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}).
			AddRow(int64(1), "Alice", "it's fine").
			AddRow(int64(2), "Bob", nil))

	dumper := NewDumper(db, staticSchema{snap: employeesSnapshot()})
	var sb strings.Builder
	tables, rows, err := dumper.Dump(context.Background(), &sb)
	if err != nil {
		t.Fatalf("Dump() = %v", err)
	}
	if tables != 1 || rows != 2 {
		t.Fatalf("Dump() = %d tables, %d rows, want 1 and 2", tables, rows)
	}

	out := sb.String()
	for _, want := range []string{
		`DROP TABLE IF EXISTS "employees" CASCADE;`,
		`CREATE TABLE "employees" (`,
		`  "id" integer,`,
		`  "name" text,`,
		`INSERT INTO "employees" ("id", "name", "note") VALUES (1, 'Alice', 'it''s fine');`,
		`VALUES (2, 'Bob', NULL);`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("Dump() output missing %q:\n%s", want, out)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDumpQualifiesNonDefaultSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "archive"."employees"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	snap := schema.Snapshot{Tables: []schema.Table{{
		Schema:  "archive",
		Name:    "employees",
		Columns: []schema.Column{{Name: "id", Type: "integer"}},
	}}}
	dumper := NewDumper(db, staticSchema{snap: snap})
	var sb strings.Builder
	if _, _, err := dumper.Dump(context.Background(), &sb); err != nil {
		t.Fatalf("Dump() = %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, `CREATE TABLE "archive"."employees" (`) {
		t.Fatalf("Dump() output missing qualified table:\n%s", out)
	}
	if !strings.Contains(out, `INSERT INTO "archive"."employees" ("id") VALUES (7);`) {
		t.Fatalf("Dump() output missing qualified insert:\n%s", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDumpEmptySchema(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer db.Close()

	dumper := NewDumper(db, staticSchema{snap: schema.Snapshot{}})
	var sb strings.Builder
	tables, rows, err := dumper.Dump(context.Background(), &sb)
	if err != nil {
		t.Fatalf("Dump() = %v", err)
	}
	if tables != 0 || rows != 0 {
		t.Fatalf("Dump() = %d tables, %d rows, want 0 and 0", tables, rows)
	}
	if !strings.Contains(sb.String(), "-- askdb backup") {
		t.Fatalf("Dump() output missing header:\n%s", sb.String())
	}
}

type recordingPutter struct {
	bucket      string
	key         string
	size        int64
	contentType string
	err         error
}

func (r *recordingPutter) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	r.bucket, r.key, r.size, r.contentType = bucket, key, size, contentType
	_, _ = io.Copy(io.Discard, reader)
	return r.err
}

func TestServiceRunWritesFileAndUploads(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "employees"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}).AddRow(int64(1), "Alice", "x"))

	putter := &recordingPutter{}
	uploader, err := NewUploaderWithClient("askdb-backups", "dumps", putter)
	if err != nil {
		t.Fatalf("NewUploaderWithClient() = %v", err)
	}

	dir := t.TempDir()
	service := NewService(nil, NewDumper(db, staticSchema{snap: employeesSnapshot()}), uploader, dir)
	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if summary.Tables != 1 || summary.Rows != 1 {
		t.Fatalf("summary = %+v, want 1 table and 1 row", summary)
	}
	if _, err := os.Stat(summary.File); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if putter.bucket != "askdb-backups" {
		t.Fatalf("uploaded to bucket %q, want %q", putter.bucket, "askdb-backups")
	}
	if !strings.HasPrefix(putter.key, "dumps/askdb-backup-") || !strings.HasSuffix(putter.key, ".sql") {
		t.Fatalf("uploaded key = %q, want prefixed timestamped .sql name", putter.key)
	}
	if putter.size != summary.Bytes {
		t.Fatalf("uploaded %d bytes, file has %d", putter.size, summary.Bytes)
	}
	if summary.UploadedKey != putter.key {
		t.Fatalf("summary key %q != uploaded key %q", summary.UploadedKey, putter.key)
	}
}

func TestServiceRunWithoutUploader(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "employees"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}))

	service := NewService(nil, NewDumper(db, staticSchema{snap: employeesSnapshot()}), nil, t.TempDir())
	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if summary.UploadedKey != "" {
		t.Fatalf("UploadedKey = %q, want empty without uploader", summary.UploadedKey)
	}
}

func TestServiceRunSchemaFailureLeavesNoFile(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	defer db.Close()

	dir := t.TempDir()
	service := NewService(nil, NewDumper(db, staticSchema{err: io.ErrUnexpectedEOF}), nil, dir)
	if _, err := service.Run(context.Background()); err == nil {
		t.Fatalf("Run() = nil, want error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("found %d leftover files after failed backup, want 0", len(entries))
	}
}
