package ledger

import (
	"database/sql"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateSQLiteIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrate_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(db, DBSQLite); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='audit_records'`).Scan(&name); err != nil {
		t.Fatalf("expected audit_records table: %v", err)
	}

	applied, err := AppliedVersions(db, DBSQLite)
	if err != nil {
		t.Fatalf("applied versions: %v", err)
	}
	if want := []string{"0001_init", "0002_audit_records"}; !reflect.DeepEqual(applied, want) {
		t.Fatalf("expected %v, got %v", want, applied)
	}
}

func TestMigrationVersions(t *testing.T) {
	for driver := range dialects {
		d, err := dialectFor(driver)
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		versions, err := migrationVersions(d.dir)
		if err != nil {
			t.Fatalf("%s: list: %v", driver, err)
		}
		if len(versions) != 2 || versions[0] != "0001_init" {
			t.Fatalf("%s: unexpected versions %v", driver, versions)
		}
	}
}

func TestMigrateRejectsBadInput(t *testing.T) {
	if err := Migrate(nil, DBSQLite); err == nil {
		t.Fatalf("expected error for nil db")
	}
	if err := Migrate(&sql.DB{}, DBDriver("nope")); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := AppliedVersions(&sql.DB{}, DBDriver("nope")); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
