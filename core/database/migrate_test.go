package database

import (
	"reflect"
	"testing"
)

func TestEmbeddedMigrationsMatchAcrossDrivers(t *testing.T) {
	pg := listMigrationFiles(migrationsFS, "migrations/"+DriverPostgres)
	lite := listMigrationFiles(migrationsFS, "migrations/"+DriverSQLite)
	if len(pg) == 0 {
		t.Fatal("no postgres migrations embedded")
	}
	if !reflect.DeepEqual(pg, lite) {
		t.Fatalf("driver migration sets differ:\npostgres=%v\nsqlite=%v", pg, lite)
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_gate.up.sql", "000003_more.up.sql"}
	for _, tc := range []struct {
		from, to uint64
		want     []string
	}{
		{0, 3, files},
		{1, 2, []string{"000002_gate.up.sql"}},
		{2, 2, nil},
		{3, 1, nil},
	} {
		if got := selectApplied(files, tc.from, tc.to); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("selectApplied(%d, %d) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestConfigNormalize(t *testing.T) {
	lite := Config{Driver: "SQLite"}
	if err := lite.Normalize(); err != nil {
		t.Fatalf("sqlite normalize: %v", err)
	}
	if lite.Driver != DriverSQLite || lite.Path == "" || lite.MaxConnections != 1 {
		t.Fatalf("sqlite defaults = %+v", lite)
	}

	pg := Config{Host: "db", Name: "bot", User: "u", Password: "p@ss"}
	if err := pg.Normalize(); err != nil {
		t.Fatalf("postgres normalize: %v", err)
	}
	if pg.Port != "5432" || pg.SSLMode != "disable" || pg.MaxConnections != 10 {
		t.Fatalf("postgres defaults = %+v", pg)
	}
	if got := pg.URL(); got != "postgres://u:p%40ss@db:5432/bot?sslmode=disable" {
		t.Fatalf("URL = %s", got)
	}

	if err := (&Config{Driver: "mysql"}).Normalize(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if err := (&Config{}).Normalize(); err == nil {
		t.Fatal("expected error for postgres without host")
	}
}
