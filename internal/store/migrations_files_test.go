package store

import (
	"io/fs"
	"regexp"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)

	versionsByDialect := map[Dialect]map[string]bool{}
	for _, dialect := range []Dialect{DialectPostgres, DialectSQLite} {
		migrations, err := Migrations(dialect)
		if err != nil {
			t.Fatalf("Migrations(%s) error = %v", dialect, err)
		}
		entries, err := fs.ReadDir(migrations, ".")
		if err != nil {
			t.Fatalf("read %s migrations: %v", dialect, err)
		}

		byVersion := map[string]map[string]bool{}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			match := pattern.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			version := match[1]
			direction := match[2]
			if byVersion[version] == nil {
				byVersion[version] = map[string]bool{}
			}
			if byVersion[version][direction] {
				t.Fatalf("duplicate %s %s migration file for version %s", dialect, direction, version)
			}
			byVersion[version][direction] = true
		}

		if len(byVersion) == 0 {
			t.Fatalf("no %s migrations discovered", dialect)
		}
		versions := map[string]bool{}
		for version, dirs := range byVersion {
			if !dirs["up"] || !dirs["down"] {
				t.Fatalf("%s version %s must include both up and down files", dialect, version)
			}
			versions[version] = true
		}
		versionsByDialect[dialect] = versions
	}

	for version := range versionsByDialect[DialectPostgres] {
		if !versionsByDialect[DialectSQLite][version] {
			t.Fatalf("version %s exists for postgres but not sqlite", version)
		}
	}
}

func TestRebind(t *testing.T) {
	query := `UPDATE parejas SET contenido=$2 WHERE id=$1 AND x=$10`
	if got := rebind(DialectPostgres, query); got != query {
		t.Fatalf("rebind(postgres) = %q", got)
	}
	want := `UPDATE parejas SET contenido=?2 WHERE id=?1 AND x=?10`
	if got := rebind(DialectSQLite, query); got != want {
		t.Fatalf("rebind(sqlite) = %q, want %q", got, want)
	}
}
