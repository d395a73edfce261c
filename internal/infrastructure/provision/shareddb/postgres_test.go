package shareddb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/homeport/provisioner/internal/domain/provision"
)

// fakeAdmin scripts the catalog probes and records every statement the
// driver executes, so tests can assert on the SQL text itself.
type fakeAdmin struct {
	roleExists bool
	dbExists   bool
	// failOn makes Exec fail for any statement containing the substring.
	failOn string

	execs []string
}

func (f *fakeAdmin) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	return pgconn.NewCommandTag(""), nil
}

func (f *fakeAdmin) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if strings.Contains(sql, "pg_roles") {
		return boolRow(f.roleExists)
	}
	return boolRow(f.dbExists)
}

type boolRow bool

func (r boolRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = bool(r)
	return nil
}

func TestProvisionExistingRoleIssuesAlterRole(t *testing.T) {
	fake := &fakeAdmin{roleExists: true, dbExists: true}
	p := &Postgres{db: fake, cfg: PostgresConfig{PrivateAddress: "pg.internal", PublicAddress: "pg.example.com"}}

	info, err := p.Provision(context.Background(), "acme")
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if len(fake.execs) != 1 {
		t.Fatalf("executed %d statements, want 1 (ALTER ROLE only): %v", len(fake.execs), fake.execs)
	}
	if !strings.HasPrefix(fake.execs[0], `ALTER ROLE "user-acme"`) {
		t.Errorf("statement = %q, want an ALTER ROLE for the existing role", fake.execs[0])
	}
	if info.Username != "user-acme" || info.DatabaseName != "db-acme" {
		t.Errorf("info = %+v, want username user-acme and database db-acme", info)
	}
	if info.Port != 5432 {
		t.Errorf("Port = %d, want 5432", info.Port)
	}
}

func TestProvisionAbsentRoleIssuesCreateRole(t *testing.T) {
	fake := &fakeAdmin{roleExists: false, dbExists: true}
	p := &Postgres{db: fake}

	if _, err := p.Provision(context.Background(), "acme"); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if len(fake.execs) != 1 || !strings.HasPrefix(fake.execs[0], `CREATE ROLE "user-acme"`) {
		t.Errorf("statements = %v, want a single CREATE ROLE", fake.execs)
	}
}

func TestProvisionRotatesPassword(t *testing.T) {
	fake := &fakeAdmin{roleExists: true, dbExists: true}
	p := &Postgres{db: fake}

	first, err := p.Provision(context.Background(), "acme")
	if err != nil {
		t.Fatalf("first Provision() error = %v", err)
	}
	second, err := p.Provision(context.Background(), "acme")
	if err != nil {
		t.Fatalf("second Provision() error = %v", err)
	}

	if first.Username != second.Username || first.DatabaseName != second.DatabaseName {
		t.Error("repeated provisions should converge on the same role and database names")
	}
	if first.Password == second.Password {
		t.Error("repeated provisions should each mint a fresh password")
	}
}

// TestDeleteReportsSwappedKinds pins the preserved upstream mislabeling: a
// failed DROP DATABASE surfaces as KindDeleteRole and a failed DROP ROLE as
// KindDeleteDB.
func TestDeleteReportsSwappedKinds(t *testing.T) {
	p := &Postgres{db: &fakeAdmin{failOn: "DROP DATABASE"}}
	err := p.Delete(context.Background(), "acme")
	if kind, ok := provision.KindOf(err); !ok || kind != provision.KindDeleteRole {
		t.Errorf("drop-database failure kind = (%v, %v), want (%v, true)", kind, ok, provision.KindDeleteRole)
	}

	p = &Postgres{db: &fakeAdmin{failOn: "DROP ROLE"}}
	err = p.Delete(context.Background(), "acme")
	if kind, ok := provision.KindOf(err); !ok || kind != provision.KindDeleteDB {
		t.Errorf("drop-role failure kind = (%v, %v), want (%v, true)", kind, ok, provision.KindDeleteDB)
	}
}

func TestDeleteDropsDatabaseThenRole(t *testing.T) {
	fake := &fakeAdmin{}
	p := &Postgres{db: fake}

	if err := p.Delete(context.Background(), "acme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(fake.execs) != 2 {
		t.Fatalf("executed %d statements, want 2: %v", len(fake.execs), fake.execs)
	}
	if !strings.HasPrefix(fake.execs[0], `DROP DATABASE "db-acme"`) {
		t.Errorf("first statement = %q, want DROP DATABASE", fake.execs[0])
	}
	if !strings.HasPrefix(fake.execs[1], `DROP ROLE IF EXISTS "user-acme"`) {
		t.Errorf("second statement = %q, want DROP ROLE IF EXISTS", fake.execs[1])
	}
}
