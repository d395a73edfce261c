// Package shareddb implements the idempotent create/drop workflows for
// per-tenant objects on the platform's shared Postgres and MongoDB
// clusters.
package shareddb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homeport/provisioner/internal/domain/provision"
	"github.com/homeport/provisioner/internal/pkg/logger"
)

// AdminConn is the subset of the pgx pool surface the driver issues its
// admin statements through. *pgxpool.Pool satisfies it.
type AdminConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresConfig describes the shared Postgres cluster this driver
// administers.
type PostgresConfig struct {
	PrivateAddress string
	PublicAddress  string
}

// Postgres is the shared-cluster Postgres driver. It holds an admin
// connection pool and opens short-lived connections to freshly created
// tenant databases when tenant-isolation hardening must run in that
// database's own context.
type Postgres struct {
	db   AdminConn
	pool *pgxpool.Pool
	cfg  PostgresConfig
	// dsnTemplate is the admin DSN with the database name left as a %s hole,
	// so the driver can dial the tenant database directly after creating it.
	dsnTemplate string
}

// NewPostgres builds a Postgres driver, connecting lazily (the pool does
// not dial until first use) with the connection limits the shared cluster
// is sized for: 4 minimum, 12 maximum, a 60s connect timeout.
func NewPostgres(ctx context.Context, adminDSN string, dsnTemplate string, cfg PostgresConfig) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(adminDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres admin dsn: %w", err)
	}
	poolCfg.MinConns = 4
	poolCfg.MaxConns = 12
	poolCfg.MaxConnLifetime = 0
	poolCfg.ConnConfig.ConnectTimeout = 60 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	return &Postgres{db: pool, pool: pool, cfg: cfg, dsnTemplate: dsnTemplate}, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Provision creates (or rotates the password of) the role and database for
// project, then returns the connection tuple. Identifiers are interpolated
// into the SQL text and quoted with double quotes because Postgres does not
// support parameter binding for identifiers; passwords are single-quoted
// string literals.
func (p *Postgres) Provision(ctx context.Context, project string) (provision.DatabaseInfo, error) {
	username := provision.Role(project)
	dbName := provision.Database(project)

	password, err := provision.GeneratePassword()
	if err != nil {
		return provision.DatabaseInfo{}, provision.Wrap(provision.KindUnexpectedSQL, err)
	}

	roleExists, err := p.roleExists(ctx, username)
	if err != nil {
		return provision.DatabaseInfo{}, err
	}

	roleIdent := pgx.Identifier{username}.Sanitize()
	if roleExists {
		stmt := fmt.Sprintf(`ALTER ROLE %s WITH LOGIN PASSWORD '%s'`, roleIdent, password)
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return provision.DatabaseInfo{}, provision.Wrap(provision.KindUpdateRole, err)
		}
	} else {
		stmt := fmt.Sprintf(`CREATE ROLE %s WITH LOGIN PASSWORD '%s'`, roleIdent, password)
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return provision.DatabaseInfo{}, provision.Wrap(provision.KindCreateRole, err)
		}
	}

	dbExists, err := p.databaseExists(ctx, dbName)
	if err != nil {
		return provision.DatabaseInfo{}, err
	}
	if !dbExists {
		dbIdent := pgx.Identifier{dbName}.Sanitize()
		stmt := fmt.Sprintf(`CREATE DATABASE %s OWNER '%s'`, dbIdent, username)
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return provision.DatabaseInfo{}, provision.Wrap(provision.KindCreateDB, err)
		}
		if err := p.hardenNewDatabase(ctx, dbName); err != nil {
			return provision.DatabaseInfo{}, err
		}
	}

	return provision.DatabaseInfo{
		Engine:        string(provision.EnginePostgres),
		Username:      username,
		Password:      password,
		DatabaseName:  dbName,
		Address:       p.cfg.PrivateAddress,
		PublicAddress: p.cfg.PublicAddress,
		Port:          provision.EnginePostgres.Port(),
	}, nil
}

// hardenNewDatabase opens a short-lived connection to the newly created
// database and revokes default public access to the system catalogs. This
// must run against the new database specifically: executing it on the
// admin connection has no effect on the new database's grants.
func (p *Postgres) hardenNewDatabase(ctx context.Context, dbName string) error {
	dsn := fmt.Sprintf(p.dsnTemplate, dbName)
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return provision.Wrap(provision.KindCreateDB, fmt.Errorf("connect to new database %s: %w", dbName, err))
	}
	defer conn.Close(ctx)

	for _, stmt := range []string{
		`REVOKE ALL ON pg_user FROM public;`,
		`REVOKE ALL ON pg_roles FROM public;`,
		`REVOKE ALL ON pg_database FROM public;`,
	} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return provision.Wrap(provision.KindCreateDB, fmt.Errorf("harden %s: %w", dbName, err))
		}
	}
	return nil
}

func (p *Postgres) roleExists(ctx context.Context, role string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname = $1)`, role).Scan(&exists)
	if err != nil {
		return false, provision.Wrap(provision.KindUnexpectedSQL, err)
	}
	return exists, nil
}

func (p *Postgres) databaseExists(ctx context.Context, dbName string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists)
	if err != nil {
		return false, provision.Wrap(provision.KindUnexpectedSQL, err)
	}
	return exists, nil
}

// Delete drops the database and then the role for project. The kinds
// reported here intentionally preserve an upstream mislabeling: a failure
// to drop the database is reported as KindDeleteRole, and a failure to drop
// the role is reported as KindDeleteDB. This is flagged, not fixed; see
// the design notes' open question on error-mapping mislabeling.
func (p *Postgres) Delete(ctx context.Context, project string) error {
	username := provision.Role(project)
	dbName := provision.Database(project)

	dbIdent := pgx.Identifier{dbName}.Sanitize()
	if _, err := p.db.Exec(ctx, fmt.Sprintf(`DROP DATABASE %s`, dbIdent)); err != nil {
		logger.Warn("drop database failed", "project", project, "error", err)
		return provision.Wrap(provision.KindDeleteRole, err)
	}

	roleIdent := pgx.Identifier{username}.Sanitize()
	if _, err := p.db.Exec(ctx, fmt.Sprintf(`DROP ROLE IF EXISTS %s`, roleIdent)); err != nil {
		logger.Warn("drop role failed", "project", project, "error", err)
		return provision.Wrap(provision.KindDeleteDB, err)
	}

	return nil
}
