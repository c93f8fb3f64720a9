// Package gateway is the Database Gateway (§4.4): a narrow per-module
// connection holder that abstracts every bit of SQL dialect surface the
// reconciliation engine needs — introspection queries, DDL execution, and
// the session-scoped FOREIGN_KEY_CHECKS toggle. Nothing outside this
// package issues a query against MySQL directly.
package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/divbloxjs/dx-db-sync/internal/model"
	"github.com/divbloxjs/dx-db-sync/internal/syncerr"
)

// registerTLSConfig registers the "custom" TLS profile used when a module's
// connection config carries a client certificate bundle. Safe to call more
// than once; go-sql-driver/mysql simply overwrites the prior registration.
func registerTLSConfig(bundle *model.TLSConfig) error {
	pool := x509.NewCertPool()
	if bundle.CAPath != "" {
		pem, err := os.ReadFile(bundle.CAPath)
		if err != nil {
			return fmt.Errorf("reading CA bundle %s: %w", bundle.CAPath, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("no certificates found in CA bundle %s", bundle.CAPath)
		}
	}
	tlsCfg := &tls.Config{RootCAs: pool}
	if bundle.CertPath != "" && bundle.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(bundle.CertPath, bundle.KeyPath)
		if err != nil {
			return fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return mysql.RegisterTLSConfig("custom", tlsCfg)
}

// TableRow is one row of introspectTables.
type TableRow struct {
	Name string
	Type string // "BASE TABLE", "VIEW", ...
}

// ColumnRow is one row of introspectColumns, mirroring SHOW FULL COLUMNS
// verbatim; parsing the Type into a base type plus length/values is the
// Reconciliation Engine's job (§4.5.3), not the Gateway's.
type ColumnRow struct {
	Field   string
	Null    string // "YES" or "NO"
	Type    string // e.g. "varchar(50)", "bigint(20)"
	Default sql.NullString
}

// IndexRow is one row describing an index's name and the single column it
// covers (every index in this system's data model is single-column; §3).
type IndexRow struct {
	Name   string `db:"name"`
	Column string `db:"col"`
}

// ForeignKeyRow is one foreign key constraint as read from
// information_schema.referential_constraints / key_column_usage.
type ForeignKeyRow struct {
	ConstraintName   string `db:"constraint_name"`
	Column           string `db:"col"`
	ReferencedTable  string `db:"referenced_table"`
	ReferencedColumn string `db:"referenced_column"`
	UpdateRule       string `db:"update_rule"`
	DeleteRule       string `db:"delete_rule"`
}

// Gateway is the per-module database access surface the Reconciliation
// Engine is built against. A Gateway is bound to one module's schema for
// its entire lifetime.
type Gateway interface {
	Module() string
	Schema() string

	EngineSupportsInnoDB(ctx context.Context) (bool, error)
	SetForeignKeyChecks(ctx context.Context, enabled bool) error

	IntrospectTables(ctx context.Context) ([]TableRow, error)
	IntrospectColumns(ctx context.Context, table string) ([]ColumnRow, error)
	IntrospectIndexes(ctx context.Context, table string) ([]IndexRow, error)
	IntrospectForeignKeys(ctx context.Context, table string) ([]ForeignKeyRow, error)

	BeginTx(ctx context.Context) error
	Execute(ctx context.Context, statement string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Close() error
}

// MySQLGateway is the production Gateway implementation, backed by
// database/sql via sqlx, grounded on the teacher's Instance/introspection
// layer.
type MySQLGateway struct {
	module string
	schema string
	db     *sqlx.DB
	tx     *sqlx.Tx
}

// Open connects to the module's schema using cfg and the module->schema
// mapping entry moduleName/schemaName, returning a bound MySQLGateway.
func Open(ctx context.Context, cfg *model.ConnectionConfig, moduleName, schemaName string) (*MySQLGateway, error) {
	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = schemaName
	dsnCfg.ParseTime = true
	dsnCfg.MultiStatements = false
	if cfg.SSL != nil {
		if err := registerTLSConfig(cfg.SSL); err != nil {
			return nil, &syncerr.ConnectError{Module: moduleName, Err: err}
		}
		dsnCfg.TLSConfig = "custom"
	}

	db, err := sqlx.ConnectContext(ctx, "mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, &syncerr.ConnectError{Module: moduleName, Err: err}
	}
	return &MySQLGateway{module: moduleName, schema: schemaName, db: db}, nil
}

func (g *MySQLGateway) Module() string { return g.module }
func (g *MySQLGateway) Schema() string { return g.schema }

func (g *MySQLGateway) queryer() sqlx.QueryerContext {
	if g.tx != nil {
		return g.tx
	}
	return g.db
}

// EngineSupportsInnoDB reports whether this module's server default storage
// engine is InnoDB (§4.5.1 phase 2 integrity probe).
func (g *MySQLGateway) EngineSupportsInnoDB(ctx context.Context) (bool, error) {
	var engine string
	err := sqlx.GetContext(ctx, g.queryer(), &engine, "SELECT @@GLOBAL.default_storage_engine")
	if err != nil {
		return false, &syncerr.IntrospectionError{Module: g.module, Schema: g.schema, Statement: "SELECT @@GLOBAL.default_storage_engine", Err: err}
	}
	return strings.EqualFold(engine, "InnoDB"), nil
}

// SetForeignKeyChecks toggles the session-scoped FOREIGN_KEY_CHECKS flag on
// this module's connection (§5: not a global lock, scoped per connection).
func (g *MySQLGateway) SetForeignKeyChecks(ctx context.Context, enabled bool) error {
	stmt := "SET FOREIGN_KEY_CHECKS=0"
	if enabled {
		stmt = "SET FOREIGN_KEY_CHECKS=1"
	}
	return g.Execute(ctx, stmt)
}

// IntrospectTables lists base tables and views in this module's schema.
func (g *MySQLGateway) IntrospectTables(ctx context.Context) ([]TableRow, error) {
	const q = `
		SELECT table_name AS name, table_type AS type
		FROM   information_schema.tables
		WHERE  table_schema = ?`
	var rows []TableRow
	if err := sqlx.SelectContext(ctx, g.queryer(), &rows, q, g.schema); err != nil {
		return nil, &syncerr.IntrospectionError{Module: g.module, Schema: g.schema, Statement: q, Err: err}
	}
	return rows, nil
}

// IntrospectColumns runs SHOW FULL COLUMNS FROM table, returning rows
// verbatim for the engine to interpret (§4.5.3).
func (g *MySQLGateway) IntrospectColumns(ctx context.Context, table string) ([]ColumnRow, error) {
	stmt := fmt.Sprintf("SHOW FULL COLUMNS FROM %s", quoteIdent(table))
	rawRows, err := g.queryer().QueryxContext(ctx, stmt)
	if err != nil {
		return nil, &syncerr.IntrospectionError{Module: g.module, Schema: g.schema, Statement: stmt, Err: err}
	}
	defer rawRows.Close()

	var rows []ColumnRow
	for rawRows.Next() {
		m, err := rawRows.SliceScan()
		if err != nil {
			return nil, &syncerr.IntrospectionError{Module: g.module, Schema: g.schema, Statement: stmt, Err: err}
		}
		// SHOW FULL COLUMNS: Field, Type, Collation, Null, Key, Default, Extra, Privileges, Comment
		row := ColumnRow{
			Field: asString(m[0]),
			Type:  asString(m[1]),
			Null:  asString(m[3]),
		}
		if def := m[5]; def != nil {
			row.Default = sql.NullString{String: asString(def), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows, rawRows.Err()
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// IntrospectIndexes lists index names and the single column each covers.
func (g *MySQLGateway) IntrospectIndexes(ctx context.Context, table string) ([]IndexRow, error) {
	const q = `
		SELECT index_name AS name, column_name AS col
		FROM   information_schema.statistics
		WHERE  table_schema = ? AND table_name = ?
		ORDER BY index_name, seq_in_index`
	var rows []IndexRow
	if err := sqlx.SelectContext(ctx, g.queryer(), &rows, q, g.schema, table); err != nil {
		return nil, &syncerr.IntrospectionError{Module: g.module, Schema: g.schema, Statement: q, Err: err}
	}
	return rows, nil
}

// IntrospectForeignKeys lists foreign key constraints on table, scoped to
// this module's schema (§4.4).
func (g *MySQLGateway) IntrospectForeignKeys(ctx context.Context, table string) ([]ForeignKeyRow, error) {
	const q = `
		SELECT   rc.constraint_name   AS constraint_name,
		         kcu.column_name      AS col,
		         kcu.referenced_table_name  AS referenced_table,
		         kcu.referenced_column_name AS referenced_column,
		         rc.update_rule        AS update_rule,
		         rc.delete_rule        AS delete_rule
		FROM     information_schema.referential_constraints rc
		JOIN     information_schema.key_column_usage kcu
		         ON kcu.constraint_name = rc.constraint_name
		        AND kcu.constraint_schema = rc.constraint_schema
		        AND kcu.table_name = rc.table_name
		WHERE    rc.constraint_schema = ? AND rc.table_name = ?`
	var rows []ForeignKeyRow
	if err := sqlx.SelectContext(ctx, g.queryer(), &rows, q, g.schema, table); err != nil {
		return nil, &syncerr.IntrospectionError{Module: g.module, Schema: g.schema, Statement: q, Err: err}
	}
	return rows, nil
}

// BeginTx opens the per-module transaction that spans phases 5-10 (§3
// Lifecycle).
func (g *MySQLGateway) BeginTx(ctx context.Context) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return &syncerr.ConnectError{Module: g.module, Err: err}
	}
	g.tx = tx
	return nil
}

// Execute runs one DDL (or session-control) statement on this module's
// connection.
func (g *MySQLGateway) Execute(ctx context.Context, statement string) error {
	var err error
	if g.tx != nil {
		_, err = g.tx.ExecContext(ctx, statement)
	} else {
		_, err = g.db.ExecContext(ctx, statement)
	}
	if err != nil {
		return &syncerr.DdlError{Module: g.module, Schema: g.schema, Statement: statement, Err: err}
	}
	return nil
}

// Commit commits the open per-module transaction.
func (g *MySQLGateway) Commit(ctx context.Context) error {
	if g.tx == nil {
		return nil
	}
	err := g.tx.Commit()
	g.tx = nil
	return err
}

// Rollback aborts the open per-module transaction, best-effort (§9: once a
// DDL statement has implicitly committed, rollback cannot undo it; this call
// still rolls back whatever the driver considers pending).
func (g *MySQLGateway) Rollback(ctx context.Context) error {
	if g.tx == nil {
		return nil
	}
	err := g.tx.Rollback()
	g.tx = nil
	return err
}

// Close releases the underlying connection pool.
func (g *MySQLGateway) Close() error { return g.db.Close() }

func quoteIdent(name string) string {
	return "`" + escapeBackticks(name) + "`"
}

func escapeBackticks(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '`' {
			out = append(out, '`', '`')
		} else {
			out = append(out, name[i])
		}
	}
	return string(out)
}

// IsAccessError reports whether err indicates a MySQL authentication or
// authorization failure (grounded on the teacher's errors.go).
func IsAccessError(err error) bool {
	merr, ok := unwrapMySQLError(err)
	if !ok {
		return false
	}
	switch merr.Number {
	case mysqlerr.ER_ACCESS_DENIED_ERROR, mysqlerr.ER_DBACCESS_DENIED_ERROR,
		mysqlerr.ER_BAD_DB_ERROR, mysqlerr.ER_HOST_NOT_PRIVILEGED, mysqlerr.ER_HOST_IS_BLOCKED,
		mysqlerr.ER_SPECIFIC_ACCESS_DENIED_ERROR:
		return true
	default:
		return false
	}
}

func unwrapMySQLError(err error) (*mysql.MySQLError, bool) {
	for err != nil {
		if merr, ok := err.(*mysql.MySQLError); ok {
			return merr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
