package sampler

import (
	"fmt"
	"strings"
)

// Dialect is the closed set of supported database engines. Each carries its
// own identifier quoting and sampling query shape; adding one means
// extending every switch below, checked at compile time by the exhaustive
// default panic in tests.
type Dialect int

const (
	SQLServer Dialect = iota
	Postgres
	MySQL
	DuckDB
)

// bernoulliPercent is the row-probability used for dialects with true
// Bernoulli sampling. The LIMIT still caps the result size.
const bernoulliPercent = 10

func (d Dialect) String() string {
	switch d {
	case SQLServer:
		return "sqlserver"
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case DuckDB:
		return "duckdb"
	}
	return "unknown"
}

// DriverName returns the database/sql driver this dialect connects with.
func (d Dialect) DriverName() string {
	switch d {
	case SQLServer:
		return "sqlserver"
	case Postgres:
		return "pgx"
	case MySQL:
		return "mysql"
	case DuckDB:
		return "duckdb"
	}
	return ""
}

// ParseDialect resolves a configured engine name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "duckdb":
		return DuckDB, nil
	}
	return 0, fmt.Errorf("unsupported database dialect %q", name)
}

// QuoteIdent quotes a single identifier, escaping embedded closers.
func (d Dialect) QuoteIdent(ident string) string {
	switch d {
	case SQLServer:
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case Postgres, DuckDB:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return ident
}

func (d Dialect) quoteTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// SampleQuery synthesizes the bounded sampling query for one table. Every
// dialect caps the row count; the sampling mechanism differs per engine:
// TOP for SQL Server, TABLESAMPLE BERNOULLI for Postgres, ORDER BY RAND()
// as MySQL's order-random fallback, USING SAMPLE for DuckDB.
func (d Dialect) SampleQuery(schema, table string, columns []string, limit int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}
	cols := strings.Join(quoted, ", ")
	from := d.quoteTable(schema, table)

	switch d {
	case SQLServer:
		return fmt.Sprintf("SELECT TOP (%d) %s FROM %s", limit, cols, from)
	case Postgres:
		return fmt.Sprintf("SELECT %s FROM %s TABLESAMPLE BERNOULLI(%d) LIMIT %d",
			cols, from, bernoulliPercent, limit)
	case MySQL:
		return fmt.Sprintf("SELECT %s FROM %s ORDER BY RAND() LIMIT %d", cols, from, limit)
	case DuckDB:
		return fmt.Sprintf("SELECT %s FROM %s USING SAMPLE %d ROWS", cols, from, limit)
	}
	return ""
}
