// Package sql implements the dialect.Driver interface on top of
// database/sql, together with the statement builders used by tabula.
//
// # Builder Types
//
//   - Builder: Low-level statement builder with identifier quoting and placeholders
//   - InsertBuilder: INSERT statement builder with RETURNING support (Postgres)
//   - UpdateBuilder: UPDATE statement builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE statement builder with WHERE predicates
//   - Selector: SELECT builder with an inner join, ordering and a limit
//
// # Dialect Support
//
// Identifiers, placeholders and literals adapt to the dialect:
//
//	import "github.com/syssam/tabula/dialect"
//
//	// UPDATE "users" SET "name" = $1 WHERE "id" = $2
//	sql.Dialect(dialect.Postgres).Update("users").Set("name", "a8m").Where(sql.EQ("id", 1))
//
//	// UPDATE `users` SET `name` = ? WHERE `id` = ?
//	sql.Dialect(dialect.MySQL).Update("users").Set("name", "a8m").Where(sql.EQ("id", 1))
//
// # Predicates
//
//	sql.EQ("name", "john")               // "name" = ?
//	sql.EQ("parent_id", nil)             // "parent_id" IS NULL
//	sql.In("status", "active", "paused") // "status" IN (?, ?)
//	sql.FieldsEQ(map[string]any{"a": 1, "b": 2})
//
// # Drivers
//
// Open and OpenConfig open a database with the driver registered for the
// dialect: modernc.org/sqlite, go-sql-driver/mysql, and pgx or lib/pq for
// Postgres. StatsDriver counts statements and reports slow ones,
// StatsCollector exports the counts to Prometheus, and DebugDriver logs
// every statement with its arguments inlined.
package sql
