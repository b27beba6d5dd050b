package database

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Queryable is the union of the sqlx methods the stores require; both
// *sqlx.DB and *sqlx.Tx satisfy it, allowing store methods to run inside
// or outside of a transaction at the callers discretion.
type Queryable interface {
	sqlx.Ext
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
}

var (
	_ Queryable = &sqlx.DB{}
	_ Queryable = &sqlx.Tx{}
)
