package sqlstorage

import "database/sql"

// dbConn hides the dialect differences between the supported drivers.
// Queries are written with '?' placeholders and rebound per dialect.
type dbConn interface {
	initTables() error
	dropTables() error
	rebind(q string) string
	// upsert returns an insert of cols into table that updates the row on a conflict on keys
	upsert(table string, keys, cols []string) string
	// likeEscape is appended to LIKE clauses so '\' escapes wildcards
	likeEscape() string
	conn() *sql.DB
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// session wraps a connection or a transaction with the dialect's rebinding
type session struct {
	db dbConn
	ex execer
}

func (s session) exec(q string, args ...interface{}) error {
	_, err := s.ex.Exec(s.db.rebind(q), args...)
	return err
}

func (s session) query(q string, args ...interface{}) (*sql.Rows, error) {
	return s.ex.Query(s.db.rebind(q), args...)
}

func (s session) queryOne(q string, args ...interface{}) *sql.Row {
	return s.ex.QueryRow(s.db.rebind(q), args...)
}

func execAll(db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// valueColumns returns the columns of cols that are not part of the key
func valueColumns(keys, cols []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	values := make([]string, 0, len(cols))
	for _, col := range cols {
		if !isKey[col] {
			values = append(values, col)
		}
	}
	return values
}
