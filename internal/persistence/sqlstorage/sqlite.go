package sqlstorage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteConn struct {
	db *sql.DB
}

func (c *sqliteConn) initTables() error {
	return execAll(c.db,
		"PRAGMA foreign_keys = ON;", `
			CREATE TABLE IF NOT EXISTS sessions
			(
				session_key     TEXT PRIMARY KEY,
				session_id      TEXT NOT NULL,
				instance        INTEGER NOT NULL,
				format_version  INTEGER NOT NULL,
				big_endian      INTEGER NOT NULL,
				title           INTEGER NOT NULL,
				map_name        TEXT NOT NULL,
				start_time      REAL NOT NULL,
				end_time        REAL NOT NULL,
				info            BLOB NOT NULL,
				metadata        BLOB NOT NULL
			);`,
		`CREATE INDEX IF NOT EXISTS index_sessions ON sessions(session_id, instance);`, `
			CREATE TABLE IF NOT EXISTS events
			(
				session_key     TEXT NOT NULL REFERENCES sessions(session_key) ON DELETE CASCADE,
				idx             INTEGER NOT NULL,
				event_type      INTEGER NOT NULL,
				event_id        INTEGER NOT NULL,
				ts              REAL NOT NULL,
				player_index    INTEGER NOT NULL,
				target_index    INTEGER NOT NULL,
				team_index      INTEGER NOT NULL,
				round_number    INTEGER NOT NULL,
				data            BLOB NOT NULL,
				PRIMARY KEY (session_key, idx)
			);`, `
			CREATE TABLE IF NOT EXISTS snapshots
			(
				source          TEXT NOT NULL,
				name            TEXT NOT NULL,
				data            BLOB NOT NULL,
				created_at      INTEGER NOT NULL,
				PRIMARY KEY (source, name)
			);`)
}

func (c *sqliteConn) dropTables() error {
	return execAll(c.db,
		"DROP TABLE IF EXISTS snapshots;",
		"DROP TABLE IF EXISTS events;",
		"DROP TABLE IF EXISTS sessions;")
}

func (c *sqliteConn) rebind(q string) string {
	return q
}

func (c *sqliteConn) upsert(table string, keys, cols []string) string {
	updates := make([]string, 0, len(cols))
	for _, col := range valueColumns(keys, cols) {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(keys, ", "), strings.Join(updates, ", "))
}

func (c *sqliteConn) likeEscape() string {
	return ` ESCAPE '\'`
}

func (c *sqliteConn) conn() *sql.DB {
	return c.db
}

// newSQLiteConnection opens the database file named by Options.Database.
// SQLite allows one writer, so the pool holds a single connection.
func newSQLiteConnection(opts Options) (dbConn, error) {
	db, err := sql.Open("sqlite", opts.Database)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &sqliteConn{db: db}, nil
}
