package sqlstorage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

type mysqlConn struct {
	db *sql.DB
}

func (c *mysqlConn) initTables() error {
	return execAll(c.db, `
			CREATE TABLE IF NOT EXISTS sessions
			(
				session_key     VARCHAR(200) PRIMARY KEY,
				session_id      VARCHAR(100) NOT NULL,
				instance        INT NOT NULL,
				format_version  INT NOT NULL,
				big_endian      SMALLINT NOT NULL,
				title           INT NOT NULL,
				map_name        VARCHAR(200) NOT NULL,
				start_time      DOUBLE NOT NULL,
				end_time        DOUBLE NOT NULL,
				info            MEDIUMBLOB NOT NULL,
				metadata        MEDIUMBLOB NOT NULL,
				INDEX index_sessions (session_id, instance)
			);`, `
			CREATE TABLE IF NOT EXISTS events
			(
				session_key     VARCHAR(200) NOT NULL,
				idx             INT NOT NULL,
				event_type      INT NOT NULL,
				event_id        INT NOT NULL,
				ts              DOUBLE NOT NULL,
				player_index    INT NOT NULL,
				target_index    INT NOT NULL,
				team_index      INT NOT NULL,
				round_number    INT NOT NULL,
				data            BLOB NOT NULL,
				PRIMARY KEY (session_key, idx),
				FOREIGN KEY (session_key) REFERENCES sessions(session_key) ON DELETE CASCADE
			);`, `
			CREATE TABLE IF NOT EXISTS snapshots
			(
				source          VARCHAR(200) NOT NULL,
				name            VARCHAR(200) NOT NULL,
				data            MEDIUMBLOB NOT NULL,
				created_at      BIGINT NOT NULL,
				PRIMARY KEY (source, name)
			);`)
}

func (c *mysqlConn) dropTables() error {
	return execAll(c.db,
		"DROP TABLE IF EXISTS snapshots;",
		"DROP TABLE IF EXISTS events;",
		"DROP TABLE IF EXISTS sessions;")
}

func (c *mysqlConn) rebind(q string) string {
	return q
}

func (c *mysqlConn) upsert(table string, keys, cols []string) string {
	updates := make([]string, 0, len(cols))
	for _, col := range valueColumns(keys, cols) {
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(updates, ", "))
}

// likeEscape is empty, backslash is MySQL's default LIKE escape
func (c *mysqlConn) likeEscape() string {
	return ""
}

func (c *mysqlConn) conn() *sql.DB {
	return c.db
}

func newMySQLConnection(opts Options) (dbConn, error) {
	connStr := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		opts.User, opts.Password, opts.Host, opts.Port, opts.Database)
	db, err := sql.Open("mysql", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(MaxOpenConnections)
	db.SetMaxIdleConns(MaxIdleConnections)
	return &mysqlConn{db: db}, nil
}
