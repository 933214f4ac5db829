package sqlstorage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

type postgresConn struct {
	db *sql.DB
}

func (c *postgresConn) initTables() error {
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
				start_time      DOUBLE PRECISION NOT NULL,
				end_time        DOUBLE PRECISION NOT NULL,
				info            BYTEA NOT NULL,
				metadata        BYTEA NOT NULL
			);`,
		`CREATE INDEX IF NOT EXISTS index_sessions ON sessions(session_id, instance);`,
		`
			CREATE TABLE IF NOT EXISTS events
			(
				session_key     VARCHAR(200) NOT NULL REFERENCES sessions(session_key) ON DELETE CASCADE,
				idx             INT NOT NULL,
				event_type      INT NOT NULL,
				event_id        INT NOT NULL,
				ts              DOUBLE PRECISION NOT NULL,
				player_index    INT NOT NULL,
				target_index    INT NOT NULL,
				team_index      INT NOT NULL,
				round_number    INT NOT NULL,
				data            BYTEA NOT NULL,
				PRIMARY KEY (session_key, idx)
			);`,
		`
			CREATE TABLE IF NOT EXISTS snapshots
			(
				source          VARCHAR(200) NOT NULL,
				name            VARCHAR(200) NOT NULL,
				data            BYTEA NOT NULL,
				created_at      BIGINT NOT NULL,
				PRIMARY KEY (source, name)
			);`)
}

func (c *postgresConn) dropTables() error {
	return execAll(c.db,
		"DROP TABLE IF EXISTS snapshots CASCADE;",
		"DROP TABLE IF EXISTS events CASCADE;",
		"DROP TABLE IF EXISTS sessions CASCADE;")
}

func (c *postgresConn) rebind(q string) string {
	return makeQuery(q)
}

func (c *postgresConn) upsert(table string, keys, cols []string) string {
	updates := make([]string, 0, len(cols))
	for _, col := range valueColumns(keys, cols) {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(keys, ", "), strings.Join(updates, ", "))
}

func (c *postgresConn) likeEscape() string {
	return ` ESCAPE '\'`
}

func (c *postgresConn) conn() *sql.DB {
	return c.db
}

func newPostgresConnection(opts Options) (dbConn, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		opts.Host, opts.Port, opts.User, opts.Password, opts.Database)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(MaxOpenConnections)
	db.SetMaxIdleConns(MaxIdleConnections)
	return &postgresConn{db: db}, nil
}

func makeQuery(q string) string {
	counter := 1
	for i := strings.Index(q, "?"); i >= 0; i = strings.Index(q, "?") {
		q = strings.Replace(q, "?", fmt.Sprintf("$%d", counter), 1)
		counter++
	}
	return q
}
