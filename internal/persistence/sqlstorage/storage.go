// Package sqlstorage mirrors sessions and their event rows into a SQL database.
package sqlstorage

import (
	"database/sql"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	p "github.com/snowflk/statsdb/internal/persistence"
)

const MaxOpenConnections = 20
const MaxIdleConnections = 0

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown sql driver")

var (
	sessionKeys    = []string{"session_key"}
	sessionColumns = []string{"session_key", "session_id", "instance", "format_version", "big_endian",
		"title", "map_name", "start_time", "end_time", "info", "metadata"}
	eventColumns = []string{"session_key", "idx", "event_type", "event_id", "ts",
		"player_index", "target_index", "team_index", "round_number", "data"}
	snapshotKeys    = []string{"source", "name"}
	snapshotColumns = []string{"source", "name", "data", "created_at"}
)

// maxBatchRows keeps a multi row insert under the placeholder limits of every driver
const maxBatchRows = 500

type storage struct {
	db dbConn
}

type Options struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	// Database is the database name, or the file path for sqlite
	Database string
}

// New connects and creates the tables when missing
func New(options Options) (p.Storage, error) {
	s, err := newStorage(options)
	if err != nil {
		return nil, err
	}
	if err := s.db.initTables(); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "init tables")
	}
	return s, nil
}

func newStorage(options Options) (*storage, error) {
	var db dbConn
	var err error

	switch options.Driver {
	case DriverPostgres:
		db, err = newPostgresConnection(options)
	case DriverMySQL:
		db, err = newMySQLConnection(options)
	case DriverSQLite:
		db, err = newSQLiteConnection(options)
	default:
		return nil, errors.Wrap(ErrUnknownDriver, options.Driver)
	}
	if err != nil {
		return nil, err
	}
	return &storage{db: db}, nil
}

func (s *storage) session() session {
	return session{db: s.db, ex: s.db.conn()}
}

func (s *storage) inTx(fn func(tx session) error) error {
	tx, err := s.db.conn().Begin()
	if err != nil {
		return err
	}
	if err := fn(session{db: s.db, ex: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *storage) SaveSession(session p.RawSession) error {
	if err := p.ValidateKey(session.Key); err != nil {
		return err
	}
	return s.session().exec(s.db.upsert("sessions", sessionKeys, sessionColumns),
		session.Key, session.SessionID, session.Instance, session.FormatVersion, boolToInt(session.BigEndian),
		session.Title, session.MapName, float64(session.StartTime), float64(session.EndTime),
		nonNil(session.Info), nonNil(session.Metadata))
}

func (s *storage) GetSession(key string) (p.RawSession, error) {
	var session p.RawSession
	if err := p.ValidateKey(key); err != nil {
		return session, err
	}
	row := s.session().queryOne(`
			SELECT session_key, session_id, instance, format_version, big_endian,
				title, map_name, start_time, end_time, info, metadata
			FROM sessions WHERE session_key = ?;`, key)
	var bigEndian int
	var start, end float64
	err := row.Scan(&session.Key, &session.SessionID, &session.Instance, &session.FormatVersion, &bigEndian,
		&session.Title, &session.MapName, &start, &end, &session.Info, &session.Metadata)
	if err == sql.ErrNoRows {
		return session, p.ErrSessionNotExist
	}
	if err != nil {
		return session, err
	}
	session.BigEndian = bigEndian != 0
	session.StartTime = float32(start)
	session.EndTime = float32(end)
	return session, nil
}

func (s *storage) FindSessions(pattern p.SearchPattern) ([]string, error) {
	keys := make([]string, 0)
	if !pattern.Valid() {
		return keys, nil
	}
	rows, err := s.session().query("SELECT session_key FROM sessions WHERE session_key LIKE ?"+s.db.likeEscape()+";",
		pattern.LikeString())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, err
		}
		// LIKE is case insensitive on some servers
		if pattern.Match(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, rows.Err()
}

func (s *storage) Instances(sessionID string) ([]int32, error) {
	rows, err := s.session().query("SELECT instance FROM sessions WHERE session_id = ? ORDER BY instance;", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	instances := make([]int32, 0)
	for rows.Next() {
		var instance int32
		if err = rows.Scan(&instance); err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func (s *storage) DeleteSession(key string) error {
	if err := p.ValidateKey(key); err != nil {
		return err
	}
	return s.inTx(func(tx session) error {
		if err := checkSessionExistence(tx, key); err != nil {
			return err
		}
		if err := tx.exec("DELETE FROM events WHERE session_key = ?;", key); err != nil {
			return err
		}
		if err := tx.exec("DELETE FROM snapshots WHERE source = ?;", key); err != nil {
			return err
		}
		return tx.exec("DELETE FROM sessions WHERE session_key = ?;", key)
	})
}

func (s *storage) AppendEvents(key string, events []p.RawEvent) error {
	if err := p.ValidateKey(key); err != nil {
		return err
	}
	if len(events) == 0 {
		return p.ErrDataEmpty
	}
	seen := make(map[int]bool, len(events))
	indices := make([]interface{}, 0, len(events))
	for _, e := range events {
		if seen[e.Index] {
			return errors.Wrapf(p.ErrEventExists, "index %d appears twice in batch", e.Index)
		}
		seen[e.Index] = true
		indices = append(indices, e.Index)
	}

	return s.inTx(func(tx session) error {
		if err := checkSessionExistence(tx, key); err != nil {
			return err
		}
		for start := 0; start < len(indices); start += maxBatchRows {
			end := start + maxBatchRows
			if end > len(indices) {
				end = len(indices)
			}
			var counter int
			row := tx.queryOne("SELECT COUNT(*) FROM events WHERE session_key = ? AND idx IN ("+placeholders(end-start)+");",
				append([]interface{}{key}, indices[start:end]...)...)
			if err := row.Scan(&counter); err != nil {
				return err
			}
			if counter > 0 {
				return p.ErrEventExists
			}
		}

		for start := 0; start < len(events); start += maxBatchRows {
			end := start + maxBatchRows
			if end > len(events) {
				end = len(events)
			}
			queryPlaceholders := make([]string, 0, end-start)
			queryArgs := make([]interface{}, 0, (end-start)*len(eventColumns))
			for _, e := range events[start:end] {
				queryPlaceholders = append(queryPlaceholders, "("+placeholders(len(eventColumns))+")")
				queryArgs = append(queryArgs, key, e.Index, int(e.EventType), int(e.EventID), float64(e.Timestamp),
					e.PlayerIndex, e.TargetIndex, e.TeamIndex, e.Round, nonNil(e.Payload))
			}
			err := tx.exec("INSERT INTO events ("+strings.Join(eventColumns, ", ")+") VALUES "+
				strings.Join(queryPlaceholders, ", ")+";", queryArgs...)
			if err != nil {
				log.WithField("session", key).Errorf("Failed to insert events: %v", err)
				return err
			}
		}
		return nil
	})
}

const selectEvents = `
			SELECT idx, event_type, event_id, ts, player_index, target_index, team_index, round_number, data
			FROM events WHERE session_key = ?`

func (s *storage) GetEvents(key string, offset, limit uint64) ([]p.RawEvent, error) {
	if err := p.ValidateKey(key); err != nil {
		return nil, err
	}
	query, args := addOffsetLimit(selectEvents+" ORDER BY idx", []interface{}{key}, offset, limit)
	return s.queryRawEvents(query, args...)
}

func (s *storage) GetEventsByIndex(key string, indices []int) ([]p.RawEvent, error) {
	if err := p.ValidateKey(key); err != nil {
		return nil, err
	}
	unique := make(map[int]bool, len(indices))
	args := make([]interface{}, 0, len(indices))
	for _, i := range indices {
		if !unique[i] {
			unique[i] = true
			args = append(args, i)
		}
	}
	events := make([]p.RawEvent, 0, len(args))
	for start := 0; start < len(args); start += maxBatchRows {
		end := start + maxBatchRows
		if end > len(args) {
			end = len(args)
		}
		batch, err := s.queryRawEvents(selectEvents+" AND idx IN ("+placeholders(end-start)+");",
			append([]interface{}{key}, args[start:end]...)...)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Index < events[j].Index })
	return events, nil
}

func (s *storage) CountEvents(key string) (uint64, error) {
	if err := p.ValidateKey(key); err != nil {
		return 0, err
	}
	var counter uint64
	err := s.session().queryOne("SELECT COUNT(*) FROM events WHERE session_key = ?;", key).Scan(&counter)
	return counter, err
}

func (s *storage) SaveSnapshot(source, name string, data []byte) error {
	if err := p.ValidateSnapshot(source, name); err != nil {
		return err
	}
	return s.session().exec(s.db.upsert("snapshots", snapshotKeys, snapshotColumns),
		source, name, nonNil(data), time.Now().Unix())
}

func (s *storage) GetSnapshot(source, name string) (p.RawSnapshot, error) {
	var snapshot p.RawSnapshot
	if err := p.ValidateSnapshot(source, name); err != nil {
		return snapshot, err
	}
	var createdAt int64
	row := s.session().queryOne("SELECT source, name, data, created_at FROM snapshots WHERE source = ? AND name = ?;", source, name)
	err := row.Scan(&snapshot.Source, &snapshot.Name, &snapshot.Payload, &createdAt)
	if err == sql.ErrNoRows {
		return snapshot, p.ErrSnapshotNotExist
	}
	if err != nil {
		return snapshot, err
	}
	snapshot.Timestamp = time.Unix(createdAt, 0)
	return snapshot, nil
}

func (s *storage) FindSnapshots(source string, pattern p.SearchPattern) ([]string, error) {
	names := make([]string, 0)
	if p.Blank(source) {
		return nil, p.ErrSnapshotSourceEmpty
	}
	if !pattern.Valid() {
		return names, nil
	}
	rows, err := s.session().query("SELECT name FROM snapshots WHERE source = ? AND name LIKE ?"+s.db.likeEscape()+";",
		source, pattern.LikeString())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		if pattern.Match(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, rows.Err()
}

func (s *storage) Close() error {
	return s.db.conn().Close()
}

func checkSessionExistence(tx session, key string) error {
	row := tx.queryOne("SELECT COUNT(*) FROM sessions WHERE session_key = ?;", key)
	var counter int
	if err := row.Scan(&counter); err != nil {
		return err
	}
	if counter == 0 {
		return p.ErrSessionNotExist
	}
	return nil
}

func addOffsetLimit(q string, args []interface{}, offset, limit uint64) (string, []interface{}) {
	if limit == 0 || limit > math.MaxInt64 {
		limit = math.MaxInt64
	}
	q += " LIMIT ?"
	args = append(args, int64(limit))
	q += " OFFSET ?"
	args = append(args, int64(offset))
	return q, args
}

func (s *storage) queryRawEvents(query string, args ...interface{}) ([]p.RawEvent, error) {
	rows, err := s.session().query(query, args...)
	if err != nil {
		log.Errorf("Failed to query events: %v", err)
		return nil, err
	}
	defer rows.Close()

	rawEvents := make([]p.RawEvent, 0)
	for rows.Next() {
		var rawEvent p.RawEvent
		var eventType, eventID int
		var ts float64
		if err := rows.Scan(&rawEvent.Index, &eventType, &eventID, &ts, &rawEvent.PlayerIndex,
			&rawEvent.TargetIndex, &rawEvent.TeamIndex, &rawEvent.Round, &rawEvent.Payload); err != nil {
			return nil, err
		}
		rawEvent.EventType = uint16(eventType)
		rawEvent.EventID = uint16(eventID)
		rawEvent.Timestamp = float32(ts)
		rawEvents = append(rawEvents, rawEvent)
	}
	return rawEvents, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// nonNil stores empty blobs as zero length values, NOT NULL columns reject nil
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
