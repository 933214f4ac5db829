// Package localdb indexes recorded sessions for queries across one or many
// sessions, locally and in an optional remote record store.
package localdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/aggregate"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/gamestate"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
	"github.com/snowflk/statsdb/internal/metrics"
	"github.com/snowflk/statsdb/internal/persistence"
)

// AggregatesSnapshot names the snapshot holding a session's aggregate report
const AggregatesSnapshot = "aggregates"

const (
	sourceLocal  = "local"
	sourceRemote = "remote"
	pushBatch    = 1000
)

var ErrNoRemote = errors.New("no remote store configured")

type Options struct {
	// Dir holds the catalogue and the position files
	Dir      string
	Registry *events.Registry
	// Mapping is used for the aggregate report of added files, DefaultMapping when nil
	Mapping *aggregate.Mapping
	// Remote is the optional mirror. It is closed with the database.
	Remote persistence.Storage
	// CacheTTL is how long built indexes stay in memory
	CacheTTL time.Duration
}

type Database struct {
	opts      Options
	registry  *events.Registry
	catalogue *Catalogue
	indexes   *IndexManager
}

// SessionSummary describes a local session
type SessionSummary struct {
	Key       string  `json:"key"`
	SessionID string  `json:"session_id"`
	Instance  int32   `json:"instance"`
	MapName   string  `json:"map"`
	StartTime float32 `json:"start"`
	EndTime   float32 `json:"end"`
	Events    uint64  `json:"events"`
	Path      string  `json:"path,omitempty"`
}

func Open(opts Options) (*Database, error) {
	if opts.Registry == nil {
		opts.Registry = events.DefaultRegistry()
	}
	catalogue, err := OpenCatalogue(opts.Dir)
	if err != nil {
		return nil, err
	}
	return &Database{
		opts:      opts,
		registry:  opts.Registry,
		catalogue: catalogue,
		indexes:   NewIndexManager(opts.Dir, opts.CacheTTL),
	}, nil
}

// LocalKey names a local session, it is also the name of its position file
func LocalKey(guid string, instance int32) string {
	return fmt.Sprintf("%s_%d", guid, instance)
}

// IsRemote reports whether a session ID routes to the remote store
func IsRemote(sessionID string) bool {
	return strings.Contains(sessionID, ":")
}

func (db *Database) Catalogue() *Catalogue {
	return db.catalogue
}

func (db *Database) HasRemote() bool {
	return db.opts.Remote != nil
}

func (db *Database) store(sessionID string) (persistence.Storage, string, error) {
	if !IsRemote(sessionID) {
		return db.catalogue, sourceLocal, nil
	}
	if _, _, _, err := statsfile.ParseSessionKey(sessionID); err != nil {
		return nil, "", err
	}
	if db.opts.Remote == nil {
		return nil, "", errors.Wrap(ErrNoRemote, sessionID)
	}
	return db.opts.Remote, sourceRemote, nil
}

func rawSession(key string, r *statsfile.Reader) (persistence.RawSession, error) {
	version := r.Header().FormatVersion
	s := r.Session()
	info, err := statsfile.EncodeSession(*s, version, r.Order())
	if err != nil {
		return persistence.RawSession{}, err
	}
	meta, err := statsfile.EncodeMetadata(r.Metadata(), version, r.Order())
	if err != nil {
		return persistence.RawSession{}, err
	}
	return persistence.RawSession{
		Key:           key,
		SessionID:     s.GUID,
		Instance:      s.SessionInstance,
		FormatVersion: version,
		BigEndian:     r.Order() == binary.BigEndian,
		Title:         s.AppTitleID,
		MapName:       s.MapName,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Info:          info,
		Metadata:      meta,
	}, nil
}

func appendBatches(store persistence.EventKeeper, key string, rows []persistence.RawEvent) error {
	for start := 0; start < len(rows); start += pushBatch {
		end := start + pushBatch
		if end > len(rows) {
			end = len(rows)
		}
		if err := store.AppendEvents(key, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// AddFile indexes a stats file and returns its local session key. Adding a
// session again replaces it.
func (db *Database) AddFile(path string) (string, error) {
	r := statsfile.NewReader(db.registry)
	if err := r.Open(path); err != nil {
		return "", err
	}
	defer r.Close()

	tracker := gamestate.NewTracker()
	indexer := NewIndexer(tracker)
	aggregator := aggregate.New(tracker, db.opts.Mapping)
	r.RegisterHandler(tracker)
	r.RegisterHandler(indexer)
	r.RegisterHandler(aggregator)
	if err := r.ProcessStream(); err != nil {
		return "", errors.Wrapf(err, "process %s", path)
	}

	key := LocalKey(r.SessionID(), r.Session().SessionInstance)
	session, err := rawSession(key, r)
	if err != nil {
		return "", err
	}
	report, err := json.Marshal(aggregator.Report())
	if err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	if err := db.Remove(key); err != nil && errors.Cause(err) != persistence.ErrSessionNotExist {
		return "", err
	}
	if err := db.catalogue.SaveSession(session); err != nil {
		return "", err
	}
	if err := appendBatches(db.catalogue, key, indexer.Rows()); err != nil {
		return "", err
	}
	if err := db.catalogue.SaveSnapshot(key, AggregatesSnapshot, report); err != nil {
		return "", err
	}
	if err := db.catalogue.SetFile(key, path); err != nil {
		return "", err
	}
	if err := db.indexes.WritePositions(key, indexer.Positions()); err != nil {
		return "", err
	}
	db.indexes.PutIndex(indexer.Index(key))

	metrics.SessionIndexed(sourceLocal)
	log.WithFields(log.Fields{
		"session": key,
		"path":    path,
		"events":  len(indexer.Rows()),
	}).Info("Session added")
	return key, nil
}

// Remove drops a local session, its rows and its position file
func (db *Database) Remove(key string) error {
	if err := db.indexes.Clear(key); err != nil {
		return err
	}
	return db.catalogue.DeleteSession(key)
}

// Sessions lists the local sessions ordered by key
func (db *Database) Sessions() ([]SessionSummary, error) {
	sessions, err := db.catalogue.Sessions()
	if err != nil {
		return nil, err
	}
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		n, err := db.catalogue.CountEvents(s.Key)
		if err != nil {
			return nil, err
		}
		path, _, err := db.catalogue.File(s.Key)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, SessionSummary{
			Key:       s.Key,
			SessionID: s.SessionID,
			Instance:  s.Instance,
			MapName:   s.MapName,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Events:    n,
			Path:      path,
		})
	}
	return summaries, nil
}

// RemoteSessions lists the keys of remote sessions matching pattern
func (db *Database) RemoteSessions(pattern persistence.SearchPattern) ([]string, error) {
	if db.opts.Remote == nil {
		return nil, ErrNoRemote
	}
	return db.opts.Remote.FindSessions(pattern)
}

// Index returns the session index of a local or remote session
func (db *Database) Index(sessionID string) (*SessionIndex, error) {
	store, _, err := db.store(sessionID)
	if err != nil {
		return nil, err
	}
	return db.indexes.Index(sessionID, func() (*SessionIndex, error) {
		if _, err := store.GetSession(sessionID); err != nil {
			return nil, errors.Wrap(err, sessionID)
		}
		rows, err := store.GetEvents(sessionID, 0, 0)
		if err != nil {
			return nil, err
		}
		return NewSessionIndex(sessionID, rows), nil
	})
}

// Query runs q against every session it names
func (db *Database) Query(q SearchQuery) (RecordSet, error) {
	rs := RecordSet{Results: make([]SessionResult, 0, len(q.SessionIDs))}
	for _, id := range q.SessionIDs {
		_, source, err := db.store(id)
		if err != nil {
			return rs, err
		}
		index, err := db.Index(id)
		if err != nil {
			return rs, err
		}
		result := index.Query(q)
		metrics.QueryExecuted(source, len(result))
		rs.Results = append(rs.Results, SessionResult{SessionID: id, Events: result})
	}
	return rs, nil
}

func (db *Database) metadata(store persistence.Storage, sessionID string) (persistence.RawSession, *statsfile.Metadata, error) {
	session, err := store.GetSession(sessionID)
	if err != nil {
		return session, nil, errors.Wrap(err, sessionID)
	}
	meta, err := db.indexes.Metadata(sessionID, func() (*statsfile.Metadata, error) {
		return statsfile.DecodeMetadata(session.Metadata, session.FormatVersion, statsfile.OrderOf(session.BigEndian))
	})
	return session, meta, err
}

// VisitEntries decodes every event of rs and hands it to v in record set
// order. Local sessions are read from their stats file through the position
// index, sessions without a readable file from their stored rows.
func (db *Database) VisitEntries(rs RecordSet, v Visitor) error {
	for _, result := range rs.Results {
		if len(result.Events) == 0 {
			continue
		}
		var err error
		if IsRemote(result.SessionID) {
			err = db.visitRows(result, v)
		} else {
			err = db.visitLocal(result, v)
		}
		if err == ErrStopVisit {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) visitLocal(result SessionResult, v Visitor) error {
	path, ok, err := db.catalogue.File(result.SessionID)
	if err != nil {
		return err
	}
	if ok {
		if _, err := os.Stat(path); err != nil {
			log.WithFields(log.Fields{"session": result.SessionID, "path": path}).
				Warn("Stats file is not readable, visiting stored rows")
			ok = false
		}
	}
	if !ok {
		return db.visitRows(result, v)
	}

	positions, err := db.indexes.Positions(result.SessionID)
	if err != nil {
		return err
	}
	r := statsfile.NewReader(db.registry)
	if err := r.Open(path); err != nil {
		return err
	}
	defer r.Close()

	for _, index := range result.Events {
		if index < 0 || index >= len(positions) || positions[index] == NoPosition {
			return errors.Errorf("session %s has no position for event %d", result.SessionID, index)
		}
		rec, payload, err := r.ReadEventAt(positions[index])
		if err != nil {
			return err
		}
		err = v.VisitEntry(&Entry{
			SessionID: result.SessionID,
			Index:     index,
			Header:    rec.Header,
			Payload:   payload,
			Metadata:  r.Metadata(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) visitRows(result SessionResult, v Visitor) error {
	store, _, err := db.store(result.SessionID)
	if err != nil {
		return err
	}
	session, meta, err := db.metadata(store, result.SessionID)
	if err != nil {
		return err
	}
	rows, err := store.GetEventsByIndex(result.SessionID, result.Events)
	if err != nil {
		return err
	}
	order := statsfile.OrderOf(session.BigEndian)
	for _, row := range rows {
		t := events.EventType(row.EventType)
		payload, err := statsfile.DecodePayload(db.registry, t, row.Payload, session.FormatVersion, order)
		if err != nil {
			return errors.Wrapf(err, "session %s event %d", result.SessionID, row.Index)
		}
		err = v.VisitEntry(&Entry{
			SessionID: result.SessionID,
			Index:     row.Index,
			Header: events.RecordHeader{
				EventType: t,
				EventID:   events.EventID(row.EventID),
				TimeStamp: row.Timestamp,
				DataSize:  uint16(len(row.Payload)),
			},
			Payload:  payload,
			Metadata: meta,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Push copies a local session with its rows and aggregate report to the
// remote store, replacing the remote copy. It returns the remote key.
func (db *Database) Push(sessionID string) (string, error) {
	if db.opts.Remote == nil {
		return "", ErrNoRemote
	}
	if IsRemote(sessionID) {
		return "", errors.Errorf("%s is not a local session", sessionID)
	}
	session, err := db.catalogue.GetSession(sessionID)
	if err != nil {
		return "", errors.Wrap(err, sessionID)
	}
	rows, err := db.catalogue.GetEvents(sessionID, 0, 0)
	if err != nil {
		return "", err
	}

	remote := db.opts.Remote
	session.Key = statsfile.FormatSessionKey(session.SessionID, session.Instance)
	if err := remote.DeleteSession(session.Key); err != nil && errors.Cause(err) != persistence.ErrSessionNotExist {
		return "", err
	}
	if err := remote.SaveSession(session); err != nil {
		return "", err
	}
	if err := appendBatches(remote, session.Key, rows); err != nil {
		return "", err
	}
	snapshot, err := db.catalogue.GetSnapshot(sessionID, AggregatesSnapshot)
	switch {
	case err == nil:
		if err := remote.SaveSnapshot(session.Key, AggregatesSnapshot, snapshot.Payload); err != nil {
			return "", err
		}
	case errors.Cause(err) != persistence.ErrSnapshotNotExist:
		return "", err
	}
	if err := db.indexes.Clear(session.Key); err != nil {
		return "", err
	}

	metrics.SessionIndexed(sourceRemote)
	log.WithFields(log.Fields{
		"session": sessionID,
		"remote":  session.Key,
		"events":  len(rows),
	}).Info("Session pushed")
	return session.Key, nil
}

// Aggregates returns the aggregate report stored with a session
func (db *Database) Aggregates(sessionID string) ([]aggregate.Entry, error) {
	store, _, err := db.store(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot, err := store.GetSnapshot(sessionID, AggregatesSnapshot)
	if err != nil {
		return nil, errors.Wrap(err, sessionID)
	}
	var entries []aggregate.Entry
	if err := json.Unmarshal(snapshot.Payload, &entries); err != nil {
		return nil, errors.Wrap(persistence.ErrDataInvalid, err.Error())
	}
	return entries, nil
}

// Metadata returns the footer dictionaries of a session
func (db *Database) Metadata(sessionID string) (*statsfile.Metadata, error) {
	store, _, err := db.store(sessionID)
	if err != nil {
		return nil, err
	}
	_, meta, err := db.metadata(store, sessionID)
	return meta, err
}

func (db *Database) Close() error {
	db.indexes.Shutdown()
	err := db.catalogue.Close()
	if db.opts.Remote != nil {
		if rerr := db.opts.Remote.Close(); err == nil {
			err = rerr
		}
	}
	return err
}
