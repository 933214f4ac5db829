package localdb

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	p "github.com/snowflk/statsdb/internal/persistence"
	"go.etcd.io/bbolt"
)

const (
	catalogueFileName = "catalogue.db"
	sizeEventRow      = 24
)

var (
	sessionBucketKey  = []byte("sessions")
	eventBucketKey    = []byte("events")
	snapshotBucketKey = []byte("snapshots")
	fileBucketKey     = []byte("files")
	ByteOrdering      = binary.LittleEndian
)

// Catalogue is the local record store. It keeps the session rows, the event
// rows each session index is built from, aggregate snapshots and the stats
// file every local session was read from.
type Catalogue struct {
	rootDir string
	store   *bbolt.DB
}

func OpenCatalogue(rootDir string) (*Catalogue, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create catalogue dir")
	}
	filePath := filepath.Join(rootDir, catalogueFileName)
	store, err := bbolt.Open(filePath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filePath)
	}
	err = store.Update(func(tx *bbolt.Tx) error {
		for _, key := range [][]byte{sessionBucketKey, eventBucketKey, snapshotBucketKey, fileBucketKey} {
			if _, err := tx.CreateBucketIfNotExists(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Catalogue{rootDir: rootDir, store: store}, nil
}

func (c *Catalogue) SaveSession(session p.RawSession) error {
	if err := p.ValidateKey(session.Key); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.store.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucketKey).Put([]byte(session.Key), data)
	})
}

func (c *Catalogue) GetSession(key string) (p.RawSession, error) {
	var session p.RawSession
	if err := p.ValidateKey(key); err != nil {
		return session, err
	}
	err := c.store.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucketKey).Get([]byte(key))
		if data == nil {
			return p.ErrSessionNotExist
		}
		return json.Unmarshal(data, &session)
	})
	return session, err
}

func (c *Catalogue) FindSessions(pattern p.SearchPattern) ([]string, error) {
	matches := make([]string, 0)
	if !pattern.Valid() {
		return matches, nil
	}
	err := c.store.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucketKey).ForEach(func(k, v []byte) error {
			kStr := string(k)
			if pattern.Match(kStr) {
				matches = append(matches, kStr)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (c *Catalogue) Instances(sessionID string) ([]int32, error) {
	instances := make([]int32, 0)
	err := c.store.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucketKey).ForEach(func(k, v []byte) error {
			var session p.RawSession
			if err := json.Unmarshal(v, &session); err != nil {
				return errors.Wrapf(err, "session %s", k)
			}
			if session.SessionID == sessionID {
				instances = append(instances, session.Instance)
			}
			return nil
		})
	})
	sort.Slice(instances, func(i, j int) bool { return instances[i] < instances[j] })
	return instances, err
}

// Sessions returns every stored session row ordered by key
func (c *Catalogue) Sessions() ([]p.RawSession, error) {
	sessions := make([]p.RawSession, 0)
	err := c.store.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucketKey).ForEach(func(k, v []byte) error {
			var session p.RawSession
			if err := json.Unmarshal(v, &session); err != nil {
				return errors.Wrapf(err, "session %s", k)
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	return sessions, err
}

func (c *Catalogue) DeleteSession(key string) error {
	if err := p.ValidateKey(key); err != nil {
		return err
	}
	return c.store.Update(func(tx *bbolt.Tx) error {
		k := []byte(key)
		sessions := tx.Bucket(sessionBucketKey)
		if sessions.Get(k) == nil {
			return p.ErrSessionNotExist
		}
		if err := sessions.Delete(k); err != nil {
			return err
		}
		for _, parent := range []*bbolt.Bucket{tx.Bucket(eventBucketKey), tx.Bucket(snapshotBucketKey)} {
			if parent.Bucket(k) == nil {
				continue
			}
			if err := parent.DeleteBucket(k); err != nil {
				return err
			}
		}
		return tx.Bucket(fileBucketKey).Delete(k)
	})
}

// SetFile remembers the stats file a local session was read from
func (c *Catalogue) SetFile(key, path string) error {
	if err := p.ValidateKey(key); err != nil {
		return err
	}
	return c.store.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(sessionBucketKey).Get([]byte(key)) == nil {
			return p.ErrSessionNotExist
		}
		return tx.Bucket(fileBucketKey).Put([]byte(key), []byte(path))
	})
}

// File returns the stats file of a session, or false for sessions stored without one
func (c *Catalogue) File(key string) (string, bool, error) {
	var path string
	err := c.store.View(func(tx *bbolt.Tx) error {
		path = string(tx.Bucket(fileBucketKey).Get([]byte(key)))
		return nil
	})
	return path, path != "", err
}

func eventKey(index int) []byte {
	key := make([]byte, 8)
	// big endian so that bbolt iterates rows in index order
	binary.BigEndian.PutUint64(key, uint64(index))
	return key
}

func encodeEventRow(e p.RawEvent) []byte {
	buf := make([]byte, sizeEventRow+len(e.Payload))
	ByteOrdering.PutUint16(buf[0:], e.EventType)
	ByteOrdering.PutUint16(buf[2:], e.EventID)
	ByteOrdering.PutUint32(buf[4:], math.Float32bits(e.Timestamp))
	ByteOrdering.PutUint32(buf[8:], uint32(int32(e.PlayerIndex)))
	ByteOrdering.PutUint32(buf[12:], uint32(int32(e.TargetIndex)))
	ByteOrdering.PutUint32(buf[16:], uint32(int32(e.TeamIndex)))
	ByteOrdering.PutUint32(buf[20:], uint32(int32(e.Round)))
	copy(buf[sizeEventRow:], e.Payload)
	return buf
}

func decodeEventRow(key, data []byte) (p.RawEvent, error) {
	if len(key) != 8 || len(data) < sizeEventRow {
		return p.RawEvent{}, p.ErrDataInvalid
	}
	e := p.RawEvent{
		Index:       int(binary.BigEndian.Uint64(key)),
		EventType:   ByteOrdering.Uint16(data[0:]),
		EventID:     ByteOrdering.Uint16(data[2:]),
		Timestamp:   math.Float32frombits(ByteOrdering.Uint32(data[4:])),
		PlayerIndex: int(int32(ByteOrdering.Uint32(data[8:]))),
		TargetIndex: int(int32(ByteOrdering.Uint32(data[12:]))),
		TeamIndex:   int(int32(ByteOrdering.Uint32(data[16:]))),
		Round:       int(int32(ByteOrdering.Uint32(data[20:]))),
	}
	// bbolt values are only valid during the transaction
	e.Payload = make([]byte, len(data)-sizeEventRow)
	copy(e.Payload, data[sizeEventRow:])
	return e, nil
}

func (c *Catalogue) AppendEvents(key string, events []p.RawEvent) error {
	if err := p.ValidateKey(key); err != nil {
		return err
	}
	if len(events) == 0 {
		return p.ErrDataEmpty
	}
	return c.store.Update(func(tx *bbolt.Tx) error {
		k := []byte(key)
		if tx.Bucket(sessionBucketKey).Get(k) == nil {
			return p.ErrSessionNotExist
		}
		bucket, err := tx.Bucket(eventBucketKey).CreateBucketIfNotExists(k)
		if err != nil {
			return err
		}
		for _, e := range events {
			if e.Index < 0 {
				return errors.Wrapf(p.ErrDataInvalid, "event index %d", e.Index)
			}
			rowKey := eventKey(e.Index)
			if bucket.Get(rowKey) != nil {
				// returning an error rolls back the rows put so far
				return errors.Wrapf(p.ErrEventExists, "index %d", e.Index)
			}
			if err := bucket.Put(rowKey, encodeEventRow(e)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Catalogue) GetEvents(key string, offset, limit uint64) ([]p.RawEvent, error) {
	if err := p.ValidateKey(key); err != nil {
		return nil, err
	}
	events := make([]p.RawEvent, 0)
	err := c.store.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(eventBucketKey).Bucket([]byte(key))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		var skipped uint64
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && uint64(len(events)) >= limit {
				break
			}
			e, err := decodeEventRow(k, v)
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	return events, err
}

func (c *Catalogue) GetEventsByIndex(key string, indices []int) ([]p.RawEvent, error) {
	if err := p.ValidateKey(key); err != nil {
		return nil, err
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	events := make([]p.RawEvent, 0, len(sorted))
	err := c.store.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(eventBucketKey).Bucket([]byte(key))
		if bucket == nil {
			return nil
		}
		for i, index := range sorted {
			if index < 0 || (i > 0 && sorted[i-1] == index) {
				continue
			}
			k := eventKey(index)
			v := bucket.Get(k)
			if v == nil {
				continue
			}
			e, err := decodeEventRow(k, v)
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	return events, err
}

func (c *Catalogue) CountEvents(key string) (uint64, error) {
	if err := p.ValidateKey(key); err != nil {
		return 0, err
	}
	var n uint64
	err := c.store.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket(eventBucketKey).Bucket([]byte(key)); bucket != nil {
			n = uint64(bucket.Stats().KeyN)
		}
		return nil
	})
	return n, err
}

func (c *Catalogue) SaveSnapshot(source, name string, data []byte) error {
	if err := p.ValidateSnapshot(source, name); err != nil {
		return err
	}
	buf := make([]byte, 8+len(data))
	ByteOrdering.PutUint64(buf, uint64(time.Now().Unix()))
	copy(buf[8:], data)
	return c.store.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(snapshotBucketKey).CreateBucketIfNotExists([]byte(source))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(name), buf)
	})
}

func (c *Catalogue) GetSnapshot(source, name string) (p.RawSnapshot, error) {
	snapshot := p.RawSnapshot{Source: source, Name: name}
	if err := p.ValidateSnapshot(source, name); err != nil {
		return snapshot, err
	}
	err := c.store.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(snapshotBucketKey).Bucket([]byte(source))
		if bucket == nil {
			return p.ErrSnapshotNotExist
		}
		payload := bucket.Get([]byte(name))
		if payload == nil {
			return p.ErrSnapshotNotExist
		}
		if len(payload) < 8 {
			return p.ErrDataInvalid
		}
		snapshot.Timestamp = time.Unix(int64(ByteOrdering.Uint64(payload)), 0)
		snapshot.Payload = make([]byte, len(payload)-8)
		copy(snapshot.Payload, payload[8:])
		return nil
	})
	return snapshot, err
}

func (c *Catalogue) FindSnapshots(source string, pattern p.SearchPattern) ([]string, error) {
	if p.Blank(source) {
		return nil, p.ErrSnapshotSourceEmpty
	}
	matches := make([]string, 0)
	if !pattern.Valid() {
		return matches, nil
	}
	err := c.store.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(snapshotBucketKey).Bucket([]byte(source))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			kStr := string(k)
			if pattern.Match(kStr) {
				matches = append(matches, kStr)
			}
			return nil
		})
	})
	return matches, err
}

func (c *Catalogue) Close() error {
	return c.store.Close()
}
