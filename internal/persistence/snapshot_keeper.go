package persistence

import "time"

// RawSnapshot is a blob derived from a session, such as its encoded aggregate
// report. Source is the session key it belongs to.
type RawSnapshot struct {
	Source    string
	Name      string
	Timestamp time.Time
	Payload   []byte
}

type SnapshotKeeper interface {
	// SaveSnapshot stores data as snapshot name of source and stamps it with
	// the current time. An existing snapshot with the same name is overwritten.
	SaveSnapshot(source, name string, data []byte) error

	// GetSnapshot returns ErrSnapshotNotExist when source has no snapshot name
	GetSnapshot(source, name string) (RawSnapshot, error)

	// FindSnapshots lists the names of the snapshots of source matching pattern, sorted
	FindSnapshots(source string, pattern SearchPattern) ([]string, error)
}
