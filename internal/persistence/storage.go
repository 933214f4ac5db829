package persistence

// Storage is the record store a session database reads from and pushes to.
// SessionKeeper holds one row per recorded session instance
// EventKeeper holds the indexed event rows of each session
// SnapshotKeeper holds derived blobs (aggregate reports) per session
// Every implementation must pass the suite in package "testsuite"
type Storage interface {
	SessionKeeper
	EventKeeper
	SnapshotKeeper
	Close() error
}
