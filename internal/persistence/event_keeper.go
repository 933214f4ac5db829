package persistence

// EventKeeper stores the decoded records of a session as rows. Each row keeps
// the keys the session index is built from, so a session can be indexed
// without its stats file.
type EventKeeper interface {
	// AppendEvents stores rows for an existing session
	// Row indices must be unique per session, storing an index twice returns ErrEventExists
	AppendEvents(key string, events []RawEvent) error

	// GetEvents returns rows of a session ordered by index
	// Offset and Limit are analogous to SQL, a limit of 0 returns every row from the offset
	GetEvents(key string, offset, limit uint64) ([]RawEvent, error)

	// GetEventsByIndex returns the rows with the given indices ordered by index
	// Indices without a row are skipped
	GetEventsByIndex(key string, indices []int) ([]RawEvent, error)

	// CountEvents returns the number of rows stored for a session
	CountEvents(key string) (uint64, error)
}

// RawEvent is one record of a session. Payload holds the record body in the
// session's byte order. PlayerIndex, TargetIndex and TeamIndex are -1 when the
// record has none, Round is 0 before the first round.
type RawEvent struct {
	Index       int
	EventType   uint16
	EventID     uint16
	Timestamp   float32
	PlayerIndex int
	TargetIndex int
	TeamIndex   int
	Round       int
	Payload     []byte
}
