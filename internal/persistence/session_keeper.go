package persistence

type SessionKeeper interface {
	// SaveSession creates the session row stored under session.Key, or replaces it
	// The key must pass ValidateKey
	SaveSession(session RawSession) error

	// GetSession returns the session row back
	// Returns ErrSessionNotExist if there is none
	GetSession(key string) (RawSession, error)

	// FindSessions finds sessions using a pattern and returns their keys in ascending order
	// If the pattern is invalid, the function just ignores it and returns an empty array
	FindSessions(pattern SearchPattern) ([]string, error)

	// Instances returns the instance numbers stored for a session GUID in ascending order
	Instances(sessionID string) ([]int32, error)

	// DeleteSession removes a session together with its events and snapshots
	// Returns ErrSessionNotExist if there is none
	DeleteSession(key string) error
}

// RawSession is the stored form of one recorded session instance. Info and
// Metadata hold the session block and the footer encoded with FormatVersion
// in the byte order flagged by BigEndian.
type RawSession struct {
	Key           string
	SessionID     string
	Instance      int32
	FormatVersion int32
	BigEndian     bool
	Title         int32
	MapName       string
	StartTime     float32
	EndTime       float32
	Info          []byte
	Metadata      []byte
}
