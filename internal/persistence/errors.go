package persistence

import "github.com/pkg/errors"

var (
	ErrSessionNotExist     = errors.New("session does not exist")
	ErrSessionKeyEmpty     = errors.New("session key cannot empty")
	ErrSessionKeyInvalid   = errors.New("session key should contain only digits, letters, dash, underscore, dot and colon")
	ErrEventExists         = errors.New("event index already stored for session")
	ErrDataInvalid         = errors.New("data is invalid")
	ErrDataEmpty           = errors.New("data cannot empty")
	ErrSnapshotNameEmpty   = errors.New("snapshot's name cannot empty")
	ErrSnapshotSourceEmpty = errors.New("snapshot's source cannot empty")
	ErrSnapshotNotExist    = errors.New("snapshot does not exist")
)
