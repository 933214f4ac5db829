package statsfile

import "github.com/pkg/errors"

var (
	ErrAlreadyOpen     = errors.New("stats file already open")
	ErrNotOpen         = errors.New("stats file not open")
	ErrBadVersion      = errors.New("unsupported file format version")
	ErrBadOffsets      = errors.New("invalid header offsets")
	ErrSizeMismatch    = errors.New("file size does not match header")
	ErrIncomplete      = errors.New("stats file was not finalized")
	ErrPayloadTooLarge = errors.New("payload exceeds record size limit")
	ErrUnknownEvent    = errors.New("unknown event type")
	ErrDesync          = errors.New("payload size does not match record header")
	ErrSectionState    = errors.New("aggregate section already started")
	ErrBadSessionKey   = errors.New("malformed session key")
)
