package statsfile

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/archive"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/metrics"
)

// StreamInfo is handed to handlers before the first record. It replaces any
// notion of a current reader: handlers resolve names through Metadata.
type StreamInfo struct {
	Path     string
	Order    binary.ByteOrder
	Header   FileHeader
	Session  *SessionInfo
	Metadata *Metadata
}

// EventRecord locates one decoded record
type EventRecord struct {
	Header events.RecordHeader
	// Index is the record's position in the stream, counting skipped records
	Index int
	// Offset is the file offset of the record header
	Offset int64
}

// Handler consumes a stream. Handlers run in registration order for every
// record before the next record is decoded.
type Handler interface {
	PreProcessStream(info StreamInfo)
	HandleEvent(rec *EventRecord, payload events.Payload)
	PostProcessStream()
}

// StreamStats counts what the last pass over a stream did with its records
type StreamStats struct {
	Records     int
	Dispatched  int
	Unknown     int
	Desynced    int
	DecodeFails int
}

type Reader struct {
	registry *events.Registry
	handlers []Handler

	path    string
	src     *source
	order   binary.ByteOrder
	header  FileHeader
	session SessionInfo
	meta    *Metadata
	stats   StreamStats
	unknown map[events.EventType]bool
}

// NewReader creates a reader resolving payloads through registry, or the default registry when nil
func NewReader(registry *events.Registry) *Reader {
	if registry == nil {
		registry = events.DefaultRegistry()
	}
	return &Reader{registry: registry}
}

func (r *Reader) IsOpen() bool {
	return r.src != nil
}

// Open validates the header, retrying once with the swapped byte order, then
// loads the session block and the footer dictionaries.
func (r *Reader) Open(path string) error {
	if r.IsOpen() {
		return errors.Wrap(ErrAlreadyOpen, r.path)
	}
	err := r.open(path)
	metrics.FileOpened("read", err)
	if err != nil {
		log.WithField("path", path).Errorf("Failed to open stats file: %v", err)
	}
	return err
}

func (r *Reader) open(path string) error {
	src, err := openSource(path)
	if err != nil {
		return err
	}
	var (
		header FileHeader
		order  binary.ByteOrder
		ar     *archive.Archive
		failed error
	)
	for _, candidate := range []binary.ByteOrder{archive.ByteOrdering, archive.Swapped(archive.ByteOrdering)} {
		ar = archive.NewLoader(bytes.NewReader(src.data), candidate)
		header = FileHeader{}
		header.Serialize(ar)
		err := ar.Err()
		if err == nil {
			err = header.Validate(int64(len(src.data)))
		}
		if err == nil {
			order = candidate
			break
		}
		log.WithFields(log.Fields{"path": path, "order": candidate}).Debugf("Header rejected: %v", err)
		// a version mismatch is what the wrong byte order looks like, any other failure is more telling
		if failed == nil || errors.Is(failed, ErrBadVersion) {
			failed = err
		}
	}
	if order == nil {
		_ = src.close()
		return errors.Wrap(failed, "header")
	}

	var session SessionInfo
	session.Serialize(ar)
	if err := ar.Err(); err != nil {
		_ = src.close()
		return errors.Wrap(err, "session info")
	}
	if ar.Tell() != int64(header.StreamOffset) {
		_ = src.close()
		return errors.Wrapf(ErrBadOffsets, "session info ends at %d, stream offset %d", ar.Tell(), header.StreamOffset)
	}

	meta := NewMetadata()
	ar.Seek(int64(header.FooterOffset))
	meta.Serialize(ar, header.HasFlag(FlagNoEventStrings))
	if err := ar.Err(); err != nil {
		_ = src.close()
		return errors.Wrap(err, "footer")
	}

	r.path = path
	r.src = src
	r.order = order
	r.header = header
	r.session = session
	r.meta = meta
	r.unknown = make(map[events.EventType]bool)
	log.WithFields(log.Fields{
		"path":    path,
		"version": header.FormatVersion,
		"session": session.Key(),
		"players": meta.NumPlayers(),
	}).Debug("Stats file opened")
	return nil
}

// Close releases the file. Dictionaries are discarded.
func (r *Reader) Close() error {
	if !r.IsOpen() {
		return ErrNotOpen
	}
	err := r.src.close()
	r.src = nil
	r.meta = nil
	r.unknown = nil
	return err
}

func (r *Reader) RegisterHandler(h Handler) {
	for _, existing := range r.handlers {
		if existing == h {
			return
		}
	}
	r.handlers = append(r.handlers, h)
}

func (r *Reader) UnregisterHandler(h Handler) {
	for i, existing := range r.handlers {
		if existing == h {
			r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
			return
		}
	}
}

func (r *Reader) Path() string               { return r.path }
func (r *Reader) Order() binary.ByteOrder    { return r.order }
func (r *Reader) Header() FileHeader         { return r.header }
func (r *Reader) Session() *SessionInfo      { return &r.session }
func (r *Reader) Metadata() *Metadata        { return r.meta }
func (r *Reader) Stats() StreamStats         { return r.stats }
func (r *Reader) Registry() *events.Registry { return r.registry }
func (r *Reader) TitleID() int32             { return r.session.AppTitleID }
func (r *Reader) Platform() Platform         { return r.session.Platform }
func (r *Reader) SessionID() string          { return r.session.GUID }
func (r *Reader) SessionTimestamp() string   { return r.session.Timestamp }
func (r *Reader) SessionDuration() float32   { return r.session.Duration() }

func (r *Reader) info() StreamInfo {
	return StreamInfo{
		Path:     r.path,
		Order:    r.order,
		Header:   r.header,
		Session:  &r.session,
		Metadata: r.meta,
	}
}

// ProcessStream decodes every record of the event stream and dispatches it to the handlers
func (r *Reader) ProcessStream() error {
	if !r.IsOpen() {
		return ErrNotOpen
	}
	info := r.info()
	for _, h := range r.handlers {
		h.PreProcessStream(info)
	}
	start := int64(r.header.StreamOffset)
	err := r.processRange(start, start+int64(r.header.TotalStreamSize), func(rec *EventRecord, p events.Payload) {
		for _, h := range r.handlers {
			h.HandleEvent(rec, p)
		}
	})
	for _, h := range r.handlers {
		h.PostProcessStream()
	}
	log.WithFields(log.Fields{
		"path":       r.path,
		"records":    r.stats.Records,
		"dispatched": r.stats.Dispatched,
		"unknown":    r.stats.Unknown,
		"desynced":   r.stats.Desynced,
	}).Debug("Stream processed")
	return err
}

// VisitAggregates decodes the aggregate section, if the file has one
func (r *Reader) VisitAggregates(fn func(rec *EventRecord, p events.Payload)) error {
	if !r.IsOpen() {
		return ErrNotOpen
	}
	if !r.header.HasAggregates() {
		return nil
	}
	return r.processRange(int64(r.header.AggregateOffset), int64(r.header.FooterOffset), fn)
}

// processRange walks records in [start, end). Framing always follows the
// declared DataSize, a payload that decodes to a different length is dropped.
func (r *Reader) processRange(start, end int64, fn func(rec *EventRecord, p events.Payload)) error {
	r.stats = StreamStats{}
	if start < 0 || end > int64(len(r.src.data)) || start > end {
		return errors.Wrapf(ErrBadOffsets, "range [%d, %d)", start, end)
	}
	pos := start
	for index := 0; pos < end; index++ {
		rec, body, err := r.readRecordHeader(pos, end)
		if err != nil {
			return err
		}
		rec.Index = index
		r.stats.Records++
		pos = rec.Offset + events.RecordHeaderSize + int64(rec.Header.DataSize)

		payload, err := r.decode(rec, body)
		if err != nil {
			continue
		}
		r.stats.Dispatched++
		metrics.RecordRead(r.registry.Name(rec.Header.EventType))
		fn(rec, payload)
	}
	return nil
}

func (r *Reader) readRecordHeader(pos, end int64) (*EventRecord, []byte, error) {
	if end-pos < events.RecordHeaderSize {
		log.WithFields(log.Fields{"path": r.path, "offset": pos}).Warn("Truncated record header at end of stream")
		return nil, nil, errors.Wrapf(ErrDesync, "%d trailing bytes at %d", end-pos, pos)
	}
	ar := archive.NewLoader(bytes.NewReader(r.src.data[pos:pos+events.RecordHeaderSize]), r.order)
	var h events.RecordHeader
	h.Serialize(ar)
	if err := ar.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "record header at %d", pos)
	}
	bodyStart := pos + events.RecordHeaderSize
	bodyEnd := bodyStart + int64(h.DataSize)
	if bodyEnd > end {
		log.WithFields(log.Fields{"path": r.path, "offset": pos, "size": h.DataSize}).Warn("Record overruns stream end")
		return nil, nil, errors.Wrapf(ErrDesync, "record at %d overruns stream end %d", pos, end)
	}
	return &EventRecord{Header: h, Offset: pos}, r.src.data[bodyStart:bodyEnd], nil
}

// decode deserializes a payload from exactly its declared bytes
func (r *Reader) decode(rec *EventRecord, body []byte) (events.Payload, error) {
	payload := r.registry.Resolve(rec.Header.EventType)
	if payload == nil {
		r.stats.Unknown++
		metrics.RecordSkipped(metrics.SkipUnknownType)
		if !r.unknown[rec.Header.EventType] {
			r.unknown[rec.Header.EventType] = true
			log.WithFields(log.Fields{"path": r.path, "type": rec.Header.EventType, "offset": rec.Offset}).
				Warn("Skipping records of unknown event type")
		}
		return nil, errors.Wrapf(ErrUnknownEvent, "type %d", rec.Header.EventType)
	}
	ar := archive.NewLoader(bytes.NewReader(body), r.order)
	ar.SetVersion(r.header.FormatVersion)
	payload.Serialize(ar)
	if err := ar.Err(); err != nil {
		r.stats.DecodeFails++
		metrics.RecordSkipped(metrics.SkipDecodeError)
		log.WithFields(log.Fields{"path": r.path, "type": rec.Header.EventType, "offset": rec.Offset}).
			Warnf("Failed to decode payload: %v", err)
		return nil, errors.Wrapf(err, "payload at %d", rec.Offset)
	}
	if consumed := ar.Tell(); consumed != int64(len(body)) {
		r.stats.Desynced++
		metrics.RecordSkipped(metrics.SkipDesync)
		log.WithFields(log.Fields{
			"path":     r.path,
			"type":     rec.Header.EventType,
			"offset":   rec.Offset,
			"declared": len(body),
			"consumed": consumed,
		}).Warn("Payload does not match its declared size, record dropped")
		return nil, errors.Wrapf(ErrDesync, "payload at %d", rec.Offset)
	}
	return payload, nil
}

// ReadEventAt decodes the single record whose header starts at offset
func (r *Reader) ReadEventAt(offset int64) (*EventRecord, events.Payload, error) {
	if !r.IsOpen() {
		return nil, nil, ErrNotOpen
	}
	end := int64(r.header.StreamOffset) + int64(r.header.TotalStreamSize)
	if r.header.HasAggregates() && offset >= int64(r.header.AggregateOffset) {
		end = int64(r.header.FooterOffset)
	}
	if offset < int64(r.header.StreamOffset) || offset >= end {
		return nil, nil, errors.Wrapf(ErrBadOffsets, "event offset %d", offset)
	}
	rec, body, err := r.readRecordHeader(offset, end)
	if err != nil {
		return nil, nil, err
	}
	rec.Index = -1
	payload, err := r.decode(rec, body)
	if err != nil {
		return rec, nil, err
	}
	return rec, payload, nil
}
