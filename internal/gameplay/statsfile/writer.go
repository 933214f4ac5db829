package statsfile

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/archive"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/metrics"
)

// Extension of stats files
const Extension = ".gamestats"

// maxPayloadSize is the largest payload a record header can describe
const maxPayloadSize = 0xFFFF

type WriterOptions struct {
	// Order defaults to archive.ByteOrdering
	Order binary.ByteOrder
	// Version defaults to archive.LatestVersion. Older versions are written
	// without the fields they predate.
	Version int32
	// StripEventNames writes the SupportedEvents table IDs only
	StripEventNames bool
	FilterClass     string
	// Registry names payload types in metrics, defaults to events.DefaultRegistry()
	Registry *events.Registry
}

// Writer appends events to one stats file at a time. The header is written
// provisionally on Open and rewritten in place by Close.
type Writer struct {
	opts WriterOptions

	file          *os.File
	path          string
	ar            *archive.Archive
	header        FileHeader
	session       SessionInfo
	sessionOffset int64
	meta          *Metadata
	aggregating   bool
}

func NewWriter(opts WriterOptions) *Writer {
	if opts.Order == nil {
		opts.Order = archive.ByteOrdering
	}
	if opts.Version == 0 {
		opts.Version = archive.LatestVersion
	}
	if opts.Registry == nil {
		opts.Registry = events.DefaultRegistry()
	}
	return &Writer{opts: opts, meta: NewMetadata()}
}

func (w *Writer) IsOpen() bool {
	return w.file != nil
}

func (w *Writer) Path() string {
	return w.path
}

// Metadata returns the dictionaries of the open file. Entries must be resolved
// before a payload referencing them is recorded.
func (w *Writer) Metadata() *Metadata {
	return w.meta
}

func (w *Writer) Session() SessionInfo {
	return w.session
}

// Open creates path and writes the provisional header and session block.
// Opening while a file is already open is a no-op.
func (w *Writer) Open(path string, session SessionInfo) error {
	if w.IsOpen() {
		log.WithFields(log.Fields{"open": w.path, "requested": path}).Warn("stats file already open, ignoring open request")
		return nil
	}
	err := w.open(path, session)
	metrics.FileOpened("write", err)
	if err != nil {
		log.WithField("path", path).Errorf("Failed to open stats file: %v", err)
	}
	return err
}

func (w *Writer) open(path string, session SessionInfo) error {
	if w.opts.Version < archive.MinVersion || w.opts.Version > archive.LatestVersion {
		return errors.Wrapf(ErrBadVersion, "writer version %d", w.opts.Version)
	}
	var flags int32
	if w.opts.StripEventNames {
		if !archive.SupportsFeature(w.opts.Version, archive.FeatureHeaderFlags) {
			return errors.Errorf("version %d can not record stripped event names", w.opts.Version)
		}
		flags |= FlagNoEventStrings
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create")
	}
	ar := archive.NewSaver(f, w.opts.Order)
	ar.SetVersion(w.opts.Version)

	header := newProvisionalHeader(w.opts.Version, w.opts.FilterClass, flags)
	header.Serialize(ar)
	sessionOffset := ar.Tell()
	session.Serialize(ar)
	header.StreamOffset = int32(ar.Tell())
	if err := ar.Err(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "provisional header")
	}

	w.file = f
	w.path = path
	w.ar = ar
	w.header = header
	w.session = session
	w.sessionOffset = sessionOffset
	w.aggregating = false
	w.meta.Empty()
	for _, md := range events.EngineEvents() {
		w.meta.AddSupportedEvent(md)
	}
	log.WithFields(log.Fields{"path": path, "session": session.Key(), "version": w.opts.Version}).Info("Stats file opened")
	return nil
}

// RecordEvent appends one record. The record header is filled from the payload's Size.
func (w *Writer) RecordEvent(id events.EventID, timestamp float32, payload events.Payload) error {
	if !w.IsOpen() {
		return ErrNotOpen
	}
	size := payload.Size(w.ar)
	if size > maxPayloadSize {
		log.WithFields(log.Fields{"event": id, "size": size}).Warn("Dropping oversized event")
		return errors.Wrapf(ErrPayloadTooLarge, "event %d is %d bytes", id, size)
	}
	header := events.RecordHeader{
		EventType: payload.Type(),
		EventID:   id,
		TimeStamp: timestamp,
		DataSize:  uint16(size),
	}
	record := w.ar.Tell()
	header.Serialize(w.ar)
	start := w.ar.Tell()
	payload.Serialize(w.ar)
	if err := w.ar.Err(); err != nil {
		w.rewind(record)
		return errors.Wrapf(err, "record event %d", id)
	}
	if written := w.ar.Tell() - start; written != int64(size) {
		log.WithFields(log.Fields{"event": id, "type": payload.Type(), "size": size, "written": written}).
			Error("Payload size does not match serialized length")
		w.rewind(record)
		return errors.Wrapf(ErrDesync, "event %d declared %d bytes, wrote %d", id, size, written)
	}
	metrics.RecordWritten(w.opts.Registry.Name(payload.Type()))
	return nil
}

// rewind drops a partly written record so the next one starts at pos
func (w *Writer) rewind(pos int64) {
	w.ar.ClearErr()
	w.ar.Seek(pos)
	err := w.ar.Err()
	if err == nil {
		err = w.file.Truncate(pos)
	}
	if err != nil {
		w.ar.Fail(errors.Wrapf(err, "rewind to %d", pos))
		log.WithFields(log.Fields{"path": w.path, "offset": pos}).Errorf("Failed to drop partial record: %v", err)
	}
}

// BeginAggregates ends the event stream. Records written afterwards form the aggregate section.
func (w *Writer) BeginAggregates() error {
	if !w.IsOpen() {
		return ErrNotOpen
	}
	if w.aggregating {
		return ErrSectionState
	}
	if !archive.SupportsFeature(w.opts.Version, archive.FeatureAggregateOffset) {
		return errors.Wrapf(ErrBadVersion, "version %d has no aggregate section", w.opts.Version)
	}
	w.header.AggregateOffset = int32(w.ar.Tell())
	w.aggregating = true
	return nil
}

// Close writes the footer, then rewrites the header and session block with
// final offsets. Only a fully finalized file has FlagIncomplete cleared.
func (w *Writer) Close(endTime float32) error {
	if !w.IsOpen() {
		return ErrNotOpen
	}
	err := w.finalize(endTime)
	metrics.FileClosed(err)
	if err != nil {
		log.WithField("path", w.path).Errorf("Failed to finalize stats file, header left provisional: %v", err)
	}
	if cerr := w.file.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "close")
	}
	w.detach()
	return err
}

func (w *Writer) finalize(endTime float32) error {
	footerOffset := w.ar.Tell()
	streamEnd := footerOffset
	if w.aggregating {
		streamEnd = int64(w.header.AggregateOffset)
	}

	w.ar.SetForceUnicode(false)
	w.meta.Serialize(w.ar, w.opts.StripEventNames)
	w.ar.SetForceUnicode(true)
	if err := w.ar.Err(); err != nil {
		return errors.Wrap(err, "footer")
	}
	fileSize := w.ar.Tell()

	w.header.FooterOffset = int32(footerOffset)
	w.header.TotalStreamSize = int32(streamEnd - int64(w.header.StreamOffset))
	w.header.FileSize = int32(fileSize)
	w.header.Flags &^= FlagIncomplete
	w.session.EndTime = endTime

	w.ar.Seek(0)
	w.header.Serialize(w.ar)
	w.ar.Seek(w.sessionOffset)
	w.session.Serialize(w.ar)
	if err := w.ar.Err(); err != nil {
		return errors.Wrap(err, "patch header")
	}
	if w.ar.Tell() != int64(w.header.StreamOffset) {
		return errors.Errorf("session block changed size: ends at %d, stream starts at %d", w.ar.Tell(), w.header.StreamOffset)
	}
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(err, "sync")
	}
	log.WithFields(log.Fields{
		"path":   w.path,
		"stream": w.header.TotalStreamSize,
		"size":   fileSize,
	}).Info("Stats file finalized")
	return nil
}

// Abandon closes the file without finalizing it, leaving the provisional header
func (w *Writer) Abandon() error {
	if !w.IsOpen() {
		return ErrNotOpen
	}
	err := w.file.Close()
	log.WithField("path", w.path).Warn("Stats file abandoned without footer")
	w.detach()
	return err
}

func (w *Writer) detach() {
	w.file = nil
	w.ar = nil
	w.aggregating = false
	w.meta.Empty()
}
