package aggregate

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/gamestate"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
)

// streamCopier re-records every dispatched event into a second file
type streamCopier struct {
	w    *statsfile.Writer
	dst  string
	err  error
	last float32
}

func (c *streamCopier) PreProcessStream(info statsfile.StreamInfo) {
	session := statsfile.SessionInfo{}
	if info.Session != nil {
		session = *info.Session
	}
	if c.err = c.w.Open(c.dst, session); c.err != nil {
		return
	}
	if info.Metadata != nil {
		c.w.Metadata().CopyFrom(info.Metadata)
	}
}

func (c *streamCopier) HandleEvent(rec *statsfile.EventRecord, payload events.Payload) {
	if c.err != nil {
		return
	}
	if rec.Header.TimeStamp > c.last {
		c.last = rec.Header.TimeStamp
	}
	c.err = c.w.RecordEvent(rec.Header.EventID, rec.Header.TimeStamp, payload)
}

func (c *streamCopier) PostProcessStream() {}

// Annotate copies the event stream of src into dst and appends the aggregates
// computed from it. Records the reader can not decode are not copied.
func Annotate(src, dst string, opts statsfile.WriterOptions, mapping *Mapping) ([]Entry, error) {
	r := statsfile.NewReader(opts.Registry)
	if err := r.Open(src); err != nil {
		return nil, err
	}
	defer r.Close()

	tracker := gamestate.NewTracker()
	agg := New(tracker, mapping)
	w := statsfile.NewWriter(opts)
	copier := &streamCopier{w: w, dst: dst}
	r.RegisterHandler(tracker)
	r.RegisterHandler(agg)
	r.RegisterHandler(copier)

	if err := r.ProcessStream(); err != nil {
		if w.IsOpen() {
			_ = w.Abandon()
		}
		return nil, errors.Wrap(err, "process stream")
	}
	if copier.err != nil {
		if w.IsOpen() {
			_ = w.Abandon()
		}
		return nil, errors.Wrap(copier.err, "copy stream")
	}

	endTime := r.Session().EndTime
	if endTime < copier.last {
		endTime = copier.last
	}
	if err := agg.WriteAggregates(w, endTime); err != nil {
		_ = w.Abandon()
		return nil, err
	}
	if err := w.Close(endTime); err != nil {
		return nil, err
	}
	report := agg.Report()
	log.WithFields(log.Fields{"src": src, "dst": dst, "aggregates": len(report)}).Info("Stats file annotated")
	return report, nil
}
