package localdb

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/gamestate"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
	"github.com/snowflk/statsdb/internal/persistence"
)

// Indexer turns a stream into event rows and record positions. It reads round
// and team membership from tracker, so it must be registered after it.
type Indexer struct {
	tracker *gamestate.Tracker

	path      string
	version   int32
	order     binary.ByteOrder
	rows      []persistence.RawEvent
	positions []int64
	failures  int
}

func NewIndexer(tracker *gamestate.Tracker) *Indexer {
	return &Indexer{tracker: tracker}
}

func (x *Indexer) PreProcessStream(info statsfile.StreamInfo) {
	x.path = info.Path
	x.version = info.Header.FormatVersion
	x.order = info.Order
	x.rows = x.rows[:0]
	x.positions = x.positions[:0]
	x.failures = 0
}

func (x *Indexer) HandleEvent(rec *statsfile.EventRecord, payload events.Payload) {
	data, err := statsfile.EncodePayload(payload, x.version, x.order)
	if err != nil {
		x.failures++
		log.WithFields(log.Fields{"path": x.path, "offset": rec.Offset}).Warnf("Failed to encode event row: %v", err)
		return
	}
	row := persistence.RawEvent{
		Index:       rec.Index,
		EventType:   uint16(rec.Header.EventType),
		EventID:     uint16(rec.Header.EventID),
		Timestamp:   rec.Header.TimeStamp,
		PlayerIndex: events.IndexNone,
		TargetIndex: events.IndexNone,
		TeamIndex:   events.IndexNone,
		Round:       x.tracker.Round(),
		Payload:     data,
	}
	if e, ok := payload.(events.PlayerEvent); ok {
		row.PlayerIndex = e.PlayerIndex()
	}
	if e, ok := payload.(events.TargetEvent); ok {
		row.TargetIndex = e.TargetIndex()
	}
	if e, ok := payload.(events.TeamEvent); ok {
		row.TeamIndex = e.TeamIndex()
	}
	if row.TeamIndex < 0 && row.PlayerIndex >= 0 {
		row.TeamIndex = x.tracker.PlayerTeam(row.PlayerIndex)
	}
	x.rows = append(x.rows, row)

	for len(x.positions) < rec.Index {
		x.positions = append(x.positions, NoPosition)
	}
	x.positions = append(x.positions, rec.Offset)
}

func (x *Indexer) PostProcessStream() {
	if x.failures > 0 {
		log.WithFields(log.Fields{"path": x.path, "failures": x.failures}).Warn("Some events were not indexed")
	}
}

// Rows returns the event rows of the last stream in index order
func (x *Indexer) Rows() []persistence.RawEvent {
	return x.rows
}

// Positions returns the file offset of every record of the last stream, NoPosition for skipped ones
func (x *Indexer) Positions() []int64 {
	return x.positions
}

// Index builds the session index of the last stream
func (x *Indexer) Index(key string) *SessionIndex {
	s := newSessionIndex(key)
	for _, row := range x.rows {
		s.AddRow(row)
	}
	return s
}
