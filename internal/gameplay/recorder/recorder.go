// Package recorder turns engine callbacks into stats file records.
package recorder

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
)

// TimestampLayout formats the wall clock time a session started at
const TimestampLayout = "2006.01.02-15.04.05"

// ErrNotLogging is returned by the Log functions between EndLogging and the next StartLogging
var ErrNotLogging = errors.New("recorder is not logging")

type Team interface {
	Index() int32
	Name() string
	Color() uint32
	MaxSize() int32
}

type Controller interface {
	ControllerName() string
	PlayerName() string
	UniqueID() string
	IsBot() bool
	Location() events.Vector
	Rotation() events.Rotator
	// Team returns nil for players without a team
	Team() Team
	// Alive reports whether the controller currently has a pawn to poll
	Alive() bool
}

// World describes the running game the session is recorded from
type World interface {
	TitleID() int32
	Platform() statsfile.Platform
	Language() string
	GameClass() string
	MapName() string
	MapURL() string
	OwningNetID() string
	GameTypeID() int32
	PlaylistID() int32
	Multiplayer() bool
	Controllers() []Controller
}

// Clock returns game time in seconds
type Clock interface {
	Now() float32
}

type ClockFunc func() float32

func (f ClockFunc) Now() float32 { return f() }

type Options struct {
	// Dir receives the stats files, named <guid>_<instance>.gamestats
	Dir    string
	Writer statsfile.WriterOptions
	// NewGUID defaults to a random UUID
	NewGUID func() string
	// WallClock stamps the session, defaults to time.Now
	WallClock func() time.Time
}

type Recorder struct {
	opts  Options
	world World
	clock Clock
	w     *statsfile.Writer

	guid      string
	instance  int32
	heartbeat float32
	lastPoll  float32
	extra     []events.MetaData
}

func New(world World, clock Clock, opts Options) *Recorder {
	if opts.NewGUID == nil {
		opts.NewGUID = uuid.NewString
	}
	if opts.WallClock == nil {
		opts.WallClock = time.Now
	}
	return &Recorder{
		opts:  opts,
		world: world,
		clock: clock,
		w:     statsfile.NewWriter(opts.Writer),
	}
}

func (r *Recorder) IsLogging() bool {
	return r.w.IsOpen()
}

// Path of the file being written, or of the last one written
func (r *Recorder) Path() string {
	return r.w.Path()
}

func (r *Recorder) SessionKey() string {
	return statsfile.FormatSessionKey(r.guid, r.instance)
}

// RegisterEvent describes a game specific event ID in the footer of every file started afterwards
func (r *Recorder) RegisterEvent(md events.MetaData) {
	r.extra = append(r.extra, md)
	if r.IsLogging() {
		r.w.Metadata().AddSupportedEvent(md)
	}
}

// StartLogging opens a file for a new session. Player locations are polled
// every heartbeat seconds from Tick, 0 disables polling.
func (r *Recorder) StartLogging(heartbeat float32) error {
	if r.IsLogging() {
		log.WithField("session", r.SessionKey()).Warn("StartLogging while already logging")
		return nil
	}
	r.guid = r.opts.NewGUID()
	r.instance = 0
	return r.open(heartbeat)
}

// ResetLogging ends the current file and continues the session in a new one
// with the next instance number
func (r *Recorder) ResetLogging(heartbeat float32) error {
	if r.guid == "" {
		return r.StartLogging(heartbeat)
	}
	if r.IsLogging() {
		if err := r.EndLogging(); err != nil {
			return err
		}
	}
	r.instance++
	return r.open(heartbeat)
}

// EndLogging finalizes the current file
func (r *Recorder) EndLogging() error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.w.Close(r.clock.Now())
}

func (r *Recorder) open(heartbeat float32) error {
	now := r.clock.Now()
	session := statsfile.SessionInfo{
		AppTitleID:      r.world.TitleID(),
		GUID:            r.guid,
		Timestamp:       r.opts.WallClock().UTC().Format(TimestampLayout),
		StartTime:       now,
		EndTime:         now,
		Platform:        r.world.Platform(),
		Language:        r.world.Language(),
		GameClass:       r.world.GameClass(),
		MapName:         r.world.MapName(),
		MapURL:          r.world.MapURL(),
		SessionInstance: r.instance,
		OwningNetID:     r.world.OwningNetID(),
		GameTypeID:      r.world.GameTypeID(),
		PlaylistID:      r.world.PlaylistID(),
		Multiplayer:     r.world.Multiplayer(),
	}
	path := filepath.Join(r.opts.Dir, fmt.Sprintf("%s_%d%s", r.guid, r.instance, statsfile.Extension))
	if err := r.w.Open(path, session); err != nil {
		return err
	}
	for _, md := range r.extra {
		r.w.Metadata().AddSupportedEvent(md)
	}
	r.heartbeat = heartbeat
	r.lastPoll = now
	return nil
}

func (r *Recorder) record(id events.EventID, payload events.Payload) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.w.RecordEvent(id, r.elapsed(), payload)
}

// elapsed is the record timestamp, seconds since the current file's session started
func (r *Recorder) elapsed() float32 {
	return r.clock.Now() - r.w.Session().StartTime
}

func (r *Recorder) teamIndex(t Team) int {
	if t == nil {
		return events.IndexNone
	}
	return r.w.Metadata().ResolveTeamIndex(statsfile.TeamInfo{
		TeamIndex: t.Index(),
		TeamName:  t.Name(),
		TeamColor: t.Color(),
		MaxSize:   t.MaxSize(),
	})
}

func (r *Recorder) playerState(c Controller) events.PlayerState {
	if c == nil {
		return events.NewPlayerState(events.IndexNone, events.Rotator{}, events.Vector{})
	}
	index := r.w.Metadata().ResolvePlayerIndex(statsfile.PlayerInfo{
		ControllerName: c.ControllerName(),
		PlayerName:     c.PlayerName(),
		UniqueID:       c.UniqueID(),
		IsBot:          c.IsBot(),
	})
	return events.NewPlayerState(index, c.Rotation(), c.Location())
}

// Tick polls player locations once the heartbeat interval has elapsed
func (r *Recorder) Tick() error {
	if !r.IsLogging() || r.heartbeat <= 0 {
		return nil
	}
	now := r.clock.Now()
	if now-r.lastPoll < r.heartbeat {
		return nil
	}
	r.lastPoll = now
	return r.LogPlayerLocations(events.EventPlayerLocationPoll)
}

// LogPlayerLocations records the position of every live controller
func (r *Recorder) LogPlayerLocations(id events.EventID) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	e := &events.PlayerLocationsEvent{}
	for _, c := range r.world.Controllers() {
		if !c.Alive() {
			continue
		}
		if len(e.Players) == events.MaxLocations {
			log.WithField("session", r.SessionKey()).Warn("Location poll truncated")
			break
		}
		e.Players = append(e.Players, r.playerState(c))
	}
	return r.record(id, e)
}
