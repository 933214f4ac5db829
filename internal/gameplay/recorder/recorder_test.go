package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type team struct {
	index int32
	name  string
}

func (t *team) Index() int32   { return t.index }
func (t *team) Name() string   { return t.name }
func (t *team) Color() uint32  { return 0xff0000ff }
func (t *team) MaxSize() int32 { return 4 }

type controller struct {
	name  string
	team  *team
	alive bool
	loc   events.Vector
}

func (c *controller) ControllerName() string   { return "PC_" + c.name }
func (c *controller) PlayerName() string       { return c.name }
func (c *controller) UniqueID() string         { return "id-" + c.name }
func (c *controller) IsBot() bool              { return false }
func (c *controller) Location() events.Vector  { return c.loc }
func (c *controller) Rotation() events.Rotator { return events.Rotator{Yaw: 16384} }
func (c *controller) Alive() bool              { return c.alive }
func (c *controller) Team() Team {
	if c.team == nil {
		return nil
	}
	return c.team
}

type world struct {
	controllers []Controller
}

func (w *world) TitleID() int32               { return 42 }
func (w *world) Platform() statsfile.Platform { return statsfile.PlatformLinux }
func (w *world) Language() string             { return "INT" }
func (w *world) GameClass() string            { return "UTGame.UTTeamGame" }
func (w *world) MapName() string              { return "CTF-Coret" }
func (w *world) MapURL() string               { return "CTF-Coret?Game=UTGame.UTTeamGame" }
func (w *world) OwningNetID() string          { return "" }
func (w *world) GameTypeID() int32            { return 2 }
func (w *world) PlaylistID() int32            { return 7 }
func (w *world) Multiplayer() bool            { return true }
func (w *world) Controllers() []Controller    { return w.controllers }

type fixture struct {
	rec   *Recorder
	now   float32
	red   *team
	alice *controller
	bob   *controller
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{red: &team{index: 0, name: "Red"}}
	f.alice = &controller{name: "alice", team: f.red, alive: true, loc: events.Vector{X: 1}}
	f.bob = &controller{name: "bob", alive: true}
	w := &world{controllers: []Controller{f.alice, f.bob, &controller{name: "spectator"}}}
	f.rec = New(w, ClockFunc(func() float32 { return f.now }), Options{
		Dir:       t.TempDir(),
		NewGUID:   func() string { return "8c6e4f7a" },
		WallClock: func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

type collector struct {
	records []*statsfile.EventRecord
	payload []events.Payload
}

func (c *collector) PreProcessStream(statsfile.StreamInfo) {}

func (c *collector) PostProcessStream() {}

func (c *collector) HandleEvent(rec *statsfile.EventRecord, p events.Payload) {
	c.records = append(c.records, rec)
	c.payload = append(c.payload, p)
}

func read(t *testing.T, path string) (*statsfile.Reader, *collector) {
	t.Helper()
	r := statsfile.NewReader(nil)
	require.NoError(t, r.Open(path))
	c := &collector{}
	r.RegisterHandler(c)
	require.NoError(t, r.ProcessStream())
	return r, c
}

func TestRecorder_Session(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rec.StartLogging(0))
	assert.True(t, f.rec.IsLogging())
	assert.Equal(t, "8c6e4f7a_0"+statsfile.Extension, filepath.Base(f.rec.Path()))

	f.now = 1
	require.NoError(t, f.rec.LogGameIntEvent(events.EventRoundStarted, 1))
	require.NoError(t, f.rec.LogPlayerSpawnEvent(events.EventPlayerSpawn, f.alice, "UTPawn"))
	f.now = 2
	require.NoError(t, f.rec.LogDamageIntEvent(events.EventDamageDealt, f.alice, "UTDmgType_Rocket", f.bob, 80))
	require.NoError(t, f.rec.LogPlayerKillDeathEvent(events.EventPlayerKill, f.alice, f.bob, "UTDmgType_Rocket", 1))
	require.NoError(t, f.rec.LogTeamIntEvent(events.EventTeamScore, f.red, 1))
	params := &events.GenericParamListEvent{}
	params.SetString("flag", "blue")
	require.NoError(t, f.rec.LogGenericParamListEvent(events.EventGameString, params))
	f.now = 30
	require.NoError(t, f.rec.EndLogging())
	assert.False(t, f.rec.IsLogging())
	assert.ErrorIs(t, f.rec.LogGameIntEvent(events.EventRoundEnded, 1), ErrNotLogging)

	r, c := read(t, f.rec.Path())
	defer r.Close()
	assert.Equal(t, "8c6e4f7a", r.SessionID())
	assert.Equal(t, "2026.10.17-12.00.00", r.SessionTimestamp())
	assert.Equal(t, float32(30), r.SessionDuration())
	assert.Equal(t, statsfile.PlatformLinux, r.Platform())
	require.Len(t, c.records, 6)

	meta := r.Metadata()
	require.Equal(t, 2, meta.NumPlayers())
	require.Equal(t, 1, meta.NumTeams())
	assert.Equal(t, 1, meta.DamageClasses.Len())

	spawn := c.payload[1].(*events.PlayerSpawnEvent)
	assert.Equal(t, 0, spawn.PlayerIndex())
	assert.Equal(t, 0, spawn.TeamIndex())
	assert.Equal(t, "UTPawn", meta.PawnClasses.Name(int(spawn.PawnClass)))

	kill := c.payload[3].(*events.PlayerKillDeathEvent)
	assert.Equal(t, 1, kill.TargetIndex())
	assert.Equal(t, float32(2), c.records[3].Header.TimeStamp)
	bob, _ := meta.Player(kill.TargetIndex())
	assert.Equal(t, "PC_bob", bob.ControllerName)

	flag, err := c.payload[5].(*events.GenericParamListEvent).String("flag")
	require.NoError(t, err)
	assert.Equal(t, "blue", flag)
}

func TestRecorder_ResetKeepsGUID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rec.StartLogging(0))
	require.NoError(t, f.rec.LogGameStringEvent(events.EventMatchStarted, "CTF-Coret"))
	first := f.rec.Path()

	f.now = 10
	require.NoError(t, f.rec.ResetLogging(0))
	assert.Equal(t, "8c6e4f7a:1", f.rec.SessionKey())
	assert.NotEqual(t, first, f.rec.Path())
	require.NoError(t, f.rec.LogGameStringEvent(events.EventMatchStarted, "CTF-Coret"))
	f.now = 12.5
	require.NoError(t, f.rec.LogGameIntEvent(events.EventRoundStarted, 1))
	require.NoError(t, f.rec.EndLogging())

	r, _ := read(t, first)
	assert.Equal(t, int32(0), r.Session().SessionInstance)
	assert.Equal(t, float32(10), r.Session().EndTime)
	r.Close()

	r, c := read(t, f.rec.Path())
	defer r.Close()
	assert.Equal(t, "8c6e4f7a", r.SessionID())
	assert.Equal(t, int32(1), r.Session().SessionInstance)
	assert.Equal(t, float32(10), r.Session().StartTime)
	require.Len(t, c.records, 2)
	assert.Equal(t, float32(0), c.records[0].Header.TimeStamp, "timestamps restart with the new file")
	assert.Equal(t, float32(2.5), c.records[1].Header.TimeStamp)
}

func TestRecorder_HeartbeatPolls(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rec.StartLogging(5))
	for _, now := range []float32{1, 4.9, 5, 7, 10.5} {
		f.now = now
		require.NoError(t, f.rec.Tick())
	}
	require.NoError(t, f.rec.EndLogging())

	r, c := read(t, f.rec.Path())
	defer r.Close()
	require.Len(t, c.records, 2, "polls at 5 and 10.5")
	assert.Equal(t, float32(10.5), c.records[1].Header.TimeStamp)
	poll := c.payload[0].(*events.PlayerLocationsEvent)
	require.Len(t, poll.Players, 2, "only live controllers are polled")
	assert.Equal(t, events.Vector{X: 1}, poll.Players[0].Location)
	assert.Equal(t, 16384, poll.Players[0].Rotation().Yaw)
}

func TestRecorder_RegisteredEvents(t *testing.T) {
	f := newFixture(t)
	f.rec.RegisterEvent(events.MetaData{EventID: 5000, EventName: "FlagCaptured", DataType: events.TypeTeamInt})
	require.NoError(t, f.rec.StartLogging(0))
	require.NoError(t, f.rec.LogTeamIntEvent(5000, f.red, 1))
	require.NoError(t, f.rec.EndLogging())

	r, _ := read(t, f.rec.Path())
	defer r.Close()
	assert.Equal(t, "FlagCaptured", r.Metadata().EventName(5000))
	assert.Equal(t, "PlayerKill", r.Metadata().EventName(events.EventPlayerKill))
}
