package aggregate

import (
	"path/filepath"
	"testing"

	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/gamestate"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func state(index int) events.PlayerState {
	return events.NewPlayerState(index, events.Rotator{}, events.Vector{})
}

// writeMatch records one round in which player 0 (red) kills player 1 (blue)
func writeMatch(t *testing.T, path string) {
	t.Helper()
	w := statsfile.NewWriter(statsfile.WriterOptions{})
	require.NoError(t, w.Open(path, statsfile.SessionInfo{GUID: "match-1", MapName: "DM-Deck", Multiplayer: true}))
	meta := w.Metadata()
	p0 := meta.ResolvePlayerIndex(statsfile.PlayerInfo{ControllerName: "PC_0", PlayerName: "Malcolm"})
	p1 := meta.ResolvePlayerIndex(statsfile.PlayerInfo{ControllerName: "PC_1", PlayerName: "Othello"})
	red := meta.ResolveTeamIndex(statsfile.TeamInfo{TeamIndex: 0, TeamName: "Red"})
	blue := meta.ResolveTeamIndex(statsfile.TeamInfo{TeamIndex: 1, TeamName: "Blue"})
	rocket := meta.DamageClasses.Resolve("UTDmgType_Rocket")
	pawn := meta.PawnClasses.Resolve("UTPawn")

	record := func(id events.EventID, ts float32, p events.Payload) {
		require.NoError(t, w.RecordEvent(id, ts, p))
	}
	record(events.EventMatchStarted, 0, &events.GameStringEvent{Value: "DM-Deck"})
	record(events.EventRoundStarted, 1, &events.GameIntEvent{Value: 1})
	record(events.EventPlayerSpawn, 2, &events.PlayerSpawnEvent{Player: state(p0), PawnClass: int32(pawn), Team: int32(red)})
	record(events.EventPlayerSpawn, 2, &events.PlayerSpawnEvent{Player: state(p1), PawnClass: int32(pawn), Team: int32(blue)})
	record(events.EventPlayerKill, 5, &events.PlayerKillDeathEvent{Player: state(p0), Target: state(p1), DamageClass: int32(rocket)})
	record(events.EventRoundEnded, 9, &events.GameIntEvent{Value: 1})
	record(events.EventMatchEnded, 10, &events.GameStringEvent{})
	require.NoError(t, w.Close(10))
}

func process(t *testing.T, path string) (*statsfile.Reader, *Aggregator) {
	t.Helper()
	r := statsfile.NewReader(nil)
	require.NoError(t, r.Open(path))
	tracker := gamestate.NewTracker()
	agg := New(tracker, nil)
	r.RegisterHandler(tracker)
	r.RegisterHandler(agg)
	require.NoError(t, r.ProcessStream())
	return r, agg
}

func TestAggregator_Match(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match"+statsfile.Extension)
	writeMatch(t, path)
	r, agg := process(t, path)
	defer r.Close()

	assert.Equal(t, 1, agg.Tracker().RoundCount())
	require.Len(t, agg.Players, 2)
	require.Len(t, agg.Teams, 2)

	killer, victim := &agg.Players[0], &agg.Players[1]
	assert.Equal(t, 1.0, killer.Value(1, events.AggregatePlayerKills))
	assert.Equal(t, 1.0, killer.Value(WholeGame, events.AggregatePlayerKills))
	assert.False(t, killer.Has(1, events.AggregatePlayerDeaths))
	assert.Equal(t, 1.0, victim.Value(1, events.AggregatePlayerDeaths))
	assert.False(t, victim.Has(1, events.AggregatePlayerKills))

	// the victim's life ends at the kill, the killer's at round end
	assert.Equal(t, 7.0, killer.Value(1, events.AggregatePlayerTimeAlive))
	assert.Equal(t, 3.0, victim.Value(1, events.AggregatePlayerTimeAlive))
	assert.Equal(t, 1.0, killer.Value(1, events.AggregatePlayerLives))
	assert.Equal(t, 1.0, victim.Value(WholeGame, events.AggregatePlayerLives))

	assert.Equal(t, 1.0, agg.Teams[0].Value(1, events.AggregatePlayerKills))
	assert.Equal(t, 1.0, agg.Teams[1].Value(1, events.AggregatePlayerDeaths))
	assert.Equal(t, 3.0, agg.Teams[1].Value(1, events.AggregatePlayerTimeAlive))

	assert.Equal(t, 1.0, agg.Game.Value(WholeGame, events.AggregatePlayerKills))
	assert.Equal(t, 2.0, agg.Game.Value(1, events.AggregatePlayerSpawns))
	assert.Equal(t, 10.0, agg.Game.Value(1, events.AggregatePlayerTimeAlive))
	assert.Equal(t, 2.0, agg.Game.Value(WholeGame, events.AggregatePlayerLives))
	assert.Equal(t, 1.0, agg.Game.Value(WholeGame, events.AggregateRoundsStarted))
	assert.Equal(t, 1.0, agg.Game.Value(WholeGame, events.AggregateMatchesStarted))
	assert.False(t, agg.Game.Has(1, events.AggregateMatchesStarted), "the match started before the first round")

	require.Len(t, agg.DamageClasses, 1)
	assert.Equal(t, 1.0, agg.DamageClasses[0].Value(1, events.AggregatePlayerKills))
	require.Len(t, agg.PawnClasses, 1)
	assert.Equal(t, 2.0, agg.PawnClasses[0].Value(WholeGame, events.AggregatePlayerSpawns))
}

func TestAggregator_ReprocessingStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match"+statsfile.Extension)
	writeMatch(t, path)
	r, agg := process(t, path)
	defer r.Close()

	first := agg.Report()
	require.NoError(t, r.ProcessStream())
	assert.Equal(t, first, agg.Report())
}

func TestAggregator_DropsInvalidIndices(t *testing.T) {
	tracker := gamestate.NewTracker()
	agg := New(tracker, nil)
	meta := statsfile.NewMetadata()
	meta.ResolvePlayerIndex(statsfile.PlayerInfo{ControllerName: "PC_0"})
	info := statsfile.StreamInfo{Path: "mem", Metadata: meta}
	tracker.PreProcessStream(info)
	agg.PreProcessStream(info)

	send := func(id events.EventID, p events.Payload) {
		rec := &statsfile.EventRecord{Header: events.RecordHeader{EventType: p.Type(), EventID: id, TimeStamp: 1}}
		tracker.HandleEvent(rec, p)
		agg.HandleEvent(rec, p)
	}
	assert.NotPanics(t, func() {
		send(events.EventPlayerKill, &events.PlayerKillDeathEvent{Player: state(0), Target: state(42), DamageClass: 99})
		send(events.EventWeaponFired, &events.WeaponIntEvent{Player: state(events.IndexNone), WeaponClass: -3, Value: 2})
		send(events.EventGameString, &events.GameStringEvent{Value: "unmapped"})
	})
	assert.Equal(t, 1.0, agg.Players[0].Value(WholeGame, events.AggregatePlayerKills))
	assert.Equal(t, 1.0, agg.Game.Value(WholeGame, events.AggregatePlayerDeaths))
	assert.Equal(t, 2.0, agg.Game.Value(WholeGame, events.AggregateWeaponFired))
	assert.Empty(t, agg.DamageClasses)
}

func TestAggregator_CustomMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match"+statsfile.Extension)
	writeMatch(t, path)

	mapping := NewMapping()
	mapping.Set(events.EventPlayerKill, events.AggregatePlayerScore, NoAggregate)
	r := statsfile.NewReader(nil)
	require.NoError(t, r.Open(path))
	defer r.Close()
	tracker := gamestate.NewTracker()
	agg := New(tracker, mapping)
	r.RegisterHandler(tracker)
	r.RegisterHandler(agg)
	require.NoError(t, r.ProcessStream())

	assert.Equal(t, 1.0, agg.Players[0].Value(1, events.AggregatePlayerScore))
	assert.False(t, agg.Players[1].Has(1, events.AggregatePlayerDeaths))
	assert.False(t, agg.Game.Has(WholeGame, events.AggregatePlayerSpawns))
	// life spans come from the tracker, not the mapping
	assert.Equal(t, 2.0, agg.Game.Value(WholeGame, events.AggregatePlayerLives))
}

func TestAnnotate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "match"+statsfile.Extension)
	dst := filepath.Join(dir, "annotated"+statsfile.Extension)
	writeMatch(t, src)

	report, err := Annotate(src, dst, statsfile.WriterOptions{}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, report)

	r, agg := process(t, dst)
	defer r.Close()
	assert.True(t, r.Header().HasAggregates())
	assert.Equal(t, 7, r.Stats().Dispatched)
	assert.Equal(t, "match-1", r.SessionID())
	assert.Equal(t, report, agg.Report(), "the copied stream aggregates to the same totals")

	stored, err := ReadAggregates(r)
	require.NoError(t, err)
	require.Len(t, stored, len(report))
	for i := range report {
		assert.Equal(t, report[i].Scope, stored[i].Scope)
		assert.Equal(t, report[i].Owner, stored[i].Owner)
		assert.Equal(t, report[i].Period, stored[i].Period)
		assert.Equal(t, report[i].ID, stored[i].ID)
		assert.InDelta(t, report[i].Value, stored[i].Value, 1e-6)
	}
}

func TestEntry_Payload(t *testing.T) {
	p, err := Entry{Scope: ScopeDamage, Owner: 3, Period: 2, Value: 40}.Payload()
	require.NoError(t, err)
	keyed := p.(*events.KeyedAggregateEvent)
	assert.Equal(t, events.TypeDamageAggregate, keyed.Type())
	assert.Equal(t, int32(3), keyed.Owner)

	_, err = Entry{Scope: "arena"}.Payload()
	assert.Error(t, err)

	scope, ok := ScopeOf(events.TypePawnAggregate)
	assert.True(t, ok)
	assert.Equal(t, ScopePawn, scope)
	_, ok = ScopeOf(events.TypeGameInt)
	assert.False(t, ok)
}
