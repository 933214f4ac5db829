package localdb

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/snowflk/statsdb/internal/gameplay/aggregate"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
	"github.com/snowflk/statsdb/internal/persistence"
	"github.com/snowflk/statsdb/internal/persistence/sqlstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func state(index int) events.PlayerState {
	return events.NewPlayerState(index, events.Rotator{}, events.Vector{})
}

// writeMatch records one round in which Malcolm (red) damages and kills Othello (blue).
// Records: 0 match started, 1 round started, 2-3 spawns, 4 damage, 5 kill,
// 6 red team score, 7 round ended, 8 match ended.
func writeMatch(t *testing.T, path, guid string, order binary.ByteOrder) {
	t.Helper()
	w := statsfile.NewWriter(statsfile.WriterOptions{Order: order})
	require.NoError(t, w.Open(path, statsfile.SessionInfo{GUID: guid, MapName: "DM-Deck", Multiplayer: true}))
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
	record(events.EventDamageDealt, 4, &events.DamageIntEvent{Player: state(p0), Target: state(p1), DamageClass: int32(rocket), Value: 80})
	record(events.EventPlayerKill, 5, &events.PlayerKillDeathEvent{Player: state(p0), Target: state(p1), DamageClass: int32(rocket)})
	record(events.EventTeamScore, 5, &events.TeamIntEvent{Team: int32(red), Value: 1})
	record(events.EventRoundEnded, 9, &events.GameIntEvent{Value: 1})
	record(events.EventMatchEnded, 10, &events.GameStringEvent{})
	require.NoError(t, w.Close(10))
}

type fixture struct {
	dir  string
	path string
	db   *Database
}

func newFixture(t *testing.T, remote persistence.Storage) *fixture {
	f := &fixture{dir: t.TempDir()}
	f.path = filepath.Join(f.dir, "match-1_0"+statsfile.Extension)
	writeMatch(t, f.path, "match-1", binary.LittleEndian)
	db, err := Open(Options{Dir: filepath.Join(f.dir, "db"), Remote: remote})
	require.NoError(t, err)
	f.db = db
	t.Cleanup(func() { _ = db.Close() })
	return f
}

func collect(t *testing.T, db *Database, rs RecordSet) []string {
	t.Helper()
	lines := make([]string, 0)
	require.NoError(t, db.VisitEntries(rs, VisitorFunc(func(e *Entry) error {
		lines = append(lines, e.Describe())
		return nil
	})))
	return lines
}

func TestDatabase_AddFile(t *testing.T) {
	f := newFixture(t, nil)
	key, err := f.db.AddFile(f.path)
	require.NoError(t, err)
	assert.Equal(t, "match-1_0", key)

	// adding the file again replaces the session
	_, err = f.db.AddFile(f.path)
	require.NoError(t, err)

	sessions, err := f.db.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "match-1", sessions[0].SessionID)
	assert.Equal(t, "DM-Deck", sessions[0].MapName)
	assert.Equal(t, uint64(9), sessions[0].Events)
	assert.Equal(t, f.path, sessions[0].Path)

	index, err := f.db.Index(key)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 5, 6}, index.TeamEvents(0), "player events carry the team the player spawned for")
	assert.Equal(t, []int{0, 1, 7, 8}, index.GameEvents())

	meta, err := f.db.Metadata(key)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.NumPlayers())
}

func TestDatabase_Query(t *testing.T) {
	f := newFixture(t, nil)
	key, err := f.db.AddFile(f.path)
	require.NoError(t, err)

	rs, err := f.db.Query(SearchQuery{
		SessionIDs:    []string{key},
		PlayerIndices: []int{0},
		EventIDs:      []events.EventID{events.EventPlayerKill, events.EventDamageDealt},
	})
	require.NoError(t, err)
	require.Len(t, rs.Results, 1)
	assert.Equal(t, []int{4, 5}, rs.Results[0].Events)
	assert.Equal(t, 2, rs.Len())

	lines := collect(t, f.db, rs)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "player=Malcolm target=Othello")
	assert.Contains(t, lines[0], "damage=UTDmgType_Rocket value=80")
	assert.Contains(t, lines[1], "PlayerKill")

	// without the stats file the stored rows are visited
	require.NoError(t, os.Remove(f.path))
	assert.Equal(t, lines, collect(t, f.db, rs))

	_, err = f.db.Query(SearchQuery{SessionIDs: []string{"missing_0"}})
	assert.ErrorIs(t, err, persistence.ErrSessionNotExist)
	_, err = f.db.Query(SearchQuery{SessionIDs: []string{"match-1:0"}})
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestDatabase_VisitStops(t *testing.T) {
	f := newFixture(t, nil)
	key, err := f.db.AddFile(f.path)
	require.NoError(t, err)
	rs, err := f.db.Query(SearchQuery{SessionIDs: []string{key}, PlayerIndices: []int{AllPlayers}, TeamIndices: []int{AllTeams}})
	require.NoError(t, err)
	require.Equal(t, 5, rs.Len(), "game events are left out")

	visited := 0
	err = f.db.VisitEntries(rs, VisitorFunc(func(e *Entry) error {
		visited++
		if e.Index == 4 {
			return ErrStopVisit
		}
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, visited)
}

func TestDatabase_BigEndianSession(t *testing.T) {
	f := newFixture(t, nil)
	path := filepath.Join(f.dir, "match-be_0"+statsfile.Extension)
	writeMatch(t, path, "match-be", binary.BigEndian)
	little, err := f.db.AddFile(f.path)
	require.NoError(t, err)
	big, err := f.db.AddFile(path)
	require.NoError(t, err)

	rs, err := f.db.Query(SearchQuery{SessionIDs: []string{little, big}, TeamIndices: []int{1}})
	require.NoError(t, err)
	require.Len(t, rs.Results, 2)
	assert.Equal(t, rs.Results[0].Events, rs.Results[1].Events)

	require.NoError(t, os.Remove(path))
	lines := collect(t, f.db, RecordSet{Results: rs.Results[1:]})
	assert.Equal(t, collect(t, f.db, RecordSet{Results: rs.Results[:1]}), lines)
}

func TestDatabase_Push(t *testing.T) {
	remote, err := sqlstorage.New(sqlstorage.Options{
		Driver:   sqlstorage.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "remote.db"),
	})
	require.NoError(t, err)
	f := newFixture(t, remote)
	key, err := f.db.AddFile(f.path)
	require.NoError(t, err)

	remoteKey, err := f.db.Push(key)
	require.NoError(t, err)
	assert.Equal(t, "match-1:0", remoteKey)
	// pushing again replaces the remote copy
	_, err = f.db.Push(key)
	require.NoError(t, err)

	keys, err := f.db.RemoteSessions(persistence.Pattern("match-*"))
	require.NoError(t, err)
	assert.Equal(t, []string{remoteKey}, keys)

	query := SearchQuery{PlayerIndices: []int{1}, Window: &TimeWindow{Start: 2, End: 9}}
	query.SessionIDs = []string{key, remoteKey}
	rs, err := f.db.Query(query)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 7}, rs.Results[0].Events)
	assert.Equal(t, rs.Results[0].Events, rs.Results[1].Events)

	local := collect(t, f.db, RecordSet{Results: rs.Results[:1]})
	assert.Equal(t, local, collect(t, f.db, RecordSet{Results: rs.Results[1:]}))

	localReport, err := f.db.Aggregates(key)
	require.NoError(t, err)
	remoteReport, err := f.db.Aggregates(remoteKey)
	require.NoError(t, err)
	assert.Equal(t, localReport, remoteReport)

	kills := 0.0
	for _, e := range localReport {
		if e.Scope == aggregate.ScopePlayer && e.Owner == 0 && e.Period == 1 && e.ID == events.AggregatePlayerKills {
			kills = e.Value
		}
	}
	assert.Equal(t, 1.0, kills)

	_, err = f.db.Push(remoteKey)
	assert.Error(t, err)
}
