package localdb

import (
	"testing"

	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/persistence"
	"github.com/stretchr/testify/assert"
)

func row(index int, id events.EventID, ts float32, player, target, team, round int) persistence.RawEvent {
	return persistence.RawEvent{
		Index:       index,
		EventID:     uint16(id),
		Timestamp:   ts,
		PlayerIndex: player,
		TargetIndex: target,
		TeamIndex:   team,
		Round:       round,
	}
}

func sampleIndex() *SessionIndex {
	return NewSessionIndex("guid_0", []persistence.RawEvent{
		row(5, events.EventPlayerKill, 5, 0, 1, 0, 1),
		row(0, events.EventMatchStarted, 0, -1, -1, -1, 0),
		row(1, events.EventRoundStarted, 1, -1, -1, -1, 1),
		row(2, events.EventPlayerSpawn, 2, 0, -1, 0, 1),
		row(3, events.EventPlayerSpawn, 2, 1, -1, 1, 1),
		row(4, events.EventDamageDealt, 4, 0, 1, 0, 1),
		row(6, events.EventTeamScore, 5, -1, -1, 0, 1),
		row(7, events.EventRoundEnded, 9, -1, -1, -1, 1),
	})
}

func TestSessionIndex_Multimaps(t *testing.T) {
	s := sampleIndex()
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, []int{0, 1}, s.Players())
	assert.Equal(t, []int{0, 1}, s.Teams())
	assert.Equal(t, []int{0, 1}, s.Rounds())
	assert.Equal(t, []int{2, 4, 5}, s.PlayerEvents(0))
	assert.Equal(t, []int{3, 4, 5}, s.PlayerEvents(1), "targets are indexed as players")
	assert.Equal(t, []int{2, 4, 5, 6}, s.TeamEvents(0))
	assert.Equal(t, []int{0, 1, 7}, s.GameEvents())
	assert.Equal(t, []int{2, 3}, s.EventsWithID(events.EventPlayerSpawn))
	assert.Equal(t, []int{0}, s.RoundEvents(0))
}

func TestSessionIndex_Query(t *testing.T) {
	s := sampleIndex()
	tests := []struct {
		name     string
		query    SearchQuery
		expected []int
	}{
		{name: "game events only", query: SearchQuery{}, expected: []int{0, 1, 7}},
		{name: "one player", query: SearchQuery{PlayerIndices: []int{1}}, expected: []int{0, 1, 3, 4, 5, 7}},
		{name: "player and team", query: SearchQuery{PlayerIndices: []int{1}, TeamIndices: []int{0}},
			expected: []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{name: "all players", query: SearchQuery{PlayerIndices: []int{AllPlayers}}, expected: []int{2, 3, 4, 5}},
		{name: "all players and teams", query: SearchQuery{PlayerIndices: []int{AllPlayers}, TeamIndices: []int{AllTeams}},
			expected: []int{2, 3, 4, 5, 6}},
		{name: "event filter", query: SearchQuery{PlayerIndices: []int{AllPlayers}, EventIDs: []events.EventID{events.EventPlayerKill}},
			expected: []int{5}},
		{name: "window is inclusive", query: SearchQuery{TeamIndices: []int{AllTeams}, Window: &TimeWindow{Start: 4, End: 5}},
			expected: []int{4, 5, 6}},
		{name: "event only", query: SearchQuery{EventIDs: []events.EventID{events.EventPlayerKill}}, expected: []int{5}},
		{name: "team event only", query: SearchQuery{EventIDs: []events.EventID{events.EventTeamScore}}, expected: []int{6}},
		{name: "events only, several", query: SearchQuery{EventIDs: []events.EventID{events.EventPlayerSpawn, events.EventRoundEnded}},
			expected: []int{2, 3, 7}},
		{name: "event only in window", query: SearchQuery{EventIDs: []events.EventID{events.EventPlayerSpawn, events.EventTeamScore},
			Window: &TimeWindow{Start: 3, End: 9}}, expected: []int{6}},
		{name: "round filter", query: SearchQuery{PlayerIndices: []int{0}, Rounds: []int{0}}, expected: []int{0}},
		{name: "unknown player", query: SearchQuery{PlayerIndices: []int{9}, EventIDs: []events.EventID{events.EventPlayerKill}},
			expected: []int{}},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, s.Query(test.query), test.name)
	}
}

// Selecting every player equals the union of the single player queries
// without their game events, which are returned once by a plain query
func TestSessionIndex_AllPlayersIsUnion(t *testing.T) {
	s := sampleIndex()
	game := s.GameEvents()
	union := make(map[int]bool)
	for _, p := range s.Players() {
		for _, index := range s.Query(SearchQuery{PlayerIndices: []int{p}}) {
			if !contains(game, index) {
				union[index] = true
			}
		}
	}
	all := s.Query(SearchQuery{PlayerIndices: []int{AllPlayers}})
	assert.Len(t, all, len(union))
	for i, index := range all {
		assert.True(t, union[index])
		if i > 0 {
			assert.Less(t, all[i-1], index, "no event is returned twice")
		}
	}
	for _, index := range game {
		assert.NotContains(t, all, index)
	}
	assert.NotContains(t, all, 6, "team events are not player events")
	assert.Equal(t, game, s.Query(SearchQuery{}))
}

func TestSessionIndex_AllTeamsDropsGameEvents(t *testing.T) {
	s := sampleIndex()
	assert.Equal(t, []int{2, 3, 4, 5, 6}, s.Query(SearchQuery{TeamIndices: []int{AllTeams}}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, s.Query(SearchQuery{TeamIndices: []int{0, 1}}))
}
