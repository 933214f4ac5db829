package localdb

import (
	"sort"

	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/persistence"
)

const (
	// AllPlayers in SearchQuery.PlayerIndices selects every player of a session
	AllPlayers = -1
	// AllTeams in SearchQuery.TeamIndices selects every team of a session
	AllTeams = -1
)

type indexedEvent struct {
	ID        events.EventID
	Timestamp float32
	Round     int
}

// SessionIndex maps players, teams, rounds and event IDs of one session to
// the indices of its events. Events with neither a player nor a team are
// kept apart as game events.
type SessionIndex struct {
	Key string

	events    map[int]indexedEvent
	all       []int
	byPlayer  map[int][]int
	byTeam    map[int][]int
	byRound   map[int][]int
	byEventID map[events.EventID][]int
	game      []int
}

func newSessionIndex(key string) *SessionIndex {
	return &SessionIndex{
		Key:       key,
		events:    make(map[int]indexedEvent),
		byPlayer:  make(map[int][]int),
		byTeam:    make(map[int][]int),
		byRound:   make(map[int][]int),
		byEventID: make(map[events.EventID][]int),
	}
}

// NewSessionIndex builds the index of a session from its event rows
func NewSessionIndex(key string, rows []persistence.RawEvent) *SessionIndex {
	sorted := append([]persistence.RawEvent(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	s := newSessionIndex(key)
	for _, row := range sorted {
		s.AddRow(row)
	}
	return s
}

// AddRow indexes one event. Rows must be added in index order.
func (s *SessionIndex) AddRow(row persistence.RawEvent) {
	if _, ok := s.events[row.Index]; ok {
		return
	}
	id := events.EventID(row.EventID)
	s.events[row.Index] = indexedEvent{ID: id, Timestamp: row.Timestamp, Round: row.Round}
	s.all = append(s.all, row.Index)
	s.byEventID[id] = append(s.byEventID[id], row.Index)
	s.byRound[row.Round] = append(s.byRound[row.Round], row.Index)

	if row.PlayerIndex >= 0 {
		s.byPlayer[row.PlayerIndex] = append(s.byPlayer[row.PlayerIndex], row.Index)
	}
	if row.TargetIndex >= 0 && row.TargetIndex != row.PlayerIndex {
		s.byPlayer[row.TargetIndex] = append(s.byPlayer[row.TargetIndex], row.Index)
	}
	if row.TeamIndex >= 0 {
		s.byTeam[row.TeamIndex] = append(s.byTeam[row.TeamIndex], row.Index)
	}
	if row.PlayerIndex < 0 && row.TargetIndex < 0 && row.TeamIndex < 0 {
		s.game = append(s.game, row.Index)
	}
}

func (s *SessionIndex) Len() int {
	return len(s.all)
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Players returns the player indices with at least one event
func (s *SessionIndex) Players() []int { return sortedKeys(s.byPlayer) }
func (s *SessionIndex) Teams() []int   { return sortedKeys(s.byTeam) }
func (s *SessionIndex) Rounds() []int  { return sortedKeys(s.byRound) }

func (s *SessionIndex) EventIDs() []events.EventID {
	ids := make([]events.EventID, 0, len(s.byEventID))
	for id := range s.byEventID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *SessionIndex) PlayerEvents(player int) []int { return s.byPlayer[player] }
func (s *SessionIndex) TeamEvents(team int) []int     { return s.byTeam[team] }
func (s *SessionIndex) RoundEvents(round int) []int   { return s.byRound[round] }
func (s *SessionIndex) GameEvents() []int             { return s.game }

func (s *SessionIndex) EventsWithID(id events.EventID) []int {
	return s.byEventID[id]
}

func contains(indices []int, v int) bool {
	for _, i := range indices {
		if i == v {
			return true
		}
	}
	return false
}

// Query returns the sorted union of the events of every requested player and
// team, narrowed by event ID, round and time window. A query naming event IDs
// but no player or team draws from every event with those IDs. AllPlayers and
// AllTeams expand to every player and team the session has events for and
// drop the game events; otherwise the game events are part of the union.
func (s *SessionIndex) Query(q SearchQuery) []int {
	var ids map[events.EventID]bool
	if len(q.EventIDs) > 0 {
		ids = make(map[events.EventID]bool, len(q.EventIDs))
		for _, id := range q.EventIDs {
			ids[id] = true
		}
	}
	var rounds map[int]bool
	if len(q.Rounds) > 0 {
		rounds = make(map[int]bool, len(q.Rounds))
		for _, r := range q.Rounds {
			rounds[r] = true
		}
	}
	matches := func(index int) bool {
		e := s.events[index]
		if ids != nil && !ids[e.ID] {
			return false
		}
		if rounds != nil && !rounds[e.Round] {
			return false
		}
		return q.Window.Contains(e.Timestamp)
	}

	set := make(map[int]struct{})
	add := func(indices []int) {
		for _, index := range indices {
			if matches(index) {
				set[index] = struct{}{}
			}
		}
	}

	players, teams := q.PlayerIndices, q.TeamIndices
	everyone := false
	if contains(players, AllPlayers) {
		players, everyone = s.Players(), true
	}
	if contains(teams, AllTeams) {
		teams, everyone = s.Teams(), true
	}
	for _, player := range players {
		add(s.byPlayer[player])
	}
	for _, team := range teams {
		add(s.byTeam[team])
	}
	if len(q.PlayerIndices) == 0 && len(q.TeamIndices) == 0 {
		for _, id := range q.EventIDs {
			add(s.byEventID[id])
		}
	}
	if !everyone {
		add(s.game)
	}

	result := make([]int, 0, len(set))
	for index := range set {
		result = append(result, index)
	}
	sort.Ints(result)
	return result
}
