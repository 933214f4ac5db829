// Package gamestate derives match, round, roster and life span state from an event stream.
package gamestate

import (
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
)

// LifeSpan is one closed stretch of a player being alive
type LifeSpan struct {
	Player   int
	Team     int
	Round    int
	Start    float32
	End      float32
	Duration float32
}

// LifeSpanListener observes every life span exactly once, when it is closed
type LifeSpanListener interface {
	LifeSpanEnded(span LifeSpan)
}

type PlayerState struct {
	Index     int
	Team      int
	Alive     bool
	SpawnTime float32
	TimeAlive float32
	Lives     int
}

type Tracker struct {
	listeners []LifeSpanListener
	path      string

	multiplayer     bool
	matchInProgress bool
	roundInProgress bool
	round           int
	roundCount      int
	lastTimestamp   float32

	players map[int]*PlayerState
	rosters map[int]map[int]struct{}
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	t.matchInProgress = false
	t.roundInProgress = false
	t.round = 0
	t.roundCount = 0
	t.lastTimestamp = 0
	t.players = make(map[int]*PlayerState)
	t.rosters = make(map[int]map[int]struct{})
}

// AddListener registers a listener for closed life spans
func (t *Tracker) AddListener(l LifeSpanListener) {
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) PreProcessStream(info statsfile.StreamInfo) {
	t.reset()
	t.path = info.Path
	t.multiplayer = info.Session != nil && info.Session.Multiplayer
}

func (t *Tracker) HandleEvent(rec *statsfile.EventRecord, payload events.Payload) {
	ts := rec.Header.TimeStamp
	if ts > t.lastTimestamp {
		t.lastTimestamp = ts
	}
	switch rec.Header.EventID {
	case events.EventMatchStarted:
		t.matchInProgress = true
		return
	case events.EventMatchEnded:
		t.CleanupRoundState(ts)
		t.roundInProgress = false
		t.matchInProgress = false
		return
	case events.EventRoundStarted:
		if t.roundInProgress {
			t.CleanupRoundState(ts)
		}
		round := t.round + 1
		if v, ok := payload.(*events.GameIntEvent); ok {
			round = int(v.Value)
		}
		t.round = round
		t.roundCount++
		t.roundInProgress = true
		t.matchInProgress = true
		return
	case events.EventRoundEnded:
		t.CleanupRoundState(ts)
		t.roundInProgress = false
		return
	case events.EventPlayerLogout:
		if p, ok := payload.(events.PlayerEvent); ok && t.cleansUpOnLogin(true) {
			t.flushPlayer(p.PlayerIndex(), ts, false)
		}
		return
	}

	switch p := payload.(type) {
	case *events.PlayerSpawnEvent:
		t.spawn(p.PlayerIndex(), int(p.Team), ts)
	case *events.PlayerKillDeathEvent:
		t.flushPlayer(p.TargetIndex(), ts, true)
	case *events.PlayerLoginEvent:
		if t.cleansUpOnLogin(false) {
			t.flushPlayer(p.PlayerIndex(), ts, false)
		}
	}
}

// PostProcessStream closes the life spans of players still alive when the stream ends
func (t *Tracker) PostProcessStream() {
	t.CleanupRoundState(t.lastTimestamp)
}

// cleansUpOnLogin reports whether a login or logout ends the player's current life.
// Multiplayer sessions only close a life for a logout during a round.
func (t *Tracker) cleansUpOnLogin(logout bool) bool {
	if !t.multiplayer {
		return true
	}
	return logout && t.roundInProgress
}

func (t *Tracker) player(index int) *PlayerState {
	p, ok := t.players[index]
	if !ok {
		p = &PlayerState{Index: index, Team: events.IndexNone}
		t.players[index] = p
	}
	return p
}

func (t *Tracker) spawn(index, team int, ts float32) {
	if index == events.IndexNone {
		return
	}
	p := t.player(index)
	if p.Alive {
		// respawn without a recorded death
		t.flushPlayer(index, ts, false)
	}
	if team != p.Team {
		t.moveToTeam(p, team)
	}
	p.Alive = true
	p.SpawnTime = ts
}

func (t *Tracker) moveToTeam(p *PlayerState, team int) {
	if roster, ok := t.rosters[p.Team]; ok {
		delete(roster, p.Index)
	}
	p.Team = team
	if team < 0 {
		return
	}
	roster, ok := t.rosters[team]
	if !ok {
		roster = make(map[int]struct{})
		t.rosters[team] = roster
	}
	roster[p.Index] = struct{}{}
}

// flushPlayer closes the player's life span. A player without a recorded spawn contributes nothing.
func (t *Tracker) flushPlayer(index int, ts float32, warn bool) {
	if index == events.IndexNone {
		return
	}
	p, ok := t.players[index]
	if !ok || !p.Alive {
		if warn {
			log.WithFields(log.Fields{"path": t.path, "player": index, "time": ts}).Warn("No recorded spawn for player")
		}
		return
	}
	duration := ts - p.SpawnTime
	if duration < 0 {
		duration = 0
	}
	span := LifeSpan{
		Player:   index,
		Team:     p.Team,
		Round:    t.round,
		Start:    p.SpawnTime,
		End:      ts,
		Duration: duration,
	}
	p.Alive = false
	p.SpawnTime = 0
	p.TimeAlive += duration
	p.Lives++
	for _, l := range t.listeners {
		l.LifeSpanEnded(span)
	}
}

// CleanupRoundState closes the life span of every player still alive
func (t *Tracker) CleanupRoundState(ts float32) {
	for _, index := range t.sortedPlayers() {
		if t.players[index].Alive {
			t.flushPlayer(index, ts, false)
		}
	}
}

func (t *Tracker) sortedPlayers() []int {
	indices := make([]int, 0, len(t.players))
	for index := range t.players {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

func (t *Tracker) MatchInProgress() bool {
	return t.matchInProgress
}

func (t *Tracker) RoundInProgress() bool {
	return t.roundInProgress
}

// Round is the number of the current or last round, 0 before the first round starts
func (t *Tracker) Round() int {
	return t.round
}

// RoundCount is the number of rounds started in the stream
func (t *Tracker) RoundCount() int {
	return t.roundCount
}

// PlayerTeam returns the team a player last spawned for, or IndexNone
func (t *Tracker) PlayerTeam(index int) int {
	if p, ok := t.players[index]; ok {
		return p.Team
	}
	return events.IndexNone
}

func (t *Tracker) Player(index int) (PlayerState, bool) {
	p, ok := t.players[index]
	if !ok {
		return PlayerState{}, false
	}
	return *p, true
}

// TeamRoster returns the players of a team in index order
func (t *Tracker) TeamRoster(team int) []int {
	roster := make([]int, 0, len(t.rosters[team]))
	for index := range t.rosters[team] {
		roster = append(roster, index)
	}
	sort.Ints(roster)
	return roster
}
