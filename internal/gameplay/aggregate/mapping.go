package aggregate

import (
	"github.com/snowflk/statsdb/internal/gameplay/events"
)

// NoAggregate marks a missing side of a mapping
const NoAggregate events.AggregateID = 0

// Target holds the aggregate IDs one raw event feeds. Forward is credited to
// the acting player, Reverse to the target of two player events.
type Target struct {
	Forward events.AggregateID
	Reverse events.AggregateID
}

// Mapping translates stream event IDs into aggregate IDs. Unmapped events are not aggregated.
type Mapping struct {
	targets map[events.EventID]Target
}

func NewMapping() *Mapping {
	return &Mapping{targets: make(map[events.EventID]Target)}
}

func (m *Mapping) Set(id events.EventID, forward, reverse events.AggregateID) {
	m.targets[id] = Target{Forward: forward, Reverse: reverse}
}

func (m *Mapping) Lookup(id events.EventID) (Target, bool) {
	t, ok := m.targets[id]
	return t, ok
}

// DefaultMapping covers every engine event
func DefaultMapping() *Mapping {
	m := NewMapping()
	m.Set(events.EventMatchStarted, events.AggregateMatchesStarted, NoAggregate)
	m.Set(events.EventMatchEnded, events.AggregateMatchesEnded, NoAggregate)
	m.Set(events.EventRoundStarted, events.AggregateRoundsStarted, NoAggregate)
	m.Set(events.EventRoundEnded, events.AggregateRoundsEnded, NoAggregate)

	m.Set(events.EventTeamScore, events.AggregateTeamScore, NoAggregate)
	m.Set(events.EventTeamMatchWon, events.AggregateTeamMatchesWon, NoAggregate)
	m.Set(events.EventTeamRoundWon, events.AggregateTeamRoundsWon, NoAggregate)

	m.Set(events.EventPlayerLogin, events.AggregatePlayerLogins, NoAggregate)
	m.Set(events.EventPlayerLogout, events.AggregatePlayerLogouts, NoAggregate)
	m.Set(events.EventPlayerSpawn, events.AggregatePlayerSpawns, NoAggregate)
	m.Set(events.EventPlayerMatchWon, events.AggregatePlayerMatchesWon, NoAggregate)
	m.Set(events.EventPlayerRoundWon, events.AggregatePlayerRoundsWon, NoAggregate)
	m.Set(events.EventPlayerScore, events.AggregatePlayerScore, NoAggregate)

	m.Set(events.EventPlayerKill, events.AggregatePlayerKills, events.AggregatePlayerDeaths)
	m.Set(events.EventPlayerTeamKill, events.AggregatePlayerTeamKills, events.AggregatePlayerTeamKilled)
	m.Set(events.EventPlayerSuicide, events.AggregatePlayerSuicides, events.AggregatePlayerDeaths)

	m.Set(events.EventWeaponFired, events.AggregateWeaponFired, NoAggregate)
	m.Set(events.EventDamageDealt, events.AggregateDamageDealt, events.AggregateDamageReceived)
	m.Set(events.EventProjectileFired, events.AggregateProjectileFired, NoAggregate)
	return m
}
