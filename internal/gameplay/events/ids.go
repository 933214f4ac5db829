package events

import "strconv"

// Engine meaning codes
const (
	EventMatchStarted EventID = 1000 + iota
	EventMatchEnded
	EventRoundStarted
	EventRoundEnded
	EventGameString
)

const (
	EventTeamScore EventID = 1010 + iota
	EventTeamMatchWon
	EventTeamRoundWon
)

const (
	EventPlayerLogin EventID = 1020 + iota
	EventPlayerLogout
	EventPlayerSpawn
	EventPlayerMatchWon
	EventPlayerRoundWon
	EventPlayerScore
)

const (
	EventPlayerKill EventID = 1030 + iota
	EventPlayerTeamKill
	EventPlayerSuicide
)

const (
	EventWeaponFired EventID = 1040 + iota
	EventDamageDealt
	EventProjectileFired
	EventPlayerLocationPoll
)

// AggregateID numbers accumulated totals. It is a namespace of its own and only
// shares the record header field with EventID inside the aggregate section.
// A total is kept under the same ID in every bucket it fans out to, so player
// kills summed over a team are that team's kills.
type AggregateID uint16

const (
	AggregateMatchesStarted AggregateID = 10000 + iota
	AggregateMatchesEnded
	AggregateRoundsStarted
	AggregateRoundsEnded
)

const (
	AggregateTeamScore AggregateID = 10100 + iota
	AggregateTeamMatchesWon
	AggregateTeamRoundsWon
)

const (
	AggregatePlayerLogins AggregateID = 10200 + iota
	AggregatePlayerLogouts
	AggregatePlayerSpawns
	AggregatePlayerMatchesWon
	AggregatePlayerRoundsWon
	AggregatePlayerScore
	AggregatePlayerKills
	AggregatePlayerDeaths
	AggregatePlayerTeamKills
	AggregatePlayerTeamKilled
	AggregatePlayerSuicides
	AggregatePlayerTimeAlive
	AggregatePlayerLives
)

const (
	AggregateWeaponFired AggregateID = 10300 + iota
	AggregateDamageDealt
	AggregateDamageReceived
	AggregateProjectileFired
)

var aggregateNames = map[AggregateID]string{
	AggregateMatchesStarted:   "MatchesStarted",
	AggregateMatchesEnded:     "MatchesEnded",
	AggregateRoundsStarted:    "RoundsStarted",
	AggregateRoundsEnded:      "RoundsEnded",
	AggregateTeamScore:        "TeamScore",
	AggregateTeamMatchesWon:   "TeamMatchesWon",
	AggregateTeamRoundsWon:    "TeamRoundsWon",
	AggregatePlayerLogins:     "Logins",
	AggregatePlayerLogouts:    "Logouts",
	AggregatePlayerSpawns:     "Spawns",
	AggregatePlayerMatchesWon: "MatchesWon",
	AggregatePlayerRoundsWon:  "RoundsWon",
	AggregatePlayerScore:      "Score",
	AggregatePlayerKills:      "Kills",
	AggregatePlayerDeaths:     "Deaths",
	AggregatePlayerTeamKills:  "TeamKills",
	AggregatePlayerTeamKilled: "TeamKilled",
	AggregatePlayerSuicides:   "Suicides",
	AggregatePlayerTimeAlive:  "TimeAlive",
	AggregatePlayerLives:      "Lives",
	AggregateWeaponFired:      "WeaponFired",
	AggregateDamageDealt:      "DamageDealt",
	AggregateDamageReceived:   "DamageReceived",
	AggregateProjectileFired:  "ProjectileFired",
}

func (id AggregateID) String() string {
	if name, ok := aggregateNames[id]; ok {
		return name
	}
	return "Aggregate" + strconv.Itoa(int(id))
}
