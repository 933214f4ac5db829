package events

import (
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

// StatGroupCategory groups events for display and filtering
type StatGroupCategory int32

const (
	GroupNone StatGroupCategory = iota
	GroupGame
	GroupTeam
	GroupPlayer
	GroupWeapon
	GroupDamage
	GroupProjectile
	GroupPawn
	GroupGameSpecific
	GroupAggregate
)

type StatGroup struct {
	Group StatGroupCategory
	Level int32
}

// MetaData describes one EventID a file may contain
type MetaData struct {
	EventID   EventID
	EventName string
	StatGroup StatGroup
	// DataType is the payload shape the event is recorded with
	DataType EventType
}

// Serialize writes the full form, or the IDs only form when names were stripped from the file
func (m *MetaData) Serialize(ar *archive.Archive, idsOnly bool) {
	id := int32(m.EventID)
	ar.Int32(&id)
	if !idsOnly {
		ar.String(&m.EventName)
		group := int32(m.StatGroup.Group)
		ar.OptInt32(archive.FeatureEventStatGroup, &group, int32(GroupNone))
		ar.OptInt32(archive.FeatureEventStatGroup, &m.StatGroup.Level, 0)
		m.StatGroup.Group = StatGroupCategory(group)
	}
	dataType := int32(m.DataType)
	ar.Int32(&dataType)
	if ar.IsLoading() {
		m.EventID = EventID(id)
		m.DataType = EventType(dataType)
	}
}

// EngineEvents lists the meaning codes every recorder supports
func EngineEvents() []MetaData {
	return []MetaData{
		{EventMatchStarted, "MatchStarted", StatGroup{GroupGame, 0}, TypeGameString},
		{EventMatchEnded, "MatchEnded", StatGroup{GroupGame, 0}, TypeGameString},
		{EventRoundStarted, "RoundStarted", StatGroup{GroupGame, 0}, TypeGameInt},
		{EventRoundEnded, "RoundEnded", StatGroup{GroupGame, 0}, TypeGameInt},
		{EventGameString, "GameString", StatGroup{GroupGame, 1}, TypeGameString},
		{EventTeamScore, "TeamScore", StatGroup{GroupTeam, 0}, TypeTeamInt},
		{EventTeamMatchWon, "TeamMatchWon", StatGroup{GroupTeam, 0}, TypeTeamString},
		{EventTeamRoundWon, "TeamRoundWon", StatGroup{GroupTeam, 0}, TypeTeamString},
		{EventPlayerLogin, "PlayerLogin", StatGroup{GroupPlayer, 0}, TypePlayerLogin},
		{EventPlayerLogout, "PlayerLogout", StatGroup{GroupPlayer, 0}, TypePlayerString},
		{EventPlayerSpawn, "PlayerSpawn", StatGroup{GroupPlayer, 0}, TypePlayerSpawn},
		{EventPlayerMatchWon, "PlayerMatchWon", StatGroup{GroupPlayer, 0}, TypePlayerString},
		{EventPlayerRoundWon, "PlayerRoundWon", StatGroup{GroupPlayer, 0}, TypePlayerString},
		{EventPlayerScore, "PlayerScore", StatGroup{GroupPlayer, 1}, TypePlayerInt},
		{EventPlayerKill, "PlayerKill", StatGroup{GroupPlayer, 0}, TypePlayerKillDeath},
		{EventPlayerTeamKill, "PlayerTeamKill", StatGroup{GroupPlayer, 0}, TypePlayerKillDeath},
		{EventPlayerSuicide, "PlayerSuicide", StatGroup{GroupPlayer, 0}, TypePlayerKillDeath},
		{EventWeaponFired, "WeaponFired", StatGroup{GroupWeapon, 1}, TypeWeaponInt},
		{EventDamageDealt, "DamageDealt", StatGroup{GroupDamage, 1}, TypeDamageInt},
		{EventProjectileFired, "ProjectileFired", StatGroup{GroupProjectile, 1}, TypeProjectileInt},
		{EventPlayerLocationPoll, "PlayerLocationPoll", StatGroup{GroupPlayer, 2}, TypePlayerLocations},
	}
}
