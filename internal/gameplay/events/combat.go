package events

import (
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

// MaxLocations bounds the entries of one location poll, a record payload can not hold more
const MaxLocations = 0xFFFF / playerStateSize

type PlayerSpawnEvent struct {
	Player    PlayerState
	PawnClass int32
	Team      int32
}

func (e *PlayerSpawnEvent) Type() EventType           { return TypePlayerSpawn }
func (e *PlayerSpawnEvent) PlayerIndex() int          { return e.Player.Index() }
func (e *PlayerSpawnEvent) TeamIndex() int            { return int(e.Team) }
func (e *PlayerSpawnEvent) Size(*archive.Archive) int { return playerStateSize + 8 }
func (e *PlayerSpawnEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	ar.Int32(&e.PawnClass)
	ar.Int32(&e.Team)
}

type PlayerLoginEvent struct {
	Player      PlayerState
	SplitScreen bool
}

func (e *PlayerLoginEvent) Type() EventType  { return TypePlayerLogin }
func (e *PlayerLoginEvent) PlayerIndex() int { return e.Player.Index() }
func (e *PlayerLoginEvent) Size(ar *archive.Archive) int {
	return playerStateSize + ar.OptSize(archive.FeatureSplitScreenLogin, 4)
}
func (e *PlayerLoginEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	ar.OptBool(archive.FeatureSplitScreenLogin, &e.SplitScreen, false)
}

// PlayerKillDeathEvent records Player killing Target
type PlayerKillDeathEvent struct {
	Player      PlayerState
	Target      PlayerState
	DamageClass int32
	KillType    int32
}

func (e *PlayerKillDeathEvent) Type() EventType  { return TypePlayerKillDeath }
func (e *PlayerKillDeathEvent) PlayerIndex() int { return e.Player.Index() }
func (e *PlayerKillDeathEvent) TargetIndex() int { return e.Target.Index() }
func (e *PlayerKillDeathEvent) Size(ar *archive.Archive) int {
	return 2*playerStateSize + 4 + ar.OptSize(archive.FeatureKillType, 4)
}
func (e *PlayerKillDeathEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	e.Target.Serialize(ar)
	ar.Int32(&e.DamageClass)
	ar.OptInt32(archive.FeatureKillType, &e.KillType, 0)
}

type PlayerPlayerEvent struct {
	Player PlayerState
	Target PlayerState
}

func (e *PlayerPlayerEvent) Type() EventType           { return TypePlayerPlayer }
func (e *PlayerPlayerEvent) PlayerIndex() int          { return e.Player.Index() }
func (e *PlayerPlayerEvent) TargetIndex() int          { return e.Target.Index() }
func (e *PlayerPlayerEvent) Size(*archive.Archive) int { return 2 * playerStateSize }
func (e *PlayerPlayerEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	e.Target.Serialize(ar)
}

type WeaponIntEvent struct {
	Player      PlayerState
	WeaponClass int32
	Value       int32
}

func (e *WeaponIntEvent) Type() EventType           { return TypeWeaponInt }
func (e *WeaponIntEvent) PlayerIndex() int          { return e.Player.Index() }
func (e *WeaponIntEvent) Size(*archive.Archive) int { return playerStateSize + 8 }
func (e *WeaponIntEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	ar.Int32(&e.WeaponClass)
	ar.Int32(&e.Value)
}

// DamageIntEvent records damage dealt by Player to Target
type DamageIntEvent struct {
	Player      PlayerState
	Target      PlayerState
	DamageClass int32
	Value       int32
}

func (e *DamageIntEvent) Type() EventType           { return TypeDamageInt }
func (e *DamageIntEvent) PlayerIndex() int          { return e.Player.Index() }
func (e *DamageIntEvent) TargetIndex() int          { return e.Target.Index() }
func (e *DamageIntEvent) Size(*archive.Archive) int { return 2*playerStateSize + 8 }
func (e *DamageIntEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	e.Target.Serialize(ar)
	ar.Int32(&e.DamageClass)
	ar.Int32(&e.Value)
}

type ProjectileIntEvent struct {
	Player          PlayerState
	ProjectileClass int32
	Value           int32
}

func (e *ProjectileIntEvent) Type() EventType           { return TypeProjectileInt }
func (e *ProjectileIntEvent) PlayerIndex() int          { return e.Player.Index() }
func (e *ProjectileIntEvent) Size(*archive.Archive) int { return playerStateSize + 8 }
func (e *ProjectileIntEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	ar.Int32(&e.ProjectileClass)
	ar.Int32(&e.Value)
}

// PlayerLocationsEvent is one periodic poll of every live player
type PlayerLocationsEvent struct {
	Players []PlayerState
}

func (e *PlayerLocationsEvent) Type() EventType { return TypePlayerLocations }
func (e *PlayerLocationsEvent) Size(*archive.Archive) int {
	return 4 + len(e.Players)*playerStateSize
}
func (e *PlayerLocationsEvent) Serialize(ar *archive.Archive) {
	n := len(e.Players)
	ar.Count(&n, MaxLocations)
	if ar.Err() != nil {
		return
	}
	if ar.IsLoading() {
		e.Players = make([]PlayerState, n)
	}
	for i := range e.Players {
		e.Players[i].Serialize(ar)
	}
}
