package recorder

import (
	"github.com/snowflk/statsdb/internal/gameplay/events"
)

func (r *Recorder) LogGameStringEvent(id events.EventID, value string) error {
	return r.record(id, &events.GameStringEvent{Value: value})
}

func (r *Recorder) LogGameIntEvent(id events.EventID, value int32) error {
	return r.record(id, &events.GameIntEvent{Value: value})
}

func (r *Recorder) LogGameFloatEvent(id events.EventID, value float32) error {
	return r.record(id, &events.GameFloatEvent{Value: value})
}

func (r *Recorder) LogGamePositionEvent(id events.EventID, location events.Vector, value float32) error {
	return r.record(id, &events.GamePositionEvent{Location: location, Value: value})
}

func (r *Recorder) LogTeamStringEvent(id events.EventID, team Team, value string) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.TeamStringEvent{Team: int32(r.teamIndex(team)), Value: value})
}

func (r *Recorder) LogTeamIntEvent(id events.EventID, team Team, value int32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.TeamIntEvent{Team: int32(r.teamIndex(team)), Value: value})
}

func (r *Recorder) LogTeamFloatEvent(id events.EventID, team Team, value float32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.TeamFloatEvent{Team: int32(r.teamIndex(team)), Value: value})
}

func (r *Recorder) LogPlayerStringEvent(id events.EventID, c Controller, value string) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.PlayerStringEvent{Player: r.playerState(c), Value: value})
}

func (r *Recorder) LogPlayerIntEvent(id events.EventID, c Controller, value int32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.PlayerIntEvent{Player: r.playerState(c), Value: value})
}

func (r *Recorder) LogPlayerFloatEvent(id events.EventID, c Controller, value float32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.PlayerFloatEvent{Player: r.playerState(c), Value: value})
}

// LogPlayerSpawnEvent records a spawn for the controller's current team
func (r *Recorder) LogPlayerSpawnEvent(id events.EventID, c Controller, pawnClass string) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	var team Team
	if c != nil {
		team = c.Team()
	}
	return r.record(id, &events.PlayerSpawnEvent{
		Player:    r.playerState(c),
		PawnClass: int32(r.w.Metadata().PawnClasses.Resolve(pawnClass)),
		Team:      int32(r.teamIndex(team)),
	})
}

func (r *Recorder) LogPlayerLoginEvent(id events.EventID, c Controller, splitScreen bool) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.PlayerLoginEvent{Player: r.playerState(c), SplitScreen: splitScreen})
}

func (r *Recorder) LogPlayerKillDeathEvent(id events.EventID, killer, victim Controller, damageClass string, killType int32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.PlayerKillDeathEvent{
		Player:      r.playerState(killer),
		Target:      r.playerState(victim),
		DamageClass: int32(r.w.Metadata().DamageClasses.Resolve(damageClass)),
		KillType:    killType,
	})
}

func (r *Recorder) LogPlayerPlayerEvent(id events.EventID, c, target Controller) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.PlayerPlayerEvent{Player: r.playerState(c), Target: r.playerState(target)})
}

func (r *Recorder) LogWeaponIntEvent(id events.EventID, c Controller, weaponClass string, value int32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.WeaponIntEvent{
		Player:      r.playerState(c),
		WeaponClass: int32(r.w.Metadata().WeaponClasses.Resolve(weaponClass)),
		Value:       value,
	})
}

func (r *Recorder) LogDamageIntEvent(id events.EventID, c Controller, damageClass string, target Controller, value int32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.DamageIntEvent{
		Player:      r.playerState(c),
		Target:      r.playerState(target),
		DamageClass: int32(r.w.Metadata().DamageClasses.Resolve(damageClass)),
		Value:       value,
	})
}

func (r *Recorder) LogProjectileIntEvent(id events.EventID, c Controller, projectileClass string, value int32) error {
	if !r.IsLogging() {
		return ErrNotLogging
	}
	return r.record(id, &events.ProjectileIntEvent{
		Player:          r.playerState(c),
		ProjectileClass: int32(r.w.Metadata().ProjectileClasses.Resolve(projectileClass)),
		Value:           value,
	})
}

func (r *Recorder) LogGenericParamListEvent(id events.EventID, params *events.GenericParamListEvent) error {
	return r.record(id, params)
}
