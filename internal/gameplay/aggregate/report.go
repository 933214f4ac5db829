package aggregate

import (
	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
)

// Scope is the owner kind of an aggregate. Each scope is stored with its own aggregate shape.
type Scope string

const (
	ScopeGame       Scope = "game"
	ScopeTeam       Scope = "team"
	ScopePlayer     Scope = "player"
	ScopeWeapon     Scope = "weapon"
	ScopeDamage     Scope = "damage"
	ScopeProjectile Scope = "projectile"
	ScopePawn       Scope = "pawn"
)

var scopeShapes = map[Scope]events.EventType{
	ScopeGame:       events.TypeGameAggregate,
	ScopeTeam:       events.TypeTeamAggregate,
	ScopePlayer:     events.TypePlayerAggregate,
	ScopeWeapon:     events.TypeWeaponAggregate,
	ScopeDamage:     events.TypeDamageAggregate,
	ScopeProjectile: events.TypeProjectileAggregate,
	ScopePawn:       events.TypePawnAggregate,
}

// ScopeOf returns the scope stored with an aggregate shape
func ScopeOf(t events.EventType) (Scope, bool) {
	for scope, shape := range scopeShapes {
		if shape == t {
			return scope, true
		}
	}
	return "", false
}

// Entry is one reported total. Owner is IndexNone for game scope.
type Entry struct {
	Scope  Scope              `json:"scope"`
	Owner  int                `json:"owner"`
	Period int                `json:"period"`
	ID     events.AggregateID `json:"id"`
	Name   string             `json:"name"`
	Value  float64            `json:"value"`
}

func bucketEntries(scope Scope, owner int, b *Bucket) []Entry {
	var entries []Entry
	for _, period := range b.Periods() {
		for _, id := range b.IDs(period) {
			entries = append(entries, Entry{
				Scope:  scope,
				Owner:  owner,
				Period: period,
				ID:     id,
				Name:   id.String(),
				Value:  b.Value(period, id),
			})
		}
	}
	return entries
}

// Report lists every accumulated total: game first, then teams, players and the class scopes
func (a *Aggregator) Report() []Entry {
	entries := bucketEntries(ScopeGame, events.IndexNone, &a.Game)
	keyed := []struct {
		scope   Scope
		buckets []Bucket
	}{
		{ScopeTeam, a.Teams},
		{ScopePlayer, a.Players},
		{ScopeWeapon, a.WeaponClasses},
		{ScopeDamage, a.DamageClasses},
		{ScopeProjectile, a.ProjectileClasses},
		{ScopePawn, a.PawnClasses},
	}
	for _, k := range keyed {
		for owner := range k.buckets {
			entries = append(entries, bucketEntries(k.scope, owner, &k.buckets[owner])...)
		}
	}
	return entries
}

// Payload returns the aggregate record carrying e
func (e Entry) Payload() (events.Payload, error) {
	shape, ok := scopeShapes[e.Scope]
	if !ok {
		return nil, errors.Errorf("unknown aggregate scope %q", e.Scope)
	}
	if shape == events.TypeGameAggregate {
		return &events.GameAggregateEvent{TimePeriod: int32(e.Period), Value: float32(e.Value)}, nil
	}
	p, err := events.NewKeyedAggregate(shape)
	if err != nil {
		return nil, err
	}
	p.Owner = int32(e.Owner)
	p.TimePeriod = int32(e.Period)
	p.Value = float32(e.Value)
	return p, nil
}

// WriteAggregates appends the report to the aggregate section of w, opening the section if needed
func (a *Aggregator) WriteAggregates(w *statsfile.Writer, timestamp float32) error {
	if err := w.BeginAggregates(); err != nil && !errors.Is(err, statsfile.ErrSectionState) {
		return err
	}
	for _, e := range a.Report() {
		p, err := e.Payload()
		if err != nil {
			return err
		}
		if err := w.RecordEvent(events.EventID(e.ID), timestamp, p); err != nil {
			return errors.Wrapf(err, "write %s aggregate %s", e.Scope, e.Name)
		}
	}
	return nil
}

// ReadAggregates collects the aggregate section of an open file
func ReadAggregates(r *statsfile.Reader) ([]Entry, error) {
	var entries []Entry
	err := r.VisitAggregates(func(rec *statsfile.EventRecord, p events.Payload) {
		id := events.AggregateID(rec.Header.EventID)
		switch v := p.(type) {
		case *events.GameAggregateEvent:
			entries = append(entries, Entry{
				Scope:  ScopeGame,
				Owner:  events.IndexNone,
				Period: int(v.TimePeriod),
				ID:     id,
				Name:   id.String(),
				Value:  float64(v.Value),
			})
		case *events.KeyedAggregateEvent:
			scope, ok := ScopeOf(v.Type())
			if !ok {
				return
			}
			entries = append(entries, Entry{
				Scope:  scope,
				Owner:  int(v.Owner),
				Period: int(v.TimePeriod),
				ID:     id,
				Name:   id.String(),
				Value:  float64(v.Value),
			})
		}
	})
	return entries, err
}
