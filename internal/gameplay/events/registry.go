package events

import (
	"sort"

	"github.com/pkg/errors"
)

var ErrDuplicateType = errors.New("event type already registered")

// Factory returns a new empty payload of one shape
type Factory func() Payload

type registration struct {
	name    string
	factory Factory
}

// Registry resolves the EventType of a record to a payload codec.
// Registration is not synchronized and must complete before the registry is
// shared with readers.
type Registry struct {
	entries map[EventType]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[EventType]registration)}
}

// DefaultRegistry returns a registry holding every engine shape
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range engineShapes {
		if err := r.Register(s.name, s.eventType, s.factory); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a shape. Game specific shapes use types above MaxEngineType.
func (r *Registry) Register(name string, t EventType, factory Factory) error {
	if _, ok := r.entries[t]; ok {
		return errors.Wrapf(ErrDuplicateType, "%d (%s)", t, name)
	}
	if factory == nil {
		return errors.Errorf("nil factory for event type %d", t)
	}
	r.entries[t] = registration{name: name, factory: factory}
	return nil
}

// Resolve returns a new payload for t, or nil when t is unknown
func (r *Registry) Resolve(t EventType) Payload {
	e, ok := r.entries[t]
	if !ok {
		return nil
	}
	return e.factory()
}

func (r *Registry) Name(t EventType) string {
	return r.entries[t].name
}

// Types returns the registered types in ascending order
func (r *Registry) Types() []EventType {
	types := make([]EventType, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func keyed(shape EventType) Factory {
	return func() Payload {
		return &KeyedAggregateEvent{shape: shape}
	}
}

var engineShapes = []struct {
	name      string
	eventType EventType
	factory   Factory
}{
	{"GameString", TypeGameString, func() Payload { return &GameStringEvent{} }},
	{"GameInt", TypeGameInt, func() Payload { return &GameIntEvent{} }},
	{"TeamString", TypeTeamString, func() Payload { return &TeamStringEvent{} }},
	{"TeamInt", TypeTeamInt, func() Payload { return &TeamIntEvent{} }},
	{"PlayerString", TypePlayerString, func() Payload { return &PlayerStringEvent{} }},
	{"PlayerInt", TypePlayerInt, func() Payload { return &PlayerIntEvent{} }},
	{"PlayerSpawn", TypePlayerSpawn, func() Payload { return &PlayerSpawnEvent{} }},
	{"PlayerLogin", TypePlayerLogin, func() Payload { return &PlayerLoginEvent{} }},
	{"PlayerKillDeath", TypePlayerKillDeath, func() Payload { return &PlayerKillDeathEvent{} }},
	{"PlayerPlayer", TypePlayerPlayer, func() Payload { return &PlayerPlayerEvent{} }},
	{"WeaponInt", TypeWeaponInt, func() Payload { return &WeaponIntEvent{} }},
	{"DamageInt", TypeDamageInt, func() Payload { return &DamageIntEvent{} }},
	{"ProjectileInt", TypeProjectileInt, func() Payload { return &ProjectileIntEvent{} }},
	{"GamePosition", TypeGamePosition, func() Payload { return &GamePositionEvent{} }},
	{"GameFloat", TypeGameFloat, func() Payload { return &GameFloatEvent{} }},
	{"TeamFloat", TypeTeamFloat, func() Payload { return &TeamFloatEvent{} }},
	{"PlayerFloat", TypePlayerFloat, func() Payload { return &PlayerFloatEvent{} }},
	{"PlayerLocations", TypePlayerLocations, func() Payload { return &PlayerLocationsEvent{} }},
	{"GenericParamList", TypeGenericParamList, func() Payload { return &GenericParamListEvent{} }},
	{"GameAggregate", TypeGameAggregate, func() Payload { return &GameAggregateEvent{} }},
	{"TeamAggregate", TypeTeamAggregate, keyed(TypeTeamAggregate)},
	{"PlayerAggregate", TypePlayerAggregate, keyed(TypePlayerAggregate)},
	{"WeaponAggregate", TypeWeaponAggregate, keyed(TypeWeaponAggregate)},
	{"DamageAggregate", TypeDamageAggregate, keyed(TypeDamageAggregate)},
	{"ProjectileAggregate", TypeProjectileAggregate, keyed(TypeProjectileAggregate)},
	{"PawnAggregate", TypePawnAggregate, keyed(TypePawnAggregate)},
}
