package events

import (
	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

// GameAggregateEvent is one game wide total. The record's EventID carries the aggregate ID.
type GameAggregateEvent struct {
	TimePeriod int32
	Value      float32
}

func (e *GameAggregateEvent) Type() EventType           { return TypeGameAggregate }
func (e *GameAggregateEvent) Size(*archive.Archive) int { return 8 }
func (e *GameAggregateEvent) Serialize(ar *archive.Archive) {
	ar.Int32(&e.TimePeriod)
	ar.Float32(&e.Value)
}

// KeyedAggregateEvent is a total owned by a team, a player or a class. The
// owner index refers to the dictionary matching the shape.
type KeyedAggregateEvent struct {
	shape      EventType
	Owner      int32
	TimePeriod int32
	Value      float32
}

// NewKeyedAggregate returns an empty aggregate of a keyed aggregate shape
func NewKeyedAggregate(shape EventType) (*KeyedAggregateEvent, error) {
	switch shape {
	case TypeTeamAggregate, TypePlayerAggregate, TypeWeaponAggregate,
		TypeDamageAggregate, TypeProjectileAggregate, TypePawnAggregate:
		return &KeyedAggregateEvent{shape: shape}, nil
	}
	return nil, errors.Errorf("event type %d is not a keyed aggregate", shape)
}

func (e *KeyedAggregateEvent) Type() EventType           { return e.shape }
func (e *KeyedAggregateEvent) Size(*archive.Archive) int { return 12 }
func (e *KeyedAggregateEvent) Serialize(ar *archive.Archive) {
	ar.Int32(&e.Owner)
	ar.Int32(&e.TimePeriod)
	ar.Float32(&e.Value)
}

func (e *KeyedAggregateEvent) PlayerIndex() int {
	if e.shape == TypePlayerAggregate {
		return int(e.Owner)
	}
	return IndexNone
}

func (e *KeyedAggregateEvent) TeamIndex() int {
	if e.shape == TypeTeamAggregate {
		return int(e.Owner)
	}
	return IndexNone
}
