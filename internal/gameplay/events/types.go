package events

import (
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

// EventType identifies the on-disk shape of a payload
type EventType uint16

const (
	TypeGameString EventType = iota
	TypeGameInt
	TypeTeamString
	TypeTeamInt
	TypePlayerString
	TypePlayerInt
	TypePlayerSpawn
	TypePlayerLogin
	TypePlayerKillDeath
	TypePlayerPlayer
	TypeWeaponInt
	TypeDamageInt
	TypeProjectileInt
	TypeGamePosition
	TypeGameFloat
	TypeTeamFloat
	TypePlayerFloat
	TypePlayerLocations
	TypeGenericParamList
	TypeGameAggregate
	TypeTeamAggregate
	TypePlayerAggregate
	TypeWeaponAggregate
	TypeDamageAggregate
	TypeProjectileAggregate
	TypePawnAggregate

	// MaxEngineType is the last value reserved for engine shapes
	MaxEngineType EventType = 999
)

// EventID identifies what happened. Values below FirstGameEventID belong to
// the engine shape space and are never used as meaning codes.
type EventID uint16

const (
	FirstGameEventID EventID = 1000
	MaxEventID               = 0xFFFF
)

// ToEventID converts an integer meaning code, rejecting values that do not fit the record header
func ToEventID(v int) (EventID, bool) {
	if v < 0 || v > MaxEventID {
		return 0, false
	}
	return EventID(v), true
}

// Payload is one record body. Size must equal the number of bytes Serialize
// writes for the same archive state, the writer relies on it to fill the
// record header before serializing.
type Payload interface {
	Type() EventType
	Size(ar *archive.Archive) int
	Serialize(ar *archive.Archive)
}

// RecordHeaderSize is the fixed on-disk size of a RecordHeader
const RecordHeaderSize = 10

// RecordHeader precedes every payload in the stream
type RecordHeader struct {
	EventType EventType
	EventID   EventID
	TimeStamp float32
	// DataSize is the payload length, excluding this header
	DataSize uint16
}

func (h *RecordHeader) Serialize(ar *archive.Archive) {
	ar.Uint16((*uint16)(&h.EventType))
	ar.Uint16((*uint16)(&h.EventID))
	ar.Float32(&h.TimeStamp)
	ar.Uint16(&h.DataSize)
}

type Vector struct {
	X, Y, Z float32
}

func (v *Vector) Serialize(ar *archive.Archive) {
	ar.Float32(&v.X)
	ar.Float32(&v.Y)
	ar.Float32(&v.Z)
}

const vectorSize = 12

// Rotator holds engine rotation units, 65536 per full turn
type Rotator struct {
	Pitch, Yaw, Roll int
}
