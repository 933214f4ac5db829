package events

import (
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

// PlayerState is the packed reference, rotation and location block carried by every player payload
type PlayerState struct {
	IndexAndYaw  int32
	PitchAndRoll int32
	Location     Vector
}

const playerStateSize = 4 + 4 + vectorSize

func NewPlayerState(index int, rot Rotator, loc Vector) PlayerState {
	return PlayerState{
		IndexAndYaw:  PackIndexAndYaw(index, rot.Yaw),
		PitchAndRoll: PackPitchAndRoll(rot.Pitch, rot.Roll),
		Location:     loc,
	}
}

// Index returns the player dictionary index or IndexNone
func (p PlayerState) Index() int {
	index, _ := UnpackIndexAndYaw(p.IndexAndYaw)
	return index
}

func (p PlayerState) Rotation() Rotator {
	_, yaw := UnpackIndexAndYaw(p.IndexAndYaw)
	pitch, roll := UnpackPitchAndRoll(p.PitchAndRoll)
	return Rotator{Pitch: pitch, Yaw: yaw, Roll: roll}
}

func (p *PlayerState) Serialize(ar *archive.Archive) {
	ar.Int32(&p.IndexAndYaw)
	ar.Int32(&p.PitchAndRoll)
	p.Location.Serialize(ar)
}

// PlayerEvent is implemented by payloads attributed to a player
type PlayerEvent interface {
	PlayerIndex() int
}

// TeamEvent is implemented by payloads attributed to a team
type TeamEvent interface {
	TeamIndex() int
}

// TargetEvent is implemented by payloads with a second player
type TargetEvent interface {
	TargetIndex() int
}

type GameStringEvent struct {
	Value string
}

func (e *GameStringEvent) Type() EventType               { return TypeGameString }
func (e *GameStringEvent) Size(ar *archive.Archive) int  { return ar.StringSize(e.Value) }
func (e *GameStringEvent) Serialize(ar *archive.Archive) { ar.String(&e.Value) }

type GameIntEvent struct {
	Value int32
}

func (e *GameIntEvent) Type() EventType               { return TypeGameInt }
func (e *GameIntEvent) Size(*archive.Archive) int     { return 4 }
func (e *GameIntEvent) Serialize(ar *archive.Archive) { ar.Int32(&e.Value) }

type GameFloatEvent struct {
	Value float32
}

func (e *GameFloatEvent) Type() EventType               { return TypeGameFloat }
func (e *GameFloatEvent) Size(*archive.Archive) int     { return 4 }
func (e *GameFloatEvent) Serialize(ar *archive.Archive) { ar.Float32(&e.Value) }

// GamePositionEvent is a value tied to a world location, such as an objective capture
type GamePositionEvent struct {
	Location Vector
	Value    float32
}

func (e *GamePositionEvent) Type() EventType           { return TypeGamePosition }
func (e *GamePositionEvent) Size(*archive.Archive) int { return vectorSize + 4 }
func (e *GamePositionEvent) Serialize(ar *archive.Archive) {
	e.Location.Serialize(ar)
	ar.Float32(&e.Value)
}

type TeamStringEvent struct {
	Team  int32
	Value string
}

func (e *TeamStringEvent) Type() EventType              { return TypeTeamString }
func (e *TeamStringEvent) TeamIndex() int               { return int(e.Team) }
func (e *TeamStringEvent) Size(ar *archive.Archive) int { return 4 + ar.StringSize(e.Value) }
func (e *TeamStringEvent) Serialize(ar *archive.Archive) {
	ar.Int32(&e.Team)
	ar.String(&e.Value)
}

type TeamIntEvent struct {
	Team  int32
	Value int32
}

func (e *TeamIntEvent) Type() EventType           { return TypeTeamInt }
func (e *TeamIntEvent) TeamIndex() int            { return int(e.Team) }
func (e *TeamIntEvent) Size(*archive.Archive) int { return 8 }
func (e *TeamIntEvent) Serialize(ar *archive.Archive) {
	ar.Int32(&e.Team)
	ar.Int32(&e.Value)
}

type TeamFloatEvent struct {
	Team  int32
	Value float32
}

func (e *TeamFloatEvent) Type() EventType           { return TypeTeamFloat }
func (e *TeamFloatEvent) TeamIndex() int            { return int(e.Team) }
func (e *TeamFloatEvent) Size(*archive.Archive) int { return 8 }
func (e *TeamFloatEvent) Serialize(ar *archive.Archive) {
	ar.Int32(&e.Team)
	ar.Float32(&e.Value)
}

type PlayerStringEvent struct {
	Player PlayerState
	Value  string
}

func (e *PlayerStringEvent) Type() EventType  { return TypePlayerString }
func (e *PlayerStringEvent) PlayerIndex() int { return e.Player.Index() }
func (e *PlayerStringEvent) Size(ar *archive.Archive) int {
	return playerStateSize + ar.StringSize(e.Value)
}
func (e *PlayerStringEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	ar.String(&e.Value)
}

type PlayerIntEvent struct {
	Player PlayerState
	Value  int32
}

func (e *PlayerIntEvent) Type() EventType           { return TypePlayerInt }
func (e *PlayerIntEvent) PlayerIndex() int          { return e.Player.Index() }
func (e *PlayerIntEvent) Size(*archive.Archive) int { return playerStateSize + 4 }
func (e *PlayerIntEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	ar.Int32(&e.Value)
}

type PlayerFloatEvent struct {
	Player PlayerState
	Value  float32
}

func (e *PlayerFloatEvent) Type() EventType           { return TypePlayerFloat }
func (e *PlayerFloatEvent) PlayerIndex() int          { return e.Player.Index() }
func (e *PlayerFloatEvent) Size(*archive.Archive) int { return playerStateSize + 4 }
func (e *PlayerFloatEvent) Serialize(ar *archive.Archive) {
	e.Player.Serialize(ar)
	ar.Float32(&e.Value)
}
