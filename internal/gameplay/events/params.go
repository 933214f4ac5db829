package events

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

// ParamType tags the value stored in a Param
type ParamType uint8

const (
	ParamInt ParamType = iota + 1
	ParamFloat
	ParamString
	ParamVector
	ParamBool
)

func (t ParamType) String() string {
	switch t {
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamString:
		return "string"
	case ParamVector:
		return "vector"
	case ParamBool:
		return "bool"
	}
	return "unknown"
}

const (
	maxParams      = 256
	maxParamLength = 0xFFFF
)

var (
	ErrParamNotFound = errors.New("parameter not found")
	ErrParamType     = errors.New("parameter type mismatch")
	ErrParamLength   = errors.New("parameter length mismatch")
)

// paramOrder encodes values inside a Param. It is fixed so the raw bytes of a
// parameter list mean the same thing in files of either byte order.
var paramOrder = binary.LittleEndian

// Param is one named value. Data holds exactly the bytes of the value, its
// length is stored on disk next to the type tag.
type Param struct {
	Name string
	Kind ParamType
	Data []byte
}

func (p *Param) Size(ar *archive.Archive) int {
	return ar.StringSize(p.Name) + 1 + 2 + len(p.Data)
}

func (p *Param) Serialize(ar *archive.Archive) {
	ar.String(&p.Name)
	kind := uint8(p.Kind)
	ar.Byte(&kind)
	n := uint16(len(p.Data))
	ar.Uint16(&n)
	if ar.Err() != nil {
		return
	}
	if ar.IsLoading() {
		p.Kind = ParamType(kind)
		p.Data = make([]byte, n)
	}
	ar.Raw(p.Data)
}

// GenericParamListEvent carries arbitrary named values for game specific events
type GenericParamListEvent struct {
	Params []Param
}

func (e *GenericParamListEvent) Type() EventType { return TypeGenericParamList }

func (e *GenericParamListEvent) Size(ar *archive.Archive) int {
	size := 4
	for i := range e.Params {
		size += e.Params[i].Size(ar)
	}
	return size
}

func (e *GenericParamListEvent) Serialize(ar *archive.Archive) {
	n := len(e.Params)
	ar.Count(&n, maxParams)
	if ar.Err() != nil {
		return
	}
	if ar.IsLoading() {
		e.Params = make([]Param, n)
	}
	for i := range e.Params {
		e.Params[i].Serialize(ar)
	}
}

func (e *GenericParamListEvent) set(name string, kind ParamType, data []byte) {
	for i := range e.Params {
		if e.Params[i].Name == name {
			e.Params[i].Kind = kind
			e.Params[i].Data = data
			return
		}
	}
	e.Params = append(e.Params, Param{Name: name, Kind: kind, Data: data})
}

func (e *GenericParamListEvent) SetInt(name string, v int32) {
	b := make([]byte, 4)
	paramOrder.PutUint32(b, uint32(v))
	e.set(name, ParamInt, b)
}

func (e *GenericParamListEvent) SetFloat(name string, v float32) {
	b := make([]byte, 4)
	paramOrder.PutUint32(b, math.Float32bits(v))
	e.set(name, ParamFloat, b)
}

func (e *GenericParamListEvent) SetBool(name string, v bool) {
	b := []byte{0}
	if v {
		b[0] = 1
	}
	e.set(name, ParamBool, b)
}

// SetString stores v as UTF-8. Strings longer than a parameter can hold are truncated.
func (e *GenericParamListEvent) SetString(name string, v string) {
	b := []byte(v)
	if len(b) > maxParamLength {
		b = b[:maxParamLength]
	}
	e.set(name, ParamString, b)
}

func (e *GenericParamListEvent) SetVector(name string, v Vector) {
	b := make([]byte, vectorSize)
	paramOrder.PutUint32(b[0:], math.Float32bits(v.X))
	paramOrder.PutUint32(b[4:], math.Float32bits(v.Y))
	paramOrder.PutUint32(b[8:], math.Float32bits(v.Z))
	e.set(name, ParamVector, b)
}

// lookup returns the data of name after checking its tag and, when size is not negative, its length
func (e *GenericParamListEvent) lookup(name string, kind ParamType, size int) ([]byte, error) {
	for i := range e.Params {
		p := &e.Params[i]
		if p.Name != name {
			continue
		}
		if p.Kind != kind {
			return nil, errors.Wrapf(ErrParamType, "%s is %s, not %s", name, p.Kind, kind)
		}
		if size >= 0 && len(p.Data) != size {
			return nil, errors.Wrapf(ErrParamLength, "%s holds %d bytes, %s needs %d", name, len(p.Data), kind, size)
		}
		return p.Data, nil
	}
	return nil, errors.Wrap(ErrParamNotFound, name)
}

func (e *GenericParamListEvent) Int(name string) (int32, error) {
	b, err := e.lookup(name, ParamInt, 4)
	if err != nil {
		return 0, err
	}
	return int32(paramOrder.Uint32(b)), nil
}

func (e *GenericParamListEvent) Float(name string) (float32, error) {
	b, err := e.lookup(name, ParamFloat, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(paramOrder.Uint32(b)), nil
}

func (e *GenericParamListEvent) Bool(name string) (bool, error) {
	b, err := e.lookup(name, ParamBool, 1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (e *GenericParamListEvent) String(name string) (string, error) {
	b, err := e.lookup(name, ParamString, -1)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *GenericParamListEvent) Vector(name string) (Vector, error) {
	b, err := e.lookup(name, ParamVector, vectorSize)
	if err != nil {
		return Vector{}, err
	}
	return Vector{
		X: math.Float32frombits(paramOrder.Uint32(b[0:])),
		Y: math.Float32frombits(paramOrder.Uint32(b[4:])),
		Z: math.Float32frombits(paramOrder.Uint32(b[8:])),
	}, nil
}
