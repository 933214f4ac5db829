package statsfile

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/archive"
	"github.com/snowflk/statsdb/internal/gameplay/events"
)

// Blobs are stats file sections stored outside a file. They keep the version
// and byte order of the file they were cut from.

func encode(version int32, order binary.ByteOrder, fn func(ar *archive.Archive)) ([]byte, error) {
	buf := &archive.Buffer{}
	ar := archive.NewSaver(buf, order)
	ar.SetVersion(version)
	fn(ar)
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, version int32, order binary.ByteOrder, fn func(ar *archive.Archive)) error {
	ar := archive.NewLoader(bytes.NewReader(data), order)
	ar.SetVersion(version)
	fn(ar)
	if err := ar.Err(); err != nil {
		return err
	}
	if ar.Tell() != int64(len(data)) {
		return errors.Wrapf(ErrDesync, "decoded %d of %d bytes", ar.Tell(), len(data))
	}
	return nil
}

func EncodeSession(s SessionInfo, version int32, order binary.ByteOrder) ([]byte, error) {
	return encode(version, order, s.Serialize)
}

func DecodeSession(data []byte, version int32, order binary.ByteOrder) (SessionInfo, error) {
	var s SessionInfo
	err := decode(data, version, order, s.Serialize)
	return s, errors.Wrap(err, "decode session")
}

// EncodeMetadata stores the footer dictionaries with full event names
func EncodeMetadata(m *Metadata, version int32, order binary.ByteOrder) ([]byte, error) {
	return encode(version, order, func(ar *archive.Archive) {
		ar.SetForceUnicode(false)
		m.Serialize(ar, false)
	})
}

func DecodeMetadata(data []byte, version int32, order binary.ByteOrder) (*Metadata, error) {
	m := NewMetadata()
	err := decode(data, version, order, func(ar *archive.Archive) { m.Serialize(ar, false) })
	if err != nil {
		return nil, errors.Wrap(err, "decode metadata")
	}
	return m, nil
}

func EncodePayload(p events.Payload, version int32, order binary.ByteOrder) ([]byte, error) {
	return encode(version, order, p.Serialize)
}

// DecodePayload resolves t through registry and decodes data into a fresh payload
func DecodePayload(registry *events.Registry, t events.EventType, data []byte, version int32, order binary.ByteOrder) (events.Payload, error) {
	p := registry.Resolve(t)
	if p == nil {
		return nil, errors.Wrapf(ErrUnknownEvent, "event type %d", t)
	}
	if err := decode(data, version, order, p.Serialize); err != nil {
		return nil, errors.Wrapf(err, "decode event type %d", t)
	}
	return p, nil
}

// OrderOf returns the byte order flagged by bigEndian
func OrderOf(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
