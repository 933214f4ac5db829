package archive

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

var (
	// ByteOrdering is the byte order new files are written in
	ByteOrdering binary.ByteOrder = binary.LittleEndian

	ErrNotSeekable = errors.New("archive is not seekable")
	ErrCountRange  = errors.New("array count out of range")
)

// Archive is a bidirectional binary stream. The same Serialize routine drives
// both directions: when loading, every primitive fills the pointed value from
// the underlying reader, when saving it writes the pointed value out.
//
// The first error encountered is sticky. Once set, every later operation is a
// no-op, so a whole block can be serialized before checking Err once.
type Archive struct {
	r io.ReadSeeker
	w io.WriteSeeker

	order        binary.ByteOrder
	version      int32
	forceUnicode bool

	pos int64
	err error
	buf [8]byte
}

// NewLoader creates an archive reading from r.
// The version defaults to LatestVersion until the caller pins the file version.
func NewLoader(r io.ReadSeeker, order binary.ByteOrder) *Archive {
	return &Archive{
		r:            r,
		order:        order,
		version:      LatestVersion,
		forceUnicode: true,
	}
}

// NewSaver creates an archive writing to w, always at LatestVersion.
func NewSaver(w io.WriteSeeker, order binary.ByteOrder) *Archive {
	return &Archive{
		w:            w,
		order:        order,
		version:      LatestVersion,
		forceUnicode: true,
	}
}

func (ar *Archive) IsLoading() bool {
	return ar.r != nil
}

func (ar *Archive) IsSaving() bool {
	return ar.w != nil
}

func (ar *Archive) Version() int32 {
	return ar.version
}

// SetVersion pins the version every versioned field consults.
func (ar *Archive) SetVersion(version int32) {
	ar.version = version
}

func (ar *Archive) Order() binary.ByteOrder {
	return ar.order
}

func (ar *Archive) SetOrder(order binary.ByteOrder) {
	ar.order = order
}

func (ar *Archive) ForceUnicode() bool {
	return ar.forceUnicode
}

// SetForceUnicode toggles wide string encoding for strings that would fit in a single byte per character.
func (ar *Archive) SetForceUnicode(force bool) {
	ar.forceUnicode = force
}

func (ar *Archive) Err() error {
	return ar.err
}

// Fail records err unless an earlier error is already held.
func (ar *Archive) Fail(err error) {
	if ar.err == nil {
		ar.err = err
	}
}

// ClearErr drops the sticky error, used after a failed attempt that the caller recovers from.
func (ar *Archive) ClearErr() {
	ar.err = nil
}

// Tell returns the current absolute position
func (ar *Archive) Tell() int64 {
	return ar.pos
}

// Seek moves to an absolute position
func (ar *Archive) Seek(pos int64) {
	if ar.err != nil {
		return
	}
	var err error
	if ar.r != nil {
		_, err = ar.r.Seek(pos, io.SeekStart)
	} else {
		_, err = ar.w.Seek(pos, io.SeekStart)
	}
	if err != nil {
		ar.err = errors.Wrapf(err, "seek to %d", pos)
		return
	}
	ar.pos = pos
}

// Skip advances n bytes. When saving, the skipped range is zero filled.
func (ar *Archive) Skip(n int64) {
	if ar.err != nil || n == 0 {
		return
	}
	if n < 0 {
		ar.err = errors.Errorf("negative skip %d", n)
		return
	}
	if ar.IsSaving() {
		ar.Raw(make([]byte, n))
		return
	}
	ar.Seek(ar.pos + n)
}

// Raw serializes b verbatim
func (ar *Archive) Raw(b []byte) {
	if ar.err != nil || len(b) == 0 {
		return
	}
	var (
		n   int
		err error
	)
	if ar.r != nil {
		n, err = io.ReadFull(ar.r, b)
	} else {
		n, err = ar.w.Write(b)
	}
	ar.pos += int64(n)
	if err != nil {
		ar.err = errors.Wrapf(err, "raw %d bytes at %d", len(b), ar.pos-int64(n))
	}
}

func (ar *Archive) Byte(v *uint8) {
	b := ar.buf[:1]
	if ar.IsSaving() {
		b[0] = *v
	}
	ar.Raw(b)
	if ar.IsLoading() && ar.err == nil {
		*v = b[0]
	}
}

func (ar *Archive) Uint16(v *uint16) {
	b := ar.buf[:2]
	if ar.IsSaving() {
		ar.order.PutUint16(b, *v)
	}
	ar.Raw(b)
	if ar.IsLoading() && ar.err == nil {
		*v = ar.order.Uint16(b)
	}
}

func (ar *Archive) Uint32(v *uint32) {
	b := ar.buf[:4]
	if ar.IsSaving() {
		ar.order.PutUint32(b, *v)
	}
	ar.Raw(b)
	if ar.IsLoading() && ar.err == nil {
		*v = ar.order.Uint32(b)
	}
}

func (ar *Archive) Int32(v *int32) {
	u := uint32(*v)
	ar.Uint32(&u)
	if ar.IsLoading() && ar.err == nil {
		*v = int32(u)
	}
}

func (ar *Archive) Float32(v *float32) {
	u := math.Float32bits(*v)
	ar.Uint32(&u)
	if ar.IsLoading() && ar.err == nil {
		*v = math.Float32frombits(u)
	}
}

// Bool is stored as a 32 bit integer
func (ar *Archive) Bool(v *bool) {
	var u uint32
	if *v {
		u = 1
	}
	ar.Uint32(&u)
	if ar.IsLoading() && ar.err == nil {
		*v = u != 0
	}
}

// Count serializes an array length prefix, rejecting negative or oversized counts on load.
func (ar *Archive) Count(n *int, max int) {
	c := int32(*n)
	ar.Int32(&c)
	if !ar.IsLoading() || ar.err != nil {
		return
	}
	if c < 0 || int(c) > max {
		ar.err = errors.Wrapf(ErrCountRange, "count %d (max %d) at %d", c, max, ar.pos-4)
		return
	}
	*n = int(c)
}

// Swapped returns the opposite byte order
func Swapped(order binary.ByteOrder) binary.ByteOrder {
	if order == binary.BigEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
