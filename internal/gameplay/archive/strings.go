package archive

import (
	"unicode/utf16"

	"github.com/pkg/errors"
)

// maxStringLength bounds the character count accepted from a length prefix
const maxStringLength = 1 << 20

var ErrStringLength = errors.New("string length out of range")

// String serializes a length prefixed string.
//
// A zero prefix is the empty string. A positive prefix N is followed by N single
// byte characters including a NUL terminator. A negative prefix -N is followed by
// N UTF-16 code units including a NUL terminator.
func (ar *Archive) String(v *string) {
	if ar.err != nil {
		return
	}
	if ar.IsLoading() {
		ar.loadString(v)
		return
	}
	if *v == "" {
		var zero int32
		ar.Int32(&zero)
		return
	}
	if ar.forceUnicode || !isNarrow(*v) {
		units := append(utf16.Encode([]rune(*v)), 0)
		n := -int32(len(units))
		ar.Int32(&n)
		b := make([]byte, 2*len(units))
		for i, u := range units {
			ar.order.PutUint16(b[2*i:], u)
		}
		ar.Raw(b)
		return
	}
	b := make([]byte, 0, len(*v)+1)
	for _, r := range *v {
		b = append(b, byte(r))
	}
	b = append(b, 0)
	n := int32(len(b))
	ar.Int32(&n)
	ar.Raw(b)
}

func (ar *Archive) loadString(v *string) {
	var n int32
	ar.Int32(&n)
	if ar.err != nil {
		return
	}
	switch {
	case n == 0:
		*v = ""
	case n > 0:
		if n > maxStringLength {
			ar.err = errors.Wrapf(ErrStringLength, "narrow length %d at %d", n, ar.pos-4)
			return
		}
		b := make([]byte, n)
		ar.Raw(b)
		if ar.err != nil {
			return
		}
		runes := make([]rune, 0, n)
		for _, c := range b {
			if c == 0 {
				break
			}
			runes = append(runes, rune(c))
		}
		*v = string(runes)
	default:
		if n < -maxStringLength {
			ar.err = errors.Wrapf(ErrStringLength, "wide length %d at %d", n, ar.pos-4)
			return
		}
		b := make([]byte, -2*int(n))
		ar.Raw(b)
		if ar.err != nil {
			return
		}
		units := make([]uint16, 0, -n)
		for i := 0; i < len(b); i += 2 {
			u := ar.order.Uint16(b[i:])
			if u == 0 {
				break
			}
			units = append(units, u)
		}
		*v = string(utf16.Decode(units))
	}
}

// StringSize is the number of bytes String writes for s under the archive's current encoding mode
func (ar *Archive) StringSize(s string) int {
	return StringSize(s, ar.forceUnicode)
}

// StringSize is the number of bytes a string occupies on disk
func StringSize(s string, forceUnicode bool) int {
	if s == "" {
		return 4
	}
	if forceUnicode || !isNarrow(s) {
		return 4 + 2*(len(utf16.Encode([]rune(s)))+1)
	}
	count := 0
	for range s {
		count++
	}
	return 4 + count + 1
}

// isNarrow reports whether every rune fits in a single byte
func isNarrow(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}
