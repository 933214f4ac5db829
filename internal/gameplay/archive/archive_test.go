package archive

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_Primitives(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		buf := &Buffer{}
		saver := NewSaver(buf, order)
		var (
			b  uint8   = 0xAB
			u  uint16  = 0xBEEF
			i  int32   = -123456
			f  float32 = 3.25
			ok         = true
		)
		saver.Byte(&b)
		saver.Uint16(&u)
		saver.Int32(&i)
		saver.Float32(&f)
		saver.Bool(&ok)
		require.NoError(t, saver.Err())
		assert.Equal(t, int64(1+2+4+4+4), saver.Tell())

		loader := NewLoader(bytes.NewReader(buf.Bytes()), order)
		var (
			b2  uint8
			u2  uint16
			i2  int32
			f2  float32
			ok2 bool
		)
		loader.Byte(&b2)
		loader.Uint16(&u2)
		loader.Int32(&i2)
		loader.Float32(&f2)
		loader.Bool(&ok2)
		require.NoError(t, loader.Err())
		assert.Equal(t, b, b2)
		assert.Equal(t, u, u2)
		assert.Equal(t, i, i2)
		assert.Equal(t, f, f2)
		assert.True(t, ok2)
	}
}

func TestArchive_Strings(t *testing.T) {
	cases := []struct {
		value   string
		unicode bool
	}{
		{"", false},
		{"", true},
		{"DM-Deck", false},
		{"DM-Deck", true},
		{"Café", false},
		{"プレイヤー", false},
		{"emoji 🎮", true},
	}
	for _, tc := range cases {
		buf := &Buffer{}
		saver := NewSaver(buf, ByteOrdering)
		saver.SetForceUnicode(tc.unicode)
		v := tc.value
		saver.String(&v)
		require.NoError(t, saver.Err())
		assert.Equal(t, StringSize(tc.value, tc.unicode), buf.Len(), tc.value)

		loader := NewLoader(bytes.NewReader(buf.Bytes()), ByteOrdering)
		var out string
		loader.String(&out)
		require.NoError(t, loader.Err())
		assert.Equal(t, tc.value, out)
	}
}

func TestArchive_NarrowEncodingIsSmaller(t *testing.T) {
	assert.Less(t, StringSize("WeaponClass", false), StringSize("WeaponClass", true))
	// characters above 0xFF always force the wide form
	assert.Equal(t, StringSize("日本", false), StringSize("日本", true))
}

func TestArchive_StickyError(t *testing.T) {
	loader := NewLoader(bytes.NewReader([]byte{1, 2}), ByteOrdering)
	var v int32
	loader.Int32(&v)
	require.Error(t, loader.Err())
	first := loader.Err()
	var s string
	loader.String(&s)
	assert.Equal(t, first, loader.Err())
}

func TestArchive_StringLengthGuard(t *testing.T) {
	buf := &Buffer{}
	saver := NewSaver(buf, ByteOrdering)
	n := int32(maxStringLength + 1)
	saver.Int32(&n)
	loader := NewLoader(bytes.NewReader(buf.Bytes()), ByteOrdering)
	var s string
	loader.String(&s)
	assert.ErrorIs(t, loader.Err(), ErrStringLength)
}

func TestArchive_Count(t *testing.T) {
	buf := &Buffer{}
	saver := NewSaver(buf, ByteOrdering)
	n := 20
	saver.Count(&n, 100)
	require.NoError(t, saver.Err())

	loader := NewLoader(bytes.NewReader(buf.Bytes()), ByteOrdering)
	var got int
	loader.Count(&got, 10)
	assert.ErrorIs(t, loader.Err(), ErrCountRange)
}

func TestArchive_OptionalFields(t *testing.T) {
	buf := &Buffer{}
	saver := NewSaver(buf, ByteOrdering)
	saver.SetVersion(IntroducedIn(FeatureKillType) - 1)
	killType := int32(7)
	saver.OptInt32(FeatureKillType, &killType, 0)
	assert.Equal(t, 0, buf.Len(), "field absent before its version")

	saver.SetVersion(LatestVersion)
	saver.OptInt32(FeatureKillType, &killType, 0)
	assert.Equal(t, 4, buf.Len())

	loader := NewLoader(bytes.NewReader(nil), ByteOrdering)
	loader.SetVersion(MinVersion)
	got := int32(99)
	loader.OptInt32(FeatureKillType, &got, -1)
	require.NoError(t, loader.Err())
	assert.Equal(t, int32(-1), got)
}

func TestFeatureTable_Monotonic(t *testing.T) {
	prev := MinVersion
	for f := Feature(0); f < numFeatures; f++ {
		v := IntroducedIn(f)
		assert.GreaterOrEqual(t, v, prev, "feature %d", f)
		assert.LessOrEqual(t, v, LatestVersion, "feature %d", f)
		prev = v
	}
}

func TestBuffer_Overwrite(t *testing.T) {
	buf := &Buffer{}
	_, _ = buf.Write([]byte{1, 2, 3, 4})
	_, err := buf.Seek(1, 0)
	require.NoError(t, err)
	_, _ = buf.Write([]byte{9})
	assert.Equal(t, []byte{1, 9, 3, 4}, buf.Bytes())
}
