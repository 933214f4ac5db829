package events

// IndexNone marks a missing player, team or class reference
const IndexNone = -1

// maxPackedIndex is the largest index the 16 bit half of a packed value can carry.
// The all-ones value is reserved for IndexNone.
const maxPackedIndex = 0xFFFF

// PackInts stores hi in the upper and lo in the lower 16 bits
func PackInts(hi, lo int) int32 {
	return int32(uint32(hi)<<16 | uint32(lo)&0xFFFF)
}

// UnpackInts is the inverse of PackInts for signed halves
func UnpackInts(packed int32) (hi, lo int) {
	return int(packed >> 16), int(int16(packed))
}

// NormalizeRotation wraps a rotation into the signed 16 bit range
func NormalizeRotation(v int) int {
	return int(int16(v))
}

// PackIndexAndYaw packs a dictionary index with a yaw. Indices outside the
// representable range are stored as IndexNone.
func PackIndexAndYaw(index, yaw int) int32 {
	if index < 0 || index >= maxPackedIndex {
		index = maxPackedIndex
	}
	return PackInts(index, NormalizeRotation(yaw))
}

// UnpackIndexAndYaw returns IndexNone for an index that cannot reference a dictionary entry
func UnpackIndexAndYaw(packed int32) (index, yaw int) {
	index = int(uint32(packed) >> 16)
	if index >= maxPackedIndex {
		index = IndexNone
	}
	return index, int(int16(packed))
}

func PackPitchAndRoll(pitch, roll int) int32 {
	return PackInts(NormalizeRotation(pitch), NormalizeRotation(roll))
}

func UnpackPitchAndRoll(packed int32) (pitch, roll int) {
	return UnpackInts(packed)
}
