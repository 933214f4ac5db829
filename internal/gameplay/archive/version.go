package archive

const (
	// MinVersion is the oldest file format version still readable
	MinVersion int32 = 2
	// LatestVersion is the version every new file is written with
	LatestVersion int32 = 14
)

// Feature names an optional field group of the file format
type Feature int

const (
	FeatureSessionInstance Feature = iota
	FeatureActorArray
	FeatureGameTypeAndPlaylist
	FeatureSplitScreenLogin
	FeatureKillType
	FeatureSoundCueArray
	FeatureOwningNetID
	FeatureAggregateOffset
	FeatureHeaderFlags
	FeatureSessionType
	FeatureEventStatGroup
	FeaturePlayerUniqueID
	numFeatures
)

// introducedIn is the single table of format evolution. Every versioned field
// is read and written through it, never by comparing version numbers inline.
var introducedIn = [numFeatures]int32{
	FeatureSessionInstance:     3,
	FeatureActorArray:          4,
	FeatureGameTypeAndPlaylist: 5,
	FeatureSplitScreenLogin:    6,
	FeatureKillType:            7,
	FeatureSoundCueArray:       8,
	FeatureOwningNetID:         9,
	FeatureAggregateOffset:     10,
	FeatureHeaderFlags:         11,
	FeatureSessionType:         12,
	FeatureEventStatGroup:      13,
	FeaturePlayerUniqueID:      14,
}

// IntroducedIn returns the first version carrying the feature
func IntroducedIn(f Feature) int32 {
	return introducedIn[f]
}

// SupportsFeature reports whether files of the given version carry the feature
func SupportsFeature(version int32, f Feature) bool {
	return version >= introducedIn[f]
}

// Has reports whether the pinned version carries the feature
func (ar *Archive) Has(f Feature) bool {
	return SupportsFeature(ar.version, f)
}

// OptInt32 serializes v if the pinned version has the feature, otherwise a load yields def
func (ar *Archive) OptInt32(f Feature, v *int32, def int32) {
	if ar.Has(f) {
		ar.Int32(v)
	} else if ar.IsLoading() {
		*v = def
	}
}

func (ar *Archive) OptFloat32(f Feature, v *float32, def float32) {
	if ar.Has(f) {
		ar.Float32(v)
	} else if ar.IsLoading() {
		*v = def
	}
}

func (ar *Archive) OptString(f Feature, v *string, def string) {
	if ar.Has(f) {
		ar.String(v)
	} else if ar.IsLoading() {
		*v = def
	}
}

func (ar *Archive) OptBool(f Feature, v *bool, def bool) {
	if ar.Has(f) {
		ar.Bool(v)
	} else if ar.IsLoading() {
		*v = def
	}
}

// OptSize returns n if the pinned version has the feature, 0 otherwise
func (ar *Archive) OptSize(f Feature, n int) int {
	if ar.Has(f) {
		return n
	}
	return 0
}
