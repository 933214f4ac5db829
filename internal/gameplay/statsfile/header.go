package statsfile

import (
	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

// Invalid marks an offset or size not yet known
const Invalid int32 = -1 // 0xffffffff on disk

// EngineVersion is stamped into every written header
const EngineVersion int32 = 8917

// Header flags
const (
	// FlagNoEventStrings means the SupportedEvents table was written IDs only
	FlagNoEventStrings int32 = 1 << iota
	// FlagIncomplete is set by the provisional header and cleared only when the file is finalized
	FlagIncomplete
)

// FileHeader opens every stats file. Fields beyond the two versions are
// present depending on FormatVersion.
type FileHeader struct {
	EngineVersion   int32
	FormatVersion   int32
	StreamOffset    int32
	AggregateOffset int32
	FooterOffset    int32
	TotalStreamSize int32
	FileSize        int32
	FilterClass     string
	Flags           int32
}

func newProvisionalHeader(version int32, filterClass string, flags int32) FileHeader {
	return FileHeader{
		EngineVersion:   EngineVersion,
		FormatVersion:   version,
		StreamOffset:    Invalid,
		AggregateOffset: Invalid,
		FooterOffset:    Invalid,
		TotalStreamSize: Invalid,
		FileSize:        Invalid,
		FilterClass:     filterClass,
		Flags:           flags | FlagIncomplete,
	}
}

// Serialize reads or writes the header. When loading, the format version is
// read first and pinned on the archive before any optional field.
func (h *FileHeader) Serialize(ar *archive.Archive) {
	ar.Int32(&h.EngineVersion)
	ar.Int32(&h.FormatVersion)
	if ar.Err() != nil {
		return
	}
	if h.FormatVersion < archive.MinVersion || h.FormatVersion > archive.LatestVersion {
		ar.Fail(errors.Wrapf(ErrBadVersion, "version %d outside [%d, %d]",
			h.FormatVersion, archive.MinVersion, archive.LatestVersion))
		return
	}
	ar.SetVersion(h.FormatVersion)
	ar.Int32(&h.StreamOffset)
	ar.OptInt32(archive.FeatureAggregateOffset, &h.AggregateOffset, Invalid)
	ar.Int32(&h.FooterOffset)
	ar.Int32(&h.TotalStreamSize)
	ar.Int32(&h.FileSize)
	ar.OptString(archive.FeatureHeaderFlags, &h.FilterClass, "")
	ar.OptInt32(archive.FeatureHeaderFlags, &h.Flags, 0)
}

// Size is the encoded header length, identical for the provisional and final header
func (h *FileHeader) Size(ar *archive.Archive) int {
	size := 6 * 4
	size += ar.OptSize(archive.FeatureAggregateOffset, 4)
	size += ar.OptSize(archive.FeatureHeaderFlags, ar.StringSize(h.FilterClass)+4)
	return size
}

func (h FileHeader) HasFlag(flag int32) bool {
	return h.Flags&flag != 0
}

func (h FileHeader) HasAggregates() bool {
	return h.AggregateOffset != Invalid && h.AggregateOffset > 0
}

// Validate checks the header against the actual file size, naming the first failing field
func (h *FileHeader) Validate(actualSize int64) error {
	switch {
	case h.FormatVersion < archive.MinVersion || h.FormatVersion > archive.LatestVersion:
		return errors.Wrapf(ErrBadVersion, "version %d", h.FormatVersion)
	case h.HasFlag(FlagIncomplete):
		return errors.Wrap(ErrIncomplete, "flags")
	case h.StreamOffset <= 0:
		return errors.Wrapf(ErrBadOffsets, "stream offset %d", h.StreamOffset)
	case h.FooterOffset == Invalid || h.FooterOffset <= h.StreamOffset:
		return errors.Wrapf(ErrBadOffsets, "footer offset %d (stream offset %d)", h.FooterOffset, h.StreamOffset)
	case h.TotalStreamSize <= 0:
		return errors.Wrapf(ErrBadOffsets, "total stream size %d", h.TotalStreamSize)
	case int64(h.StreamOffset)+int64(h.TotalStreamSize) > int64(h.FooterOffset):
		return errors.Wrapf(ErrBadOffsets, "stream [%d, +%d) overlaps footer at %d",
			h.StreamOffset, h.TotalStreamSize, h.FooterOffset)
	case h.HasAggregates() && (h.AggregateOffset < h.StreamOffset || h.AggregateOffset > h.FooterOffset):
		return errors.Wrapf(ErrBadOffsets, "aggregate offset %d", h.AggregateOffset)
	case h.FileSize == Invalid || h.FileSize <= 0:
		return errors.Wrapf(ErrSizeMismatch, "file size %d", h.FileSize)
	case h.FooterOffset >= h.FileSize:
		return errors.Wrapf(ErrBadOffsets, "footer offset %d beyond file size %d", h.FooterOffset, h.FileSize)
	case int64(h.FileSize) != actualSize:
		return errors.Wrapf(ErrSizeMismatch, "header says %d, file has %d", h.FileSize, actualSize)
	}
	return nil
}
