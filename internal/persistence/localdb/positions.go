package localdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	positionFilenameFormat = "%s.idx"
	sizePositionEntry      = 8
	// NoPosition marks records that were not dispatched, unknown or desynced ones
	NoPosition int64 = -1
)

// PositionIndex is the file of record offsets of one session. Entry i holds the
// file offset of record i of the event stream.
type PositionIndex struct {
	f *os.File

	path  string
	total uint64
}

type positionEntry struct {
	Position int64
}

func positionPath(rootDir, key string) string {
	return filepath.Join(rootDir, fmt.Sprintf(positionFilenameFormat, key))
}

func openPositions(rootDir, key string) (*PositionIndex, error) {
	path := positionPath(rootDir, key)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	fileInfo, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "stat file failed")
	}
	return &PositionIndex{
		f:     file,
		path:  path,
		total: uint64(fileInfo.Size()) / sizePositionEntry,
	}, nil
}

// writePositions replaces the position file of a session
func writePositions(rootDir, key string, positions []int64) error {
	if err := deletePositions(rootDir, key); err != nil {
		return err
	}
	idx, err := openPositions(rootDir, key)
	if err != nil {
		return err
	}
	if _, err = idx.WriteBatch(positions); err != nil {
		_ = idx.Close()
		return err
	}
	return idx.Close()
}

func deletePositions(rootDir, key string) error {
	err := os.Remove(positionPath(rootDir, key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteBatch appends positions and returns the number of entries stored in the file
func (idx *PositionIndex) WriteBatch(positions []int64) (uint64, error) {
	buf := new(bytes.Buffer)
	entry := positionEntry{}
	for _, pos := range positions {
		entry.Position = pos
		if err := binary.Write(buf, ByteOrdering, entry); err != nil {
			return 0, errors.Wrap(err, "write position to buffer failed")
		}
	}
	writtenBytes, err := idx.f.Write(buf.Bytes())
	idx.total += uint64(writtenBytes) / sizePositionEntry
	if err != nil {
		return 0, errors.Wrap(err, "write positions to disk failed")
	}
	return idx.total, nil
}

// Read returns up to limit positions from offset, every position from offset when limit is 0
func (idx *PositionIndex) Read(offset, limit uint64) ([]int64, error) {
	positions := make([]int64, 0)
	if idx.total <= offset {
		return positions, nil
	}
	if limit == 0 || offset+limit > idx.total {
		limit = idx.total - offset
	}
	buf := make([]byte, sizePositionEntry*limit)
	if _, err := idx.f.ReadAt(buf, int64(offset*sizePositionEntry)); err != nil {
		return nil, errors.Wrap(err, "error while reading positions")
	}

	reader := bytes.NewReader(buf)
	entry := positionEntry{}
	for {
		err := binary.Read(reader, ByteOrdering, &entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error while reading positions")
		}
		positions = append(positions, entry.Position)
	}
	return positions, nil
}

func (idx *PositionIndex) Len() uint64 {
	return idx.total
}

func (idx *PositionIndex) Close() error {
	return idx.f.Close()
}
