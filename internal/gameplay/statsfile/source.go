package statsfile

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/tysontate/gommap"
)

// PackedExtension is appended to zstd compressed stats files
const PackedExtension = ".zst"

// source holds the bytes of an opened file, either mapped or decoded into memory
type source struct {
	file    *os.File
	dataref gommap.MMap
	data    []byte
}

func openSource(path string) (*source, error) {
	if strings.HasSuffix(path, PackedExtension) {
		return openPacked(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		_ = f.Close()
		return nil, errors.Wrap(ErrSizeMismatch, "empty file")
	}
	b, err := gommap.Map(f.Fd(), gommap.PROT_READ, gommap.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "mmap")
	}
	return &source{file: f, dataref: b, data: b}, nil
}

func openPacked(path string) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "zstd")
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.Wrap(err, "unpack")
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrSizeMismatch, "empty file")
	}
	return &source{data: data}, nil
}

func (s *source) close() error {
	var err error
	// Unmap using the original mapping
	if s.dataref != nil {
		err = s.dataref.UnsafeUnmap()
		s.dataref = nil
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	s.data = nil
	return err
}

// Pack compresses the stats file at src into dst
func Pack(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		_ = out.Close()
		return errors.Wrap(err, "zstd")
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		_ = out.Close()
		return errors.Wrap(err, "pack")
	}
	if err := enc.Close(); err != nil {
		_ = out.Close()
		return errors.Wrap(err, "pack")
	}
	return out.Close()
}

// Unpack restores a stats file compressed by Pack
func Unpack(src, dst string) error {
	s, err := openPacked(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, s.data, 0o644)
}
