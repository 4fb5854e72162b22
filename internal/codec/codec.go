// Package codec persists segment payloads to single files.
//
// Every file starts with a fixed header:
//
//	"FSEG" | schema version (1 byte) | compression (1 byte) | body
//
// The body is a gob-encoded record, compressed as the header says. A file
// whose header does not match the current schema is removed on load and
// reported as a miss, so the cache forgets entries it can no longer read.
package codec

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/inodb/featcache/internal/segment"
)

// SchemaVersion is bumped whenever the record layout changes.
const SchemaVersion uint8 = 1

const headerSize = 6

var magic = []byte("FSEG")

// ErrMiss is returned by Load when no file exists for the interval.
var ErrMiss = errors.New("cache miss")

// payload kinds recorded so an empty region list survives a round trip
// (gob drops empty slices).
const (
	kindEmpty uint8 = iota
	kindValues
	kindRegions
)

// record is the gob body of a stored file.
type record struct {
	Start   int64
	End     int64
	Kind    uint8
	Values  []float64
	Regions []*segment.Region
}

// Serializer reads and writes segment files.
type Serializer struct {
	fs          afero.Fs
	compression Compression
}

// New creates a serializer on fsys using zstd compression.
func New(fsys afero.Fs) *Serializer {
	return &Serializer{fs: fsys, compression: CompressionZSTD}
}

// SetCompression selects the compression used for new files.
func (s *Serializer) SetCompression(c Compression) {
	s.compression = c
}

// Compression returns the compression used for new files.
func (s *Serializer) Compression() Compression {
	return s.compression
}

// IsMiss reports whether err from Load means "not cached": either no file
// or a corrupt entry that was removed.
func IsMiss(err error) bool {
	var corrupt *segment.CorruptEntryError
	return errors.Is(err, ErrMiss) || errors.As(err, &corrupt)
}

// Encode serializes a segment into file bytes.
func (s *Serializer) Encode(seg *segment.Segment) ([]byte, error) {
	rec := record{Start: seg.Start, End: seg.End}
	if p := seg.Payload; p != nil {
		switch {
		case p.Values != nil:
			if int64(len(p.Values)) != seg.Len() {
				return nil, fmt.Errorf("encode segment %s: %d values for %d positions", seg.Interval, len(p.Values), seg.Len())
			}
			rec.Kind = kindValues
			rec.Values = p.Values
		case p.Regions != nil:
			rec.Kind = kindRegions
			rec.Regions = p.Regions
		}
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(&rec); err != nil {
		return nil, fmt.Errorf("encode segment %s: %w", seg.Interval, err)
	}
	compressed, err := compress(s.compression, body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encode segment %s: %w", seg.Interval, err)
	}

	out := make([]byte, 0, headerSize+len(compressed))
	out = append(out, magic...)
	out = append(out, SchemaVersion, byte(s.compression))
	return append(out, compressed...), nil
}

// Decode parses file bytes written for interval iv. Any mismatch is
// returned as a *segment.CorruptEntryError with an empty path.
func (s *Serializer) Decode(data []byte, iv segment.Interval) (*segment.Payload, error) {
	comp, reason := checkHeader(data)
	if reason != "" {
		return nil, segment.NewCorruptEntryError("", reason, nil)
	}

	body, err := decompress(comp, data[headerSize:])
	if err != nil {
		return nil, segment.NewCorruptEntryError("", "unreadable body", err)
	}

	var rec record
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&rec); err != nil {
		return nil, segment.NewCorruptEntryError("", "undecodable body", err)
	}
	if rec.Start != iv.Start || rec.End != iv.End {
		return nil, segment.NewCorruptEntryError("",
			fmt.Sprintf("holds %d_%d, named %s", rec.Start, rec.End, iv), nil)
	}

	switch rec.Kind {
	case kindValues:
		if int64(len(rec.Values)) != iv.Len() {
			return nil, segment.NewCorruptEntryError("",
				fmt.Sprintf("%d values for %d positions", len(rec.Values), iv.Len()), nil)
		}
		return &segment.Payload{Values: rec.Values}, nil
	case kindRegions:
		if rec.Regions == nil {
			rec.Regions = []*segment.Region{}
		}
		return &segment.Payload{Regions: rec.Regions}, nil
	default:
		return &segment.Payload{}, nil
	}
}

// checkHeader validates the fixed header and returns the body compression.
// A non-empty reason means the file is not readable with this schema.
func checkHeader(data []byte) (Compression, string) {
	if len(data) < headerSize {
		return 0, "truncated header"
	}
	if !bytes.Equal(data[:len(magic)], magic) {
		return 0, "bad magic"
	}
	if v := data[4]; v != SchemaVersion {
		return 0, fmt.Sprintf("schema version %d, want %d", v, SchemaVersion)
	}
	comp := Compression(data[5])
	if !comp.known() {
		return 0, fmt.Sprintf("unknown compression %d", data[5])
	}
	return comp, ""
}

// Staged is a fully written temporary file waiting to be renamed into place.
type Staged struct {
	fs    afero.Fs
	tmp   string
	final string
}

// Path returns the final path the staged file will be committed to.
func (st *Staged) Path() string {
	return st.final
}

// Commit atomically moves the staged file to its final path.
func (st *Staged) Commit() error {
	if err := st.fs.Rename(st.tmp, st.final); err != nil {
		st.fs.Remove(st.tmp)
		return segment.NewIOError("rename", st.final, err)
	}
	return nil
}

// Discard removes the staged file.
func (st *Staged) Discard() {
	st.fs.Remove(st.tmp)
}

// Stage encodes seg and writes it to a hidden temporary file next to path.
// Nothing is visible under path until Commit.
func (s *Serializer) Stage(path string, seg *segment.Segment) (*Staged, error) {
	data, err := s.Encode(seg)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, segment.NewIOError("create directory", dir, err)
	}

	f, err := afero.TempFile(s.fs, dir, ".seg-")
	if err != nil {
		return nil, segment.NewIOError("create temp file", dir, err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return nil, segment.NewIOError("write", tmp, err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return nil, segment.NewIOError("close", tmp, err)
	}
	return &Staged{fs: s.fs, tmp: tmp, final: path}, nil
}

// Store writes seg to path.
func (s *Serializer) Store(path string, seg *segment.Segment) error {
	st, err := s.Stage(path, seg)
	if err != nil {
		return err
	}
	return st.Commit()
}

// Load reads the payload stored at path for interval iv.
//
// A missing file returns ErrMiss. A file that fails schema validation is
// removed and returned as a *segment.CorruptEntryError. Other read failures
// are returned as *segment.IOError; callers treat all three as a miss.
func (s *Serializer) Load(path string, iv segment.Interval) (*segment.Payload, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, segment.NewIOError("read", path, err)
	}

	p, err := s.Decode(data, iv)
	if err != nil {
		var corrupt *segment.CorruptEntryError
		if errors.As(err, &corrupt) {
			corrupt.Path = path
			if rmErr := s.fs.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				return nil, segment.NewIOError("remove corrupt entry", path, rmErr)
			}
		}
		return nil, err
	}
	return p, nil
}
