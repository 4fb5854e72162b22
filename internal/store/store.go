package store

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/inodb/featcache/internal/segment"
)

// Store manages the on-disk directory tree of the cache:
//
//	<root>/<track>/<organism>_<build>/<chromosome>/<start>_<end>
//
// Each leaf file holds one serialized segment. The store only deals with
// names and directories; file contents belong to the codec package.
type Store struct {
	fs   afero.Fs
	root string

	// dirMu serializes directory creation so racing first writes to a key
	// both observe a usable directory.
	dirMu sync.Mutex
}

// New creates a store rooted at root on the given filesystem.
// Pass afero.NewOsFs() for the real disk or afero.NewMemMapFs() in tests.
func New(fsys afero.Fs, root string) *Store {
	return &Store{fs: fsys, root: filepath.Clean(root)}
}

// Fs returns the filesystem the store operates on.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding the intervals of a key.
func (s *Store) Dir(k Key) string {
	return filepath.Join(s.root, k.RelDir())
}

// Path returns the file path of a stored interval.
func (s *Store) Path(k Key, iv segment.Interval) string {
	return filepath.Join(s.Dir(k), iv.String())
}

// EnsureDir creates the key's directory if needed. An existing directory,
// including one created concurrently by another caller, is success.
func (s *Store) EnsureDir(k Key) error {
	dir := s.Dir(k)

	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	if err := s.fs.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return segment.NewIOError("create directory", dir, err)
	}
	return nil
}

// ListOverlapping returns the stored intervals of k that intersect iv, sorted
// ascending by start. A key with no directory yields nil. The listing is
// validated; a broken invariant is returned as a *segment.ConsistencyError.
func (s *Store) ListOverlapping(k Key, iv segment.Interval) ([]segment.Interval, error) {
	all, err := s.List(k)
	if err != nil || len(all) == 0 {
		return nil, err
	}

	var result []segment.Interval
	for _, stored := range all {
		if stored.Overlaps(iv) {
			result = append(result, stored)
		}
	}
	return result, nil
}

// List returns every stored interval of k, sorted and validated.
func (s *Store) List(k Key) ([]segment.Interval, error) {
	all, err := s.list(k)
	if err != nil {
		return nil, err
	}
	if err := Validate(k, all); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) list(k Key) ([]segment.Interval, error) {
	dir := s.Dir(k)
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, segment.NewIOError("read directory", dir, err)
	}

	ivs := make([]segment.Interval, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if iv, ok := ParseName(info.Name()); ok {
			ivs = append(ivs, iv)
		}
	}
	segment.SortIntervals(ivs)
	return ivs, nil
}

// ParseName parses a "start_end" file name. Names without a separator,
// with non-numeric bounds, or hidden (temporary) files are rejected.
func ParseName(name string) (segment.Interval, bool) {
	if strings.HasPrefix(name, ".") {
		return segment.Interval{}, false
	}
	startStr, endStr, ok := strings.Cut(name, "_")
	if !ok {
		return segment.Interval{}, false
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return segment.Interval{}, false
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return segment.Interval{}, false
	}
	return segment.Interval{Start: start, End: end}, true
}

// Validate checks that ivs are well formed and strictly ascending with no
// shared position. ivs must already be sorted by start.
func Validate(k Key, ivs []segment.Interval) error {
	for i, iv := range ivs {
		if !iv.Valid() {
			return &segment.ConsistencyError{
				Key:       k.String(),
				Intervals: []segment.Interval{iv},
				Reason:    "interval start after end",
			}
		}
		if i > 0 && iv.Start <= ivs[i-1].End {
			return &segment.ConsistencyError{
				Key:       k.String(),
				Intervals: []segment.Interval{ivs[i-1], iv},
				Reason:    "stored intervals overlap or are out of order",
			}
		}
	}
	return nil
}

// Remove deletes a stored interval. A file that is already gone is success.
func (s *Store) Remove(k Key, iv segment.Interval) error {
	path := s.Path(k, iv)
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return segment.NewIOError("remove", path, err)
	}
	return nil
}

// Keys walks the root and returns every key that has a directory, sorted.
func (s *Store) Keys() ([]Key, error) {
	var keys []Key

	tracks, err := s.subdirs(s.root)
	if err != nil {
		return nil, err
	}
	for _, track := range tracks {
		assemblies, err := s.subdirs(filepath.Join(s.root, track))
		if err != nil {
			return nil, err
		}
		for _, asm := range assemblies {
			organism, build, ok := parseAssemblyDir(asm)
			if !ok {
				continue
			}
			chroms, err := s.subdirs(filepath.Join(s.root, track, asm))
			if err != nil {
				return nil, err
			}
			for _, chrom := range chroms {
				keys = append(keys, Key{Track: track, Organism: organism, Build: build, Chromosome: chrom})
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

func (s *Store) subdirs(dir string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, segment.NewIOError("read directory", dir, err)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

// Clear removes everything under the root. Every entry is attempted; the
// failures are combined into the returned error.
func (s *Store) Clear() error {
	infos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return segment.NewIOError("read directory", s.root, err)
	}

	var errs error
	for _, info := range infos {
		path := filepath.Join(s.root, info.Name())
		if err := s.fs.RemoveAll(path); err != nil {
			errs = multierr.Append(errs, segment.NewIOError("remove", path, err))
		}
	}
	return errs
}

// FileFingerprint holds stat-based identity for a stored interval file.
type FileFingerprint struct {
	Key      Key
	Interval segment.Interval
	Path     string
	Size     int64
	ModTime  time.Time
}

// Entries stats every stored file of k.
func (s *Store) Entries(k Key) ([]FileFingerprint, error) {
	ivs, err := s.list(k)
	if err != nil {
		return nil, err
	}
	out := make([]FileFingerprint, 0, len(ivs))
	for _, iv := range ivs {
		path := s.Path(k, iv)
		info, err := s.fs.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // removed since the listing
			}
			return nil, segment.NewIOError("stat", path, err)
		}
		out = append(out, FileFingerprint{
			Key:      k,
			Interval: iv,
			Path:     path,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return out, nil
}
