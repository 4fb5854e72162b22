// Package cache provides the disk-backed genomic segment cache.
//
// A Manager stores payloads for sub-ranges of a (track, organism, build,
// chromosome) key. Stored ranges of a key never overlap: writes are cropped
// against what is already there, and reads are split into pieces aligned
// with stored ranges plus placeholders for the gaps.
package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/inodb/featcache/internal/codec"
	"github.com/inodb/featcache/internal/overlap"
	"github.com/inodb/featcache/internal/segment"
	"github.com/inodb/featcache/internal/store"
)

// ErrInvalidWorkingSet is returned by Load when the caller's segments do not
// cover the requested range exactly.
var ErrInvalidWorkingSet = errors.New("working segments do not cover range")

// rootLocks holds one write lock per cache root, shared by every Manager in
// the process that opens the same root.
var rootLocks sync.Map

func rootLock(root string) *sync.Mutex {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	l, _ := rootLocks.LoadOrStore(root, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Manager is the public face of the cache. It is safe for concurrent use.
type Manager struct {
	store  *store.Store
	codec  *codec.Serializer
	mu     *sync.Mutex // guards every mutation of the tree
	logger *zap.Logger
}

// New creates a manager for the cache rooted at root on fsys.
func New(fsys afero.Fs, root string) *Manager {
	return &Manager{
		store:  store.New(fsys, root),
		codec:  codec.New(fsys),
		mu:     rootLock(root),
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (m *Manager) SetLogger(l *zap.Logger) {
	m.logger = l
}

// SetCompression selects the compression used for new files.
func (m *Manager) SetCompression(c codec.Compression) {
	m.codec.SetCompression(c)
}

// Root returns the cache root directory.
func (m *Manager) Root() string {
	return m.store.Root()
}

// Save stores the data src holds for rng under key.
//
// It returns true when the range was written, or when there was nothing to
// write because the range is already cached. It returns false with a nil
// error when a filesystem operation failed; the cache is left as it was
// before the call. A non-nil error is either an invalid argument or a
// *segment.ConsistencyError, meaning the stored intervals can no longer be
// trusted.
func (m *Manager) Save(key store.Key, rng segment.Interval, src Source) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	if !rng.Valid() {
		return false, fmt.Errorf("save %s: invalid range %s", key, rng)
	}
	if src.Chromosome() != key.Chromosome {
		return false, fmt.Errorf("save %s: source is on chromosome %q", key, src.Chromosome())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.logger.With(zap.Stringer("key", key), zap.Stringer("range", rng))

	stored, err := m.store.ListOverlapping(key, rng)
	if err != nil {
		return m.failed(log, "list stored intervals", err)
	}

	plan, err := overlap.PlanWrite(rng, stored)
	if err != nil {
		return m.failed(log, "plan write", withKey(err, key))
	}
	if plan.Covered {
		log.Debug("range already cached")
		return true, nil
	}
	if plan.Degenerate() {
		log.Debug("range cropped to nothing")
		return true, nil
	}

	payload, err := src.ExtractPayload(plan.Range.Start, plan.Range.End)
	if err != nil {
		log.Warn("failed to extract payload", zap.Error(err))
		return false, nil
	}
	if payload == nil {
		payload = &segment.Payload{}
	}
	payload = payload.Clone()
	payload.Rebase(src.RangeStart() - plan.Range.Start)

	seg := &segment.Segment{Interval: plan.Range, Payload: payload, Status: segment.StatusCached}

	if err := m.store.EnsureDir(key); err != nil {
		return m.failed(log, "create key directory", err)
	}
	staged, err := m.codec.Stage(m.store.Path(key, plan.Range), seg)
	if err != nil {
		return m.failed(log, "stage segment", err)
	}

	// Superseded files go before the new one becomes visible, so readers
	// never see two overlapping files. A failed removal aborts the save.
	for _, old := range plan.Obsolete {
		if err := m.store.Remove(key, old); err != nil {
			staged.Discard()
			return m.failed(log, "remove superseded segment", err)
		}
	}
	if err := staged.Commit(); err != nil {
		return m.failed(log, "commit segment", err)
	}

	log.Info("cached segment",
		zap.Stringer("written", plan.Range),
		zap.Int("superseded", len(plan.Obsolete)))
	return true, nil
}

// failed logs err and turns it into Save's result: consistency errors are
// returned, everything else becomes false.
func (m *Manager) failed(log *zap.Logger, what string, err error) (bool, error) {
	var ce *segment.ConsistencyError
	if errors.As(err, &ce) {
		log.Error("cache inconsistency", zap.String("during", what), zap.Error(err))
		return false, err
	}
	log.Warn("cache write failed", zap.String("during", what), zap.Error(err))
	return false, nil
}

// Load refines working, the caller's segments spanning rng, with what the
// cache holds for key.
//
// Each segment without a payload is split into pieces aligned with the
// stored intervals it overlaps; pieces backed by a stored interval get its
// payload (cropped if the piece is only part of it), the rest stay empty
// placeholders. Segments that already carry a payload are kept untouched.
// A nil working list stands for a single placeholder over rng.
//
// Misses, unreadable files and import failures are not errors. If target is
// non-nil each recovered piece is passed to it; a piece it rejects is
// reverted to an empty placeholder marked StatusImportFailed. The only
// errors returned are invalid arguments and *segment.ConsistencyError.
func (m *Manager) Load(key store.Key, working []*segment.Segment, rng segment.Interval, target Importer) ([]*segment.Segment, error) {
	if err := key.Validate(); err != nil {
		return working, err
	}
	if !rng.Valid() {
		return working, fmt.Errorf("%w: invalid range %s", ErrInvalidWorkingSet, rng)
	}
	if len(working) == 0 {
		working = []*segment.Segment{segment.NewPlaceholder(rng)}
	} else if err := overlap.VerifyCovering(working, rng); err != nil {
		return working, fmt.Errorf("%w: %v", ErrInvalidWorkingSet, err)
	}

	log := m.logger.With(zap.Stringer("key", key), zap.Stringer("range", rng))

	stored, err := m.store.ListOverlapping(key, rng)
	if err != nil {
		var ce *segment.ConsistencyError
		if errors.As(err, &ce) {
			log.Error("cache inconsistency", zap.Error(err))
			return working, err
		}
		log.Warn("failed to list stored intervals", zap.Error(err))
		return working, nil
	}
	if len(stored) == 0 {
		return working, nil
	}

	idx := overlap.NewIndex(stored)
	out := make([]*segment.Segment, 0, len(working)+2*len(stored))
	for _, seg := range working {
		if !seg.Empty() {
			out = append(out, seg)
			continue
		}
		hits := idx.FindOverlaps(seg.Interval)
		if len(hits) == 0 {
			out = append(out, seg)
			continue
		}
		for _, piece := range overlap.Split(seg.Interval, hits) {
			out = append(out, m.loadPiece(log, key, piece, hits, target))
		}
	}

	if err := overlap.VerifyCovering(out, rng); err != nil {
		log.Error("split segments do not cover range", zap.Error(withKey(err, key)))
	}
	return out, nil
}

// loadPiece builds the segment for one piece of a split.
func (m *Manager) loadPiece(log *zap.Logger, key store.Key, piece segment.Interval, hits []segment.Interval, target Importer) *segment.Segment {
	sub := segment.NewPlaceholder(piece)

	stored, kind := overlap.Match(piece, hits)
	if kind == overlap.MatchNone {
		return sub
	}

	payload, err := m.codec.Load(m.store.Path(key, stored), stored)
	if err != nil {
		var corrupt *segment.CorruptEntryError
		switch {
		case errors.As(err, &corrupt):
			log.Info("removed unreadable cache entry", zap.Stringer("stored", stored), zap.Error(err))
		case errors.Is(err, codec.ErrMiss):
			log.Debug("cache entry vanished", zap.Stringer("stored", stored))
		default:
			log.Warn("failed to read cache entry", zap.Stringer("stored", stored), zap.Error(err))
		}
		return sub
	}

	if kind == overlap.MatchWithin {
		payload, err = payload.Crop(stored, piece)
		if err != nil {
			log.Warn("failed to crop cached payload", zap.Stringer("stored", stored), zap.Error(err))
			return sub
		}
	}
	sub.Payload = payload
	sub.Status = segment.StatusCached

	if target != nil {
		if err := target.ImportPayload(sub.Clone()); err != nil {
			log.Warn("failed to import cached segment", zap.Stringer("piece", piece), zap.Error(err))
			sub.Payload = nil
			sub.Status = segment.StatusImportFailed
		}
	}
	return sub
}

// WriteBack saves every segment of segs the caller filled from the original
// source. It returns the number of segments written.
func (m *Manager) WriteBack(key store.Key, segs []*segment.Segment) (int, error) {
	written := 0
	for _, seg := range segs {
		if !seg.NeedsWriteBack() {
			continue
		}
		ok, err := m.Save(key, seg.Interval, SegmentSource(key.Chromosome, seg))
		if err != nil {
			return written, err
		}
		if ok {
			seg.Status = segment.StatusCached
			written++
		}
	}
	return written, nil
}

// Clear removes everything under the cache root. It returns false if any
// entry could not be removed; every entry is attempted regardless.
func (m *Manager) Clear() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear cache", zap.String("root", m.store.Root()), zap.Error(err))
		return false
	}
	m.logger.Info("cleared cache", zap.String("root", m.store.Root()))
	return true
}

// withKey records the key on a consistency error raised below the store.
func withKey(err error, key store.Key) error {
	var ce *segment.ConsistencyError
	if errors.As(err, &ce) && ce.Key == "" {
		ce.Key = key.String()
	}
	return err
}
