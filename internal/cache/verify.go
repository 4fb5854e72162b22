package cache

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/featcache/internal/segment"
	"github.com/inodb/featcache/internal/store"
)

// Keys returns every key with a directory under the cache root.
func (m *Manager) Keys() ([]store.Key, error) {
	return m.store.Keys()
}

// Coverage returns the stored intervals of key, sorted and validated.
func (m *Manager) Coverage(key store.Key) ([]segment.Interval, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return m.store.List(key)
}

// Entries returns the file fingerprints of every stored interval in the cache.
func (m *Manager) Entries() ([]store.FileFingerprint, error) {
	keys, err := m.store.Keys()
	if err != nil {
		return nil, err
	}
	var all []store.FileFingerprint
	for _, k := range keys {
		entries, err := m.store.Entries(k)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// VerifyReport summarizes a Verify run.
type VerifyReport struct {
	Keys      int // keys checked
	Intervals int // stored intervals seen
	Broken    int // keys failing validation
}

// Verify validates the stored intervals of every key, using up to workers
// goroutines (0 means runtime.NumCPU()). Consistency errors of all broken
// keys are combined in the returned error; I/O failures are logged and the
// key skipped.
func (m *Manager) Verify(ctx context.Context, workers int) (VerifyReport, error) {
	keys, err := m.store.Keys()
	if err != nil {
		return VerifyReport{}, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu     sync.Mutex
		report = VerifyReport{Keys: len(keys)}
		errs   error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, k := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ivs, err := m.store.List(k)

			mu.Lock()
			defer mu.Unlock()
			var ce *segment.ConsistencyError
			switch {
			case errors.As(err, &ce):
				report.Broken++
				errs = multierr.Append(errs, err)
			case err != nil:
				m.logger.Warn("failed to list key", zap.Stringer("key", k), zap.Error(err))
			default:
				report.Intervals += len(ivs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, errs
}
