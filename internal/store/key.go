// Package store maps cache keys to directories and lists the intervals stored under them.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for keys that cannot be mapped to a directory.
var ErrInvalidKey = errors.New("invalid cache key")

// Key identifies one cache directory.
type Key struct {
	Track      string // track name (e.g. "genes", "gc_content")
	Organism   string // organism identifier (e.g. "homo_sapiens", "9606")
	Build      string // genome build (e.g. "GRCh38")
	Chromosome string // chromosome name as used by the track
}

// Validate checks that every component is usable as a single path element.
func (k Key) Validate() error {
	for _, part := range []struct{ name, val string }{
		{"track", k.Track},
		{"organism", k.Organism},
		{"build", k.Build},
		{"chromosome", k.Chromosome},
	} {
		if part.val == "" {
			return fmt.Errorf("%w: empty %s", ErrInvalidKey, part.name)
		}
		if part.val == "." || part.val == ".." || strings.ContainsAny(part.val, `/\`) {
			return fmt.Errorf("%w: %s %q is not a path element", ErrInvalidKey, part.name, part.val)
		}
	}
	// organism may contain underscores (homo_sapiens); the build is what
	// follows the last one.
	if strings.Contains(k.Build, "_") {
		return fmt.Errorf("%w: build %q contains '_'", ErrInvalidKey, k.Build)
	}
	return nil
}

// parseAssemblyDir splits an organism_build directory name.
func parseAssemblyDir(name string) (organism, build string, ok bool) {
	i := strings.LastIndexByte(name, '_')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// RelDir returns the key's directory relative to the cache root:
// track/organism_build/chromosome.
func (k Key) RelDir() string {
	return filepath.Join(k.Track, k.Organism+"_"+k.Build, k.Chromosome)
}

// String formats the key for log messages.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s_%s/%s", k.Track, k.Organism, k.Build, k.Chromosome)
}
