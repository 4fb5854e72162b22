package segment

import (
	"fmt"
	"strings"
)

// ConsistencyError reports that the stored intervals of a cache key violate the
// sorted, non-overlapping invariant, or that a covering could not be built.
// Callers should stop trusting the cache when they see one.
type ConsistencyError struct {
	Key       string
	Intervals []Interval
	Reason    string
}

func (e *ConsistencyError) Error() string {
	var b strings.Builder
	b.WriteString("cache inconsistency")
	if e.Key != "" {
		fmt.Fprintf(&b, " in %s", e.Key)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if len(e.Intervals) > 0 {
		parts := make([]string, len(e.Intervals))
		for i, iv := range e.Intervals {
			parts[i] = iv.String()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, " "))
	}
	return b.String()
}

// CorruptEntryError reports a stored file that cannot be read with the current
// schema. The file is removed and the entry treated as a miss.
type CorruptEntryError struct {
	Path   string
	Reason string
	cause  error
}

// NewCorruptEntryError returns a CorruptEntryError wrapping cause (may be nil).
func NewCorruptEntryError(path, reason string, cause error) *CorruptEntryError {
	return &CorruptEntryError{Path: path, Reason: reason, cause: cause}
}

func (e *CorruptEntryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("corrupt cache entry %s: %s: %v", e.Path, e.Reason, e.cause)
	}
	return fmt.Sprintf("corrupt cache entry %s: %s", e.Path, e.Reason)
}

func (e *CorruptEntryError) Unwrap() error { return e.cause }

// IOError reports a failed filesystem operation on the cache tree.
type IOError struct {
	Op    string // e.g. "create directory", "remove", "write"
	Path  string
	cause error
}

// NewIOError returns an IOError for op on path.
func NewIOError(op, path string, cause error) *IOError {
	return &IOError{Op: op, Path: path, cause: cause}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }
