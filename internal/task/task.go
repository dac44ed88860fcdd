package task

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Extension is the file extension task documents carry.
const Extension = ".md"

const idPrefix = "task-"

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further automatic processing.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Document is an on-disk task specification file.
type Document struct {
	ID       string
	Path     string
	SourceID string
	Size     int64
	ModTime  time.Time
}

// Name returns the document's filename.
func (d Document) Name() string {
	return filepath.Base(d.Path)
}

// FromPath builds a Document for a file whose name satisfies the task
// filename grammar. Returns false for non-matching names.
func FromPath(path, sourceID string) (Document, bool) {
	name := filepath.Base(path)
	id, ok := ParseFilename(name)
	if !ok {
		return Document{}, false
	}
	return Document{ID: id, Path: path, SourceID: sourceID}, true
}

// ParseFilename extracts the task id from a filename of the form
// task-YYYYMMDD-HHMMSS-<slug>.md. Returns false when the name does not
// satisfy the grammar.
func ParseFilename(name string) (string, bool) {
	if !strings.HasSuffix(name, Extension) {
		return "", false
	}
	id := strings.TrimSuffix(name, Extension)
	if !ValidID(id) {
		return "", false
	}
	return id, true
}

// ValidID reports whether id satisfies task-YYYYMMDD-HHMMSS-<slug>:
// literal prefix, 8-digit date, 6-digit time, non-empty free-form slug.
func ValidID(id string) bool {
	if !strings.HasPrefix(id, idPrefix) {
		return false
	}
	rest := id[len(idPrefix):]
	parts := strings.SplitN(rest, "-", 3)
	if len(parts) < 3 {
		return false
	}
	return allDigits(parts[0], 8) && allDigits(parts[1], 6) && parts[2] != ""
}

// Timestamp parses the date/time embedded in a valid task id.
func Timestamp(id string) (time.Time, error) {
	if !ValidID(id) {
		return time.Time{}, fmt.Errorf("invalid task id %q", id)
	}
	rest := id[len(idPrefix):]
	parts := strings.SplitN(rest, "-", 3)
	return time.ParseInLocation("20060102-150405", parts[0]+"-"+parts[1], time.Local)
}

// NewID builds a task id from a timestamp and slug. The slug is lowercased
// and non-alphanumeric runs collapse to single hyphens.
func NewID(ts time.Time, slug string) string {
	return idPrefix + ts.Format("20060102-150405") + "-" + normalizeSlug(slug)
}

func normalizeSlug(slug string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(slug)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "task"
	}
	return out
}

func allDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
