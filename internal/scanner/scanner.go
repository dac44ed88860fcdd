// Package scanner enumerates pending task documents for a source directory.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taskqueue/internal/task"
)

// ListCandidates returns the task documents in dir whose filenames match the
// task grammar, sorted by filename so queue order follows the embedded
// timestamp. Lock files, hidden files, subdirectories, and files with other
// names are skipped.
func ListCandidates(dir, sourceID string) ([]task.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := task.ParseFilename(name); !ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]task.Document, 0, len(names))
	for _, name := range names {
		doc, ok, err := Stat(filepath.Join(dir, name), sourceID)
		if err != nil {
			return nil, err
		}
		// File disappeared between listing and stat.
		if !ok {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Stat builds a Document for path with its current size and mtime. Returns
// ok=false when the file is absent or the name does not match the grammar.
func Stat(path, sourceID string) (task.Document, bool, error) {
	doc, ok := task.FromPath(path, sourceID)
	if !ok {
		return task.Document{}, false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return task.Document{}, false, nil
		}
		return task.Document{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return task.Document{}, false, nil
	}
	doc.Size = info.Size()
	doc.ModTime = info.ModTime()
	return doc, true, nil
}

// Lookup returns the document for taskID in dir, or ok=false when the file
// is absent.
func Lookup(dir, sourceID, taskID string) (task.Document, bool, error) {
	if !task.ValidID(taskID) {
		return task.Document{}, false, fmt.Errorf("invalid task id %q", taskID)
	}
	return Stat(filepath.Join(dir, taskID+task.Extension), sourceID)
}
