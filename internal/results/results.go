// Package results persists per-task execution outcomes as JSON documents
// under a source's results directory.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"taskqueue/internal/fileutil"
	"taskqueue/internal/task"
)

// Result captures the outcome of processing a single task.
type Result struct {
	TaskID      string    `json:"task_id"`
	SourceID    string    `json:"source_id"`
	Status      string    `json:"status"`
	Success     bool      `json:"success"`
	Attempts    int       `json:"attempts"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    float64   `json:"duration_seconds"`
	ExitCode    int       `json:"exit_code"`
	Error       string    `json:"error,omitempty"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	CostUSD     float64   `json:"cost_usd,omitempty"`
}

// Store reads and writes result documents in a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the result file path for a task id.
func (s *Store) Path(taskID string) string {
	return filepath.Join(s.dir, taskID+".json")
}

// Write persists the result atomically, replacing any earlier result for the
// same task.
func (s *Store) Write(res Result) error {
	if !task.ValidID(res.TaskID) {
		return fmt.Errorf("invalid task id %q", res.TaskID)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(s.Path(res.TaskID), res); err != nil {
		return fmt.Errorf("write result for %s: %w", res.TaskID, err)
	}
	return nil
}

// Read loads the result for taskID. os.IsNotExist on the returned error
// distinguishes a missing result from a corrupt one.
func (s *Store) Read(taskID string) (Result, error) {
	var res Result
	if err := fileutil.ReadJSON(s.Path(taskID), &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// List returns every stored result sorted by task id, which orders them by
// the timestamp embedded in the id.
func (s *Store) List() ([]Result, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan results in %s: %w", s.dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if !task.ValidID(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		res, err := s.Read(id)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Recent returns the newest limit results, newest first. limit <= 0 returns
// everything.
func (s *Store) Recent(limit int) ([]Result, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Summary is an aggregate view over stored results.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Summarize tallies stored results by status.
func (s *Store) Summarize() (Summary, error) {
	all, err := s.List()
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	sum.Total = len(all)
	for _, res := range all {
		switch task.Status(res.Status) {
		case task.StatusCompleted:
			sum.Completed++
		case task.StatusFailed:
			sum.Failed++
		case task.StatusCancelled:
			sum.Cancelled++
		}
	}
	return sum, nil
}

// MarshalIndentJSON renders a result the way it is stored on disk, for CLI
// display.
func MarshalIndentJSON(res Result) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
