package ipc

import (
	"taskqueue/internal/daemon"
	"taskqueue/internal/results"
)

// SocketName is the control socket filename inside the run directory.
const SocketName = "taskqueued.sock"

type PingRequest struct{}

type PingResponse struct {
	PID int `json:"pid"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Status daemon.Status `json:"status"`
}

type StopRequest struct{}

type StopResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}

type LoadBacklogRequest struct {
	SourceID string `json:"source_id,omitempty"`
}

type LoadBacklogResponse struct {
	Added map[string]int `json:"added"`
}

type SourceAddRequest struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Workspace string `json:"workspace,omitempty"`
	Enabled   bool   `json:"enabled"`
}

type SourceAddResponse struct {
	Added bool `json:"added"`
}

type SourceRemoveRequest struct {
	ID string `json:"id"`
}

type SourceRemoveResponse struct {
	Removed bool `json:"removed"`
}

type CancelRequest struct {
	SourceID string `json:"source_id,omitempty"`
	TaskID   string `json:"task_id"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type QueueListRequest struct {
	SourceID string `json:"source_id"`
}

type QueueListResponse struct {
	Current string   `json:"current,omitempty"`
	Queued  []string `json:"queued"`
}

type ResultRequest struct {
	SourceID string `json:"source_id"`
	TaskID   string `json:"task_id"`
}

type ResultResponse struct {
	Found  bool           `json:"found"`
	Result results.Result `json:"result"`
}

type HistoryRequest struct {
	SourceID string `json:"source_id"`
	Limit    int    `json:"limit,omitempty"`
}

type HistoryResponse struct {
	Results []results.Result `json:"results"`
	Summary results.Summary  `json:"summary"`
}

type LogTailRequest struct {
	Offset int64 `json:"offset"`
	Limit  int   `json:"limit,omitempty"`
	Follow bool  `json:"follow,omitempty"`
	WaitMS int   `json:"wait_ms,omitempty"`
}

type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
