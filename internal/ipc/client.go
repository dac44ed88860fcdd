package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the control socket at the given path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping confirms the daemon is reachable.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("TaskQueue.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("TaskQueue.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests a graceful daemon shutdown.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("TaskQueue.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoadBacklog rescans pending directories.
func (c *Client) LoadBacklog(sourceID string) (*LoadBacklogResponse, error) {
	var resp LoadBacklogResponse
	if err := c.client.Call("TaskQueue.LoadBacklog", LoadBacklogRequest{SourceID: sourceID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SourceAdd registers a new source with the daemon.
func (c *Client) SourceAdd(req SourceAddRequest) (*SourceAddResponse, error) {
	var resp SourceAddResponse
	if err := c.client.Call("TaskQueue.SourceAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SourceRemove unregisters a source.
func (c *Client) SourceRemove(id string) (*SourceRemoveResponse, error) {
	var resp SourceRemoveResponse
	if err := c.client.Call("TaskQueue.SourceRemove", SourceRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel aborts a queued or running task.
func (c *Client) Cancel(sourceID, taskID string) (*CancelResponse, error) {
	var resp CancelResponse
	req := CancelRequest{SourceID: sourceID, TaskID: taskID}
	if err := c.client.Call("TaskQueue.Cancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns the queue contents for a source.
func (c *Client) QueueList(sourceID string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("TaskQueue.QueueList", QueueListRequest{SourceID: sourceID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Result fetches the stored result for a task.
func (c *Client) Result(sourceID, taskID string) (*ResultResponse, error) {
	var resp ResultResponse
	req := ResultRequest{SourceID: sourceID, TaskID: taskID}
	if err := c.client.Call("TaskQueue.Result", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns recent results and a status summary for a source.
func (c *Client) History(sourceID string, limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	req := HistoryRequest{SourceID: sourceID, Limit: limit}
	if err := c.client.Call("TaskQueue.History", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("TaskQueue.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
