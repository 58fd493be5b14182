package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// A2A methods used by sitegen.
const (
	MethodSendMessage = "message/send"
	MethodGetTask     = "tasks/get"
	MethodCancelTask  = "tasks/cancel"
)

// Agent is the part of a remote agent's surface needed to run one stage
// request to completion.
type Agent interface {
	// Send submits msg as a blocking request and returns the task.
	Send(ctx context.Context, msg Message) (*Task, error)
	// Task fetches the current state of a task.
	Task(ctx context.Context, id string) (*Task, error)
	// Cancel asks the agent to stop a task.
	Cancel(ctx context.Context, id string) error
}

var _ Agent = (*Client)(nil)

// Client is an Agent reached over HTTP JSON-RPC at one endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	seq      atomic.Int64
}

// NewClient creates a Client for endpoint. A nil hc uses a client with a
// 30s timeout.
func NewClient(endpoint string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, http: hc}
}

// Endpoint returns the agent URL.
func (c *Client) Endpoint() string { return c.endpoint }

type sendParams struct {
	Message       Message `json:"message"`
	Configuration struct {
		Blocking bool `json:"blocking"`
	} `json:"configuration"`
}

type idParams struct {
	ID string `json:"id"`
}

// Send calls message/send with blocking set.
func (c *Client) Send(ctx context.Context, msg Message) (*Task, error) {
	p := sendParams{Message: msg}
	p.Configuration.Blocking = true
	return call[Task](ctx, c, MethodSendMessage, p)
}

// Task calls tasks/get.
func (c *Client) Task(ctx context.Context, id string) (*Task, error) {
	return call[Task](ctx, c, MethodGetTask, idParams{ID: id})
}

// Cancel calls tasks/cancel. The returned task is not needed.
func (c *Client) Cancel(ctx context.Context, id string) error {
	_, err := call[Task](ctx, c, MethodCancelTask, idParams{ID: id})
	return err
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	} `json:"error,omitempty"`
}

// call performs one JSON-RPC 2.0 call over HTTP POST and decodes the result
// into a new T.
func call[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.seq.Add(1), Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: marshal: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: read: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &CallError{Method: method, HTTPStatus: resp.StatusCode, Message: truncate(string(raw), 512)}
	}

	var rpc rpcResponse
	if err := json.Unmarshal(raw, &rpc); err != nil {
		return nil, fmt.Errorf("a2a: %s: decode: %w", method, err)
	}
	if rpc.Error != nil {
		return nil, &CallError{Method: method, Code: rpc.Error.Code, Message: rpc.Error.Message, Data: rpc.Error.Data}
	}
	if len(rpc.Result) == 0 {
		return nil, &CallError{Method: method, Message: "empty result"}
	}

	out := new(T)
	if err := json.Unmarshal(rpc.Result, out); err != nil {
		return nil, fmt.Errorf("a2a: %s: decode result: %w", method, err)
	}
	return out, nil
}

// CallError is a failed call: a non-200 response (HTTPStatus set) or a
// JSON-RPC error object (Code set).
type CallError struct {
	Method     string
	HTTPStatus int
	Code       int
	Message    string
	Data       json.RawMessage
}

func (e *CallError) Error() string {
	switch {
	case e.HTTPStatus != 0:
		return fmt.Sprintf("a2a: %s: HTTP %d: %s", e.Method, e.HTTPStatus, e.Message)
	case len(e.Data) > 0:
		return fmt.Sprintf("a2a: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, e.Data)
	case e.Code != 0:
		return fmt.Sprintf("a2a: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
	default:
		return fmt.Sprintf("a2a: %s: %s", e.Method, e.Message)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
