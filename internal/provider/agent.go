package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dusk-indust/sitegen/internal/a2a"
)

var _ Client = (*AgentClient)(nil)

const (
	defaultPollInterval = 500 * time.Millisecond
	cancelGrace         = 2 * time.Second
)

// AgentClient delegates a request to a remote A2A agent. The agent receives
// the prompt as a text part and the request parameters as a data part; it
// answers with a text artifact, or a URL artifact for images.
type AgentClient struct {
	agent        a2a.Agent
	pollInterval time.Duration
}

// NewAgentClient creates an agent-backed provider client.
func NewAgentClient(agent a2a.Agent) *AgentClient {
	return &AgentClient{agent: agent, pollInterval: defaultPollInterval}
}

type agentParams struct {
	Stage       string  `json:"stage"`
	Kind        Kind    `json:"kind"`
	JSON        bool    `json:"json,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Style       string  `json:"style,omitempty"`
}

// Invoke sends the request as a blocking message/send and polls tasks/get
// until the task is terminal. A cancelled context cancels the remote task.
func (c *AgentClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	params := agentParams{
		Stage:       string(req.Stage),
		Kind:        req.Kind,
		JSON:        req.JSON,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}
	if req.Kind == KindImage {
		if req.Image == nil {
			return nil, errors.New("agent: image request has no image parameters")
		}
		prompt = req.Image.Prompt
		params.Width, params.Height, params.Style = req.Image.Width, req.Image.Height, req.Image.Style
	}

	data, err := a2a.DataPart(params)
	if err != nil {
		return nil, fmt.Errorf("agent: encode params: %w", err)
	}
	task, err := c.agent.Send(ctx, a2a.NewMessage(a2a.TextPart(prompt), data))
	if err != nil {
		return nil, err
	}
	task, err = c.wait(ctx, task)
	if err != nil {
		return nil, err
	}
	if task.Status.State != a2a.TaskStateCompleted {
		return nil, fmt.Errorf("agent: task %s ended %s", task.ID, task.Status.State)
	}

	if req.Kind == KindImage {
		if u := task.URL(); u != "" {
			return &Response{URL: u}, nil
		}
		return nil, fmt.Errorf("agent: task %s has no image artifact", task.ID)
	}
	text := task.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("agent: task %s has no text artifact", task.ID)
	}
	return &Response{Text: text}, nil
}

func (c *AgentClient) wait(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for !task.Status.State.IsTerminal() {
		select {
		case <-ctx.Done():
			c.cancel(ctx, task.ID)
			return nil, ctx.Err()
		case <-ticker.C:
		}
		next, err := c.agent.Task(ctx, task.ID)
		if err != nil {
			if ctx.Err() != nil {
				c.cancel(ctx, task.ID)
			}
			return nil, err
		}
		task = next
	}
	return task, nil
}

// cancel is best effort; the caller has already given up on the task.
func (c *AgentClient) cancel(ctx context.Context, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelGrace)
	defer cancel()
	_ = c.agent.Cancel(cctx, id)
}
