// Package a2a is a small Agent2Agent JSON-RPC client for delegating stage
// generation to a remote agent.
//
// A stage request goes out as one message with a text part (the prompt)
// and a data part (the stage parameters). The agent answers with a task
// whose artifacts carry the generated text, or a URL for images.
package a2a

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a remote task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateRejected      TaskState = "rejected"
)

// IsTerminal reports whether no further transitions will happen. An agent
// asking for input is terminal for sitegen, which never answers.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking:
		return false
	}
	return true
}

// Task is the agent's record of one stage request.
type Task struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// TaskStatus is the current state and when it was entered.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Text returns the first text part across all artifacts, or "".
func (t *Task) Text() string {
	return t.first(func(p Part) string { return p.Text })
}

// URL returns the first URL part across all artifacts, or "".
func (t *Task) URL() string {
	return t.first(func(p Part) string { return p.URL })
}

func (t *Task) first(field func(Part) string) string {
	for _, a := range t.Artifacts {
		for _, p := range a.Parts {
			if v := field(p); v != "" {
				return v
			}
		}
	}
	return ""
}

// Message is what sitegen sends: always from the user role.
type Message struct {
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
}

// NewMessage builds a user message with a fresh ID.
func NewMessage(parts ...Part) Message {
	return Message{MessageID: uuid.NewString(), Role: "user", Parts: parts}
}

// Part carries content within a message or artifact.
// Exactly one of Text, URL, or Data is set.
type Part struct {
	Text      string          `json:"text,omitempty"`
	URL       string          `json:"url,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
}

// TextPart creates a Part with text content.
func TextPart(text string) Part {
	return Part{Text: text, MediaType: "text/plain"}
}

// DataPart creates a Part with structured JSON data.
func DataPart(v any) (Part, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Part{}, err
	}
	return Part{Data: data, MediaType: "application/json"}, nil
}

// Artifact is an output produced by the agent for a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}
