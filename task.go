// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"fmt"
	"time"
)

// TaskState represents the lifecycle state of a Task.
type TaskState string

const (
	// TaskStateSubmitted is the initial state at task creation.
	TaskStateSubmitted TaskState = "submitted"

	// TaskStateWorking indicates the agent is processing the task.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired indicates the agent needs more input from the
	// caller. The task can be resumed under the same id.
	TaskStateInputRequired TaskState = "input-required"

	// TaskStateCompleted indicates the task finished successfully.
	TaskStateCompleted TaskState = "completed"

	// TaskStateCanceled indicates the task was canceled by request.
	TaskStateCanceled TaskState = "canceled"

	// TaskStateFailed indicates the task failed.
	TaskStateFailed TaskState = "failed"
)

// taskStateTransitions encodes the permitted lifecycle edges. A state absent
// from the map permits no outgoing transition.
var taskStateTransitions = map[TaskState][]TaskState{
	TaskStateSubmitted:     {TaskStateWorking, TaskStateCanceled},
	TaskStateWorking:       {TaskStateWorking, TaskStateInputRequired, TaskStateCompleted, TaskStateCanceled, TaskStateFailed},
	TaskStateInputRequired: {TaskStateWorking, TaskStateCanceled},
}

// Valid reports whether s is a known task state.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the edge s -> next is permitted.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	for _, allowed := range taskStateTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// TaskStatus captures the current state of a task together with an optional
// agent-authored message, shown when input is required or on failure.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitzero"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Validate ensures the TaskStatus is valid.
func (s TaskStatus) Validate() error {
	if !s.State.Valid() {
		return fmt.Errorf("invalid task state: %q", s.State)
	}
	if s.Message != nil {
		if err := s.Message.Validate(); err != nil {
			return fmt.Errorf("invalid status message: %w", err)
		}
	}
	return nil
}

// Artifact is a structured output produced by a task, distinct from
// transient status messages.
type Artifact struct {
	Name        string         `json:"name,omitzero"`
	Description string         `json:"description,omitzero"`
	Parts       []Part         `json:"parts"`
	Index       int            `json:"index"`
	Append      bool           `json:"append,omitzero"`
	LastChunk   bool           `json:"lastChunk,omitzero"`
	Metadata    map[string]any `json:"metadata,omitzero"`
}

// Validate ensures the Artifact is valid.
func (a Artifact) Validate() error {
	if len(a.Parts) == 0 {
		return fmt.Errorf("artifact must contain at least one part")
	}
	for i, part := range a.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("artifact part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// Task is one unit of work tracked through the lifecycle state machine,
// identified by a caller-chosen id and scoped to a session.
type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitzero"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitzero"`
	Artifacts []Artifact     `json:"artifacts,omitzero"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

// Validate ensures the Task is valid.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if err := t.Status.Validate(); err != nil {
		return fmt.Errorf("invalid task status: %w", err)
	}
	for i, msg := range t.History {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("history message at index %d is invalid: %w", i, err)
		}
	}
	for i, artifact := range t.Artifacts {
		if err := artifact.Validate(); err != nil {
			return fmt.Errorf("artifact at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// TrimHistory returns a shallow copy of the task whose history is truncated
// to the most recent n messages. n <= 0 drops the history entirely, matching
// the wire behavior of the historyLength request parameter.
func (t Task) TrimHistory(n int) *Task {
	if n <= 0 {
		t.History = nil
		return &t
	}
	if len(t.History) > n {
		t.History = t.History[len(t.History)-n:]
	}
	return &t
}

// TaskEvent is implemented by events emitted while streaming task updates.
type TaskEvent interface {
	// EventTaskID returns the task id this event belongs to.
	EventTaskID() string

	// IsFinal reports whether this is the last event of the stream.
	IsFinal() bool
}

// TaskStatusUpdateEvent signals a change in a task's lifecycle state.
type TaskStatusUpdateEvent struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// EventTaskID implements [TaskEvent].
func (e TaskStatusUpdateEvent) EventTaskID() string { return e.ID }

// IsFinal implements [TaskEvent].
func (e TaskStatusUpdateEvent) IsFinal() bool { return e.Final }

// TaskArtifactUpdateEvent signals a new or updated artifact chunk.
type TaskArtifactUpdateEvent struct {
	ID       string         `json:"id"`
	Artifact Artifact       `json:"artifact"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// EventTaskID implements [TaskEvent].
func (e TaskArtifactUpdateEvent) EventTaskID() string { return e.ID }

// IsFinal implements [TaskEvent].
func (e TaskArtifactUpdateEvent) IsFinal() bool { return e.Artifact.LastChunk }
