// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestTaskStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from TaskState
		to   TaskState
		want bool
	}{
		{name: "SubmittedToWorking", from: TaskStateSubmitted, to: TaskStateWorking, want: true},
		{name: "SubmittedToCanceled", from: TaskStateSubmitted, to: TaskStateCanceled, want: true},
		{name: "SubmittedToCompleted", from: TaskStateSubmitted, to: TaskStateCompleted, want: false},
		{name: "WorkingToWorking", from: TaskStateWorking, to: TaskStateWorking, want: true},
		{name: "WorkingToInputRequired", from: TaskStateWorking, to: TaskStateInputRequired, want: true},
		{name: "WorkingToCompleted", from: TaskStateWorking, to: TaskStateCompleted, want: true},
		{name: "WorkingToFailed", from: TaskStateWorking, to: TaskStateFailed, want: true},
		{name: "WorkingToCanceled", from: TaskStateWorking, to: TaskStateCanceled, want: true},
		{name: "WorkingToSubmitted", from: TaskStateWorking, to: TaskStateSubmitted, want: false},
		{name: "InputRequiredToWorking", from: TaskStateInputRequired, to: TaskStateWorking, want: true},
		{name: "InputRequiredToCanceled", from: TaskStateInputRequired, to: TaskStateCanceled, want: true},
		{name: "InputRequiredToCompleted", from: TaskStateInputRequired, to: TaskStateCompleted, want: false},
		{name: "CompletedToWorking", from: TaskStateCompleted, to: TaskStateWorking, want: false},
		{name: "CanceledToWorking", from: TaskStateCanceled, to: TaskStateWorking, want: false},
		{name: "FailedToWorking", from: TaskStateFailed, to: TaskStateWorking, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTaskStateTerminal(t *testing.T) {
	terminal := []TaskState{TaskStateCompleted, TaskStateCanceled, TaskStateFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("Terminal(%q) = false, want true", s)
		}
	}
	active := []TaskState{TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("Terminal(%q) = true, want false", s)
		}
	}
}

func TestTaskTrimHistory(t *testing.T) {
	task := Task{
		ID:     "task-1",
		Status: TaskStatus{State: TaskStateCompleted},
		History: []Message{
			NewUserTextMessage("first"),
			NewAgentTextMessage("second"),
			NewUserTextMessage("third"),
		},
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "All", n: 10, want: []string{"first", "second", "third"}},
		{name: "LastTwo", n: 2, want: []string{"second", "third"}},
		{name: "Zero", n: 0, want: nil},
		{name: "Negative", n: -1, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := task.TrimHistory(tt.n)
			var gotTexts []string
			for _, m := range got.History {
				gotTexts = append(gotTexts, m.TextContent())
			}
			if diff := cmp.Diff(gotTexts, tt.want); diff != "" {
				t.Errorf("TrimHistory(%d) mismatch (-got +want):\n%s", tt.n, diff)
			}
		})
	}

	// The original task keeps its full history.
	if len(task.History) != 3 {
		t.Errorf("source task history length = %d, want 3", len(task.History))
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	message := NewAgentTextMessage("need more detail")
	task := Task{
		ID:        "task-1",
		SessionID: "session-1",
		Status: TaskStatus{
			State:     TaskStateInputRequired,
			Message:   &message,
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		History: []Message{
			NewUserTextMessage("question"),
			message,
		},
		Artifacts: []Artifact{{
			Name:  "answer",
			Parts: []Part{TextPart("partial")},
			Index: 0,
		}},
		Metadata: map[string]any{"source": "test"},
	}

	first, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded Task
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	second, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("Marshal() after round trip error = %v", err)
	}
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Errorf("round trip not stable (-first +second):\n%s", diff)
	}
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{
			name: "Valid",
			task: Task{ID: "task-1", Status: TaskStatus{State: TaskStateSubmitted}},
		},
		{
			name:    "EmptyID",
			task:    Task{Status: TaskStatus{State: TaskStateWorking}},
			wantErr: true,
		},
		{
			name:    "BadState",
			task:    Task{ID: "task-1", Status: TaskStatus{State: "paused"}},
			wantErr: true,
		},
		{
			name: "BadArtifact",
			task: Task{
				ID:        "task-1",
				Status:    TaskStatus{State: TaskStateCompleted},
				Artifacts: []Artifact{{}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
