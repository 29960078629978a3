// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/switchboard-ai/switchboard"
)

// Store errors.
var (
	// ErrTaskNotFound is returned when the task id is unknown to the store.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a status update would violate
	// the task lifecycle.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrPushConfigNotFound is returned when no push notification config is
	// set for the task.
	ErrPushConfigNotFound = errors.New("push notification config not found")
)

// TaskStore persists tasks and their push notification configs. Updates to a
// single task are atomic: a status plus artifact commit either lands fully
// or leaves the prior state intact.
type TaskStore interface {
	// Get returns a copy of the task with the given id.
	Get(ctx context.Context, id string) (*switchboard.Task, error)

	// Upsert creates the task if absent, or appends the given history
	// message to the existing task. A task in a terminal state refuses
	// the append with ErrInvalidTransition, leaving the stored task
	// untouched. It returns a copy of the stored task.
	Upsert(ctx context.Context, id, sessionID string, message switchboard.Message) (*switchboard.Task, error)

	// Update commits a status change and optional artifacts in one step,
	// enforcing the lifecycle transitions. It returns a copy of the
	// updated task.
	Update(ctx context.Context, id string, status switchboard.TaskStatus, artifacts []switchboard.Artifact) (*switchboard.Task, error)

	// SetPushConfig stores the push notification config for a task.
	SetPushConfig(ctx context.Context, id string, config switchboard.PushNotificationConfig) error

	// GetPushConfig returns the push notification config for a task.
	GetPushConfig(ctx context.Context, id string) (*switchboard.PushNotificationConfig, error)
}

// taskEntry guards one task with its own mutex so that concurrent updates to
// different tasks never contend.
type taskEntry struct {
	mu         sync.Mutex
	task       switchboard.Task
	pushConfig *switchboard.PushNotificationConfig
}

// InMemoryTaskStore is a TaskStore backed by process memory.
type InMemoryTaskStore struct {
	mu      sync.RWMutex
	entries map[string]*taskEntry
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates a new [InMemoryTaskStore].
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		entries: make(map[string]*taskEntry),
	}
}

func (s *InMemoryTaskStore) entry(id string) (*taskEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Get implements [TaskStore].
func (s *InMemoryTaskStore) Get(ctx context.Context, id string) (*switchboard.Task, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyTask(&e.task), nil
}

// Upsert implements [TaskStore].
func (s *InMemoryTaskStore) Upsert(ctx context.Context, id, sessionID string, message switchboard.Message) (*switchboard.Task, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &taskEntry{
			task: switchboard.Task{
				ID:        id,
				SessionID: sessionID,
				Status: switchboard.TaskStatus{
					State:     switchboard.TaskStateSubmitted,
					Timestamp: time.Now().UTC(),
				},
			},
		}
		s.entries[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task.Status.State.Terminal() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, id, e.task.Status.State)
	}
	e.task.History = append(e.task.History, message)
	return copyTask(&e.task), nil
}

// Update implements [TaskStore].
func (s *InMemoryTaskStore) Update(ctx context.Context, id string, status switchboard.TaskStatus, artifacts []switchboard.Artifact) (*switchboard.Task, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrTaskNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.task.Status.State.CanTransitionTo(status.State) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.task.Status.State, status.State)
	}
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now().UTC()
	}
	if status.Message != nil {
		e.task.History = append(e.task.History, *status.Message)
	}
	e.task.Status = status
	e.task.Artifacts = append(e.task.Artifacts, artifacts...)
	return copyTask(&e.task), nil
}

// SetPushConfig implements [TaskStore].
func (s *InMemoryTaskStore) SetPushConfig(ctx context.Context, id string, config switchboard.PushNotificationConfig) error {
	e, ok := s.entry(id)
	if !ok {
		return ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pushConfig = &config
	return nil
}

// GetPushConfig implements [TaskStore].
func (s *InMemoryTaskStore) GetPushConfig(ctx context.Context, id string) (*switchboard.PushNotificationConfig, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pushConfig == nil {
		return nil, ErrPushConfigNotFound
	}
	config := *e.pushConfig
	return &config, nil
}

// copyTask returns a deep enough copy that callers cannot mutate stored
// history or artifacts through the returned slices.
func copyTask(t *switchboard.Task) *switchboard.Task {
	out := *t
	out.History = append([]switchboard.Message(nil), t.History...)
	out.Artifacts = append([]switchboard.Artifact(nil), t.Artifacts...)
	return &out
}
