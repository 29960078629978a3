// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import "context"

// InvokeResult is one unit of agent output. While streaming, intermediate
// results carry partial content; the final result sets IsTaskComplete or
// RequireUserInput.
type InvokeResult struct {
	// IsTaskComplete reports whether the agent finished the task.
	IsTaskComplete bool

	// RequireUserInput reports whether the agent is blocked on more input
	// from the caller.
	RequireUserInput bool

	// Content is the text produced by the agent for this result.
	Content string
}

// Invoker is the agent collaborator behind a task manager. Implementations
// wrap whatever actually produces answers, typically a language model
// pipeline; the task layer treats it as opaque.
type Invoker interface {
	// Invoke runs the agent to completion for the given query.
	Invoke(ctx context.Context, query, sessionID string) (*InvokeResult, error)

	// Stream runs the agent and yields incremental results on the returned
	// channel. The channel is closed when the agent is done; the last
	// result before close is the terminal one.
	Stream(ctx context.Context, query, sessionID string) (<-chan InvokeResult, error)

	// SupportedContentTypes lists the output modes the agent can produce.
	SupportedContentTypes() []string
}
