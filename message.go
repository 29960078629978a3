// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"fmt"
	"strings"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	// MessageRoleUser marks messages authored by the caller.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAgent marks messages authored by the agent.
	MessageRoleAgent MessageRole = "agent"
)

// Valid reports whether r is a known message role.
func (r MessageRole) Valid() bool {
	return r == MessageRoleUser || r == MessageRoleAgent
}

// Message is one conversational turn between a caller and an agent, carried
// as an ordered list of parts.
type Message struct {
	Role     MessageRole    `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// Validate ensures the Message is valid.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must contain at least one part")
	}
	for i, part := range m.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("message part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// TextContent concatenates the text of all text parts in order.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, part := range m.Parts {
		if part.Kind == PartKindText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// NewUserTextMessage builds a user message holding a single text part.
func NewUserTextMessage(text string) Message {
	return Message{Role: MessageRoleUser, Parts: []Part{TextPart(text)}}
}

// NewAgentTextMessage builds an agent message holding a single text part.
func NewAgentTextMessage(text string) Message {
	return Message{Role: MessageRoleAgent, Parts: []Part{TextPart(text)}}
}
