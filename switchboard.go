// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package switchboard implements the protocol core of a multi-agent message
// routing layer: the task and message data model, the JSON-RPC 2.0 envelope
// and request variants, and the fixed error-code table shared by the server
// and any client.
package switchboard

// Version is the current version of the switchboard protocol.
const Version = "0.1.0"

// Well-known paths served by every agent host.
const (
	// AgentCardPath is the standard path for retrieving an agent's public AgentCard.
	AgentCardPath = "/.well-known/agent.json"

	// AgentCardAltPath is an alternative AgentCard path kept for clients that
	// expect the newer naming convention. Both paths serve the identical card.
	AgentCardAltPath = "/.well-known/agent-card.json"

	// JWKSPath serves the public keys used to verify push-notification signatures.
	JWKSPath = "/.well-known/jwks.json"

	// DefaultRPCPath is the default path for the JSON-RPC endpoint.
	DefaultRPCPath = "/"
)
