// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import "fmt"

// AgentProvider identifies the organization serving an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitzero"`
}

// AgentCapabilities declares the optional protocol features an agent
// supports. Callers must not use a feature the card does not advertise.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming,omitzero"`
	PushNotifications      bool `json:"pushNotifications,omitzero"`
	StateTransitionHistory bool `json:"stateTransitionHistory,omitzero"`
}

// AgentSkill describes one capability of an agent for discovery purposes.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitzero"`
	Tags        []string `json:"tags,omitzero"`
	Examples    []string `json:"examples,omitzero"`
	InputModes  []string `json:"inputModes,omitzero"`
	OutputModes []string `json:"outputModes,omitzero"`
}

// AgentCard is the discovery document an agent serves from its well-known
// paths. It tells callers where the RPC endpoint lives and what the agent
// can do.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitzero"`
	URL                string            `json:"url"`
	Provider           *AgentProvider    `json:"provider,omitzero"`
	Version            string            `json:"version"`
	DocumentationURL   string            `json:"documentationUrl,omitzero"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitzero"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitzero"`
	Skills             []AgentSkill      `json:"skills"`
}

// Validate ensures the AgentCard is valid.
func (c AgentCard) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent card name cannot be empty")
	}
	if c.URL == "" {
		return fmt.Errorf("agent card URL cannot be empty")
	}
	if c.Version == "" {
		return fmt.Errorf("agent card version cannot be empty")
	}
	for i, skill := range c.Skills {
		if skill.ID == "" {
			return fmt.Errorf("skill at index %d has no id", i)
		}
		if skill.Name == "" {
			return fmt.Errorf("skill at index %d has no name", i)
		}
	}
	return nil
}

// AuthenticationInfo carries the authentication schemes accepted by a
// push-notification receiver.
type AuthenticationInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitzero"`
}

// PushNotificationConfig tells an agent where to deliver task updates when
// the caller is not holding a connection open.
type PushNotificationConfig struct {
	URL            string              `json:"url"`
	Token          string              `json:"token,omitzero"`
	Authentication *AuthenticationInfo `json:"authentication,omitzero"`
}

// Validate ensures the PushNotificationConfig is valid.
func (c PushNotificationConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("push notification URL cannot be empty")
	}
	return nil
}

// TaskPushNotificationConfig binds a push-notification config to a task id,
// as exchanged by the tasks/pushNotification/set and get methods.
type TaskPushNotificationConfig struct {
	ID                     string                 `json:"id"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// Validate ensures the TaskPushNotificationConfig is valid.
func (c TaskPushNotificationConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	return c.PushNotificationConfig.Validate()
}
