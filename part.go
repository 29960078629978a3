// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// PartKindText is the only part kind this package interprets. Other kinds
// are preserved verbatim so that forward-compatible payloads round-trip.
const PartKindText = "text"

// Part is one element of a message body. The set of kinds is open on the
// wire: a part whose kind is unknown to this package keeps its raw encoding
// and is re-emitted unchanged.
type Part struct {
	Kind     string
	Text     string
	Metadata map[string]any

	// raw holds the original encoding of the part, used to round-trip
	// kinds this package does not interpret.
	raw jsontext.Value
}

// TextPart builds a part of kind "text".
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// Validate ensures the Part is valid.
func (p Part) Validate() error {
	if p.Kind == "" {
		return fmt.Errorf("part kind cannot be empty")
	}
	return nil
}

type textPartWire struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// MarshalJSON implements json.Marshaler. Unknown kinds are emitted from
// their preserved raw encoding. Text parts decoded from the wire patch the
// typed fields into that raw encoding so sibling fields this package does
// not model survive a round trip; text parts built in process are emitted
// from the typed fields alone.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.Kind != PartKindText {
		if len(p.raw) > 0 {
			return p.raw, nil
		}
		return nil, fmt.Errorf("cannot marshal part of kind %q without raw encoding", p.Kind)
	}
	if len(p.raw) == 0 {
		return json.Marshal(textPartWire{Kind: p.Kind, Text: p.Text, Metadata: p.Metadata})
	}

	var fields map[string]jsontext.Value
	if err := json.Unmarshal(p.raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to re-read part encoding: %w", err)
	}
	for name, value := range map[string]any{"kind": p.Kind, "text": p.Text} {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal part %s: %w", name, err)
		}
		fields[name] = encoded
	}
	if p.Metadata == nil {
		delete(fields, "metadata")
	} else {
		encoded, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal part metadata: %w", err)
		}
		fields["metadata"] = encoded
	}
	return json.Marshal(fields, json.Deterministic(true))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Part) UnmarshalJSON(data []byte) error {
	var wire textPartWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to unmarshal part: %w", err)
	}
	if wire.Kind == "" {
		return fmt.Errorf("part kind cannot be empty")
	}
	p.Kind = wire.Kind
	p.Text = wire.Text
	p.Metadata = wire.Metadata
	p.raw = append(jsontext.Value(nil), data...)
	return nil
}
