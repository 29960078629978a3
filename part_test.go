// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestPartMarshaling(t *testing.T) {
	tests := []struct {
		name     string
		part     Part
		wantJSON string
	}{
		{
			name:     "TextPart",
			part:     TextPart("Hello World"),
			wantJSON: `{"kind":"text","text":"Hello World"}`,
		},
		{
			name: "TextPartWithMetadata",
			part: Part{
				Kind:     PartKindText,
				Text:     "tagged",
				Metadata: map[string]any{"lang": "en"},
			},
			wantJSON: `{"kind":"text","text":"tagged","metadata":{"lang":"en"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.part)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if diff := cmp.Diff(string(got), tt.wantJSON); diff != "" {
				t.Errorf("Marshal() mismatch (-got +want):\n%s", diff)
			}

			var gotPart Part
			if err := json.Unmarshal([]byte(tt.wantJSON), &gotPart); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if gotPart.Kind != tt.part.Kind || gotPart.Text != tt.part.Text {
				t.Errorf("Unmarshal() = kind %q text %q, want kind %q text %q",
					gotPart.Kind, gotPart.Text, tt.part.Kind, tt.part.Text)
			}
		})
	}
}

func TestPartUnknownKindRoundTrip(t *testing.T) {
	const wire = `{"kind":"file","file":{"name":"report.pdf","mimeType":"application/pdf"},"future":42}`

	var part Part
	if err := json.Unmarshal([]byte(wire), &part); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if part.Kind != "file" {
		t.Errorf("Kind = %q, want %q", part.Kind, "file")
	}

	got, err := json.Marshal(part)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if diff := cmp.Diff(string(got), wire); diff != "" {
		t.Errorf("round trip mismatch (-got +want):\n%s", diff)
	}
}

func TestPartTextKeepsSiblingFields(t *testing.T) {
	const wire = `{"kind":"text","mimeType":"text/plain","text":"hello"}`

	var part Part
	if err := json.Unmarshal([]byte(wire), &part); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	part.Text = "goodbye"

	got, err := json.Marshal(part)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(got, &fields); err != nil {
		t.Fatalf("re-reading output: %v", err)
	}
	want := map[string]any{"kind": "text", "mimeType": "text/plain", "text": "goodbye"}
	if diff := cmp.Diff(fields, want); diff != "" {
		t.Errorf("marshaled fields mismatch (-got +want):\n%s", diff)
	}
}

func TestPartUnmarshalMissingKind(t *testing.T) {
	var part Part
	if err := json.Unmarshal([]byte(`{"text":"no kind"}`), &part); err == nil {
		t.Fatal("Unmarshal() expected error for missing kind, got nil")
	}
}

func TestMessageTextContent(t *testing.T) {
	msg := Message{
		Role: MessageRoleUser,
		Parts: []Part{
			TextPart("What is the exchange rate "),
			{Kind: "data", raw: []byte(`{"kind":"data","data":{}}`)},
			TextPart("for USD to JPY?"),
		},
	}
	want := "What is the exchange rate for USD to JPY?"
	if got := msg.TextContent(); got != want {
		t.Errorf("TextContent() = %q, want %q", got, want)
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{
			name:    "Valid",
			message: NewUserTextMessage("hello"),
		},
		{
			name:    "NoParts",
			message: Message{Role: MessageRoleAgent},
			wantErr: true,
		},
		{
			name:    "BadRole",
			message: Message{Role: "system", Parts: []Part{TextPart("x")}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
