// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantMethod string
		wantCode   int
	}{
		{
			name:       "SendTask",
			body:       `{"jsonrpc":"2.0","id":1,"method":"tasks/send","params":{"id":"task-1","message":{"role":"user","parts":[{"kind":"text","text":"hi"}]}}}`,
			wantMethod: MethodTasksSend,
		},
		{
			name:       "GetTask",
			body:       `{"jsonrpc":"2.0","id":"abc","method":"tasks/get","params":{"id":"task-1"}}`,
			wantMethod: MethodTasksGet,
		},
		{
			name:       "CancelTask",
			body:       `{"jsonrpc":"2.0","id":2,"method":"tasks/cancel","params":{"id":"task-1"}}`,
			wantMethod: MethodTasksCancel,
		},
		{
			name:       "SetPushNotification",
			body:       `{"jsonrpc":"2.0","id":3,"method":"tasks/pushNotification/set","params":{"id":"task-1","pushNotificationConfig":{"url":"https://example.com/hook"}}}`,
			wantMethod: MethodTasksPushNotificationSet,
		},
		{
			name:       "SendSubscribe",
			body:       `{"jsonrpc":"2.0","id":4,"method":"tasks/sendSubscribe","params":{"id":"task-1","message":{"role":"user","parts":[{"kind":"text","text":"hi"}]}}}`,
			wantMethod: MethodTasksSendSubscribe,
		},
		{
			name:       "Resubscribe",
			body:       `{"jsonrpc":"2.0","id":5,"method":"tasks/resubscribe","params":{"id":"task-1"}}`,
			wantMethod: MethodTasksResubscribe,
		},
		{
			name:       "MessageSend",
			body:       `{"jsonrpc":"2.0","id":6,"method":"message/send","params":{"message":{"role":"user","parts":[{"kind":"text","text":"hi"}],"messageId":"m-1","taskId":"task-1"},"futureField":true}}`,
			wantMethod: MethodMessageSend,
		},
		{
			name:     "ParseError",
			body:     `this is not json`,
			wantCode: CodeParseError,
		},
		{
			name:     "MissingMethod",
			body:     `{"jsonrpc":"2.0","id":7,"params":{}}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "WrongVersion",
			body:     `{"jsonrpc":"1.0","id":7,"method":"tasks/get","params":{"id":"task-1"}}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "UnknownMethod",
			body:     `{"jsonrpc":"2.0","id":8,"method":"tasks/explode","params":{}}`,
			wantCode: CodeMethodNotFound,
		},
		{
			name:     "MissingParams",
			body:     `{"jsonrpc":"2.0","id":9,"method":"tasks/get"}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "EmptyTaskID",
			body:     `{"jsonrpc":"2.0","id":10,"method":"tasks/get","params":{"historyLength":2}}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "MessageSendMissingMessage",
			body:     `{"jsonrpc":"2.0","id":11,"method":"message/send","params":{"taskId":"task-1"}}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "MessageSendMalformedMessage",
			body:     `{"jsonrpc":"2.0","id":12,"method":"message/send","params":{"message":{"role":"user","parts":[]}}}`,
			wantCode: CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, id, rpcErr := DecodeRequest([]byte(tt.body))
			if tt.wantCode != 0 {
				if rpcErr == nil {
					t.Fatalf("DecodeRequest() error = nil, want code %d", tt.wantCode)
				}
				if rpcErr.Code != tt.wantCode {
					t.Errorf("DecodeRequest() code = %d, want %d", rpcErr.Code, tt.wantCode)
				}
				if len(id) == 0 {
					t.Error("DecodeRequest() returned empty id on error")
				}
				return
			}
			if rpcErr != nil {
				t.Fatalf("DecodeRequest() error = %v", rpcErr)
			}
			if req.Method() != tt.wantMethod {
				t.Errorf("Method() = %q, want %q", req.Method(), tt.wantMethod)
			}
		})
	}
}

func TestDecodeRequestIDEcho(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{
			name:   "NumberID",
			body:   `{"jsonrpc":"2.0","id":42,"method":"tasks/get","params":{"id":"task-1"}}`,
			wantID: `42`,
		},
		{
			name:   "StringID",
			body:   `{"jsonrpc":"2.0","id":"req-9","method":"tasks/get","params":{"id":"task-1"}}`,
			wantID: `"req-9"`,
		},
		{
			name:   "MissingID",
			body:   `{"jsonrpc":"2.0","method":"tasks/get","params":{"id":"task-1"}}`,
			wantID: `null`,
		},
		{
			name:   "ParseErrorID",
			body:   `{{{`,
			wantID: `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, id, _ := DecodeRequest([]byte(tt.body))
			if string(id) != tt.wantID {
				t.Errorf("id = %s, want %s", id, tt.wantID)
			}
		})
	}
}

func TestDecodeRequestMessageSendKeepsContext(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"role":"user","parts":[{"kind":"text","text":"hi"}],"messageId":"m-1","taskId":"t-1","contextId":"c-1"}}}`
	req, _, rpcErr := DecodeRequest([]byte(body))
	if rpcErr != nil {
		t.Fatalf("DecodeRequest() error = %v", rpcErr)
	}
	msgReq, ok := req.(MessageSendRequest)
	if !ok {
		t.Fatalf("DecodeRequest() = %T, want MessageSendRequest", req)
	}
	if msgReq.Params.MessageID != "m-1" || msgReq.Params.TaskID != "t-1" || msgReq.Params.ContextID != "c-1" {
		t.Errorf("params = %+v, want messageId m-1, taskId t-1, contextId c-1", msgReq.Params)
	}
	if got := msgReq.Params.Message.TextContent(); got != "hi" {
		t.Errorf("message text = %q, want %q", got, "hi")
	}
}
