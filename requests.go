// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// TaskSendParams are the parameters of tasks/send and tasks/sendSubscribe.
type TaskSendParams struct {
	ID                  string                  `json:"id"`
	SessionID           string                  `json:"sessionId,omitzero"`
	Message             Message                 `json:"message"`
	AcceptedOutputModes []string                `json:"acceptedOutputModes,omitzero"`
	PushNotification    *PushNotificationConfig `json:"pushNotification,omitzero"`
	HistoryLength       *int                    `json:"historyLength,omitzero"`
	Metadata            map[string]any          `json:"metadata,omitzero"`
}

// Validate ensures the TaskSendParams are valid.
func (p TaskSendParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if err := p.Message.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if p.PushNotification != nil {
		if err := p.PushNotification.Validate(); err != nil {
			return fmt.Errorf("invalid push notification config: %w", err)
		}
	}
	return nil
}

// TaskQueryParams are the parameters of tasks/get and tasks/resubscribe.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength *int           `json:"historyLength,omitzero"`
	Metadata      map[string]any `json:"metadata,omitzero"`
}

// Validate ensures the TaskQueryParams are valid.
func (p TaskQueryParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	return nil
}

// TaskIDParams are the parameters of tasks/cancel and
// tasks/pushNotification/get.
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// Validate ensures the TaskIDParams are valid.
func (p TaskIDParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	return nil
}

// MessageSendParams are the parameters of the unified message/send method.
// The shape is looser than the legacy typed requests and is extracted
// manually in [DecodeRequest] to stay tolerant of forward-compatible fields.
type MessageSendParams struct {
	Message   Message
	MessageID string
	TaskID    string
	ContextID string
}

// IncomingRequest is the closed set of requests the dispatcher handles, one
// variant per method. Handlers switch over the variants exhaustively instead
// of branching on method strings.
type IncomingRequest interface {
	// Method returns the JSON-RPC method name of this request kind.
	Method() string

	incomingRequest()
}

// SendTaskRequest is a tasks/send request.
type SendTaskRequest struct {
	Params TaskSendParams
}

// GetTaskRequest is a tasks/get request.
type GetTaskRequest struct {
	Params TaskQueryParams
}

// CancelTaskRequest is a tasks/cancel request.
type CancelTaskRequest struct {
	Params TaskIDParams
}

// SetTaskPushNotificationRequest is a tasks/pushNotification/set request.
type SetTaskPushNotificationRequest struct {
	Params TaskPushNotificationConfig
}

// GetTaskPushNotificationRequest is a tasks/pushNotification/get request.
type GetTaskPushNotificationRequest struct {
	Params TaskIDParams
}

// SendTaskStreamingRequest is a tasks/sendSubscribe request.
type SendTaskStreamingRequest struct {
	Params TaskSendParams
}

// TaskResubscriptionRequest is a tasks/resubscribe request.
type TaskResubscriptionRequest struct {
	Params TaskQueryParams
}

// MessageSendRequest is a message/send request.
type MessageSendRequest struct {
	Params MessageSendParams
}

// Method implements [IncomingRequest].
func (SendTaskRequest) Method() string { return MethodTasksSend }

// Method implements [IncomingRequest].
func (GetTaskRequest) Method() string { return MethodTasksGet }

// Method implements [IncomingRequest].
func (CancelTaskRequest) Method() string { return MethodTasksCancel }

// Method implements [IncomingRequest].
func (SetTaskPushNotificationRequest) Method() string { return MethodTasksPushNotificationSet }

// Method implements [IncomingRequest].
func (GetTaskPushNotificationRequest) Method() string { return MethodTasksPushNotificationGet }

// Method implements [IncomingRequest].
func (SendTaskStreamingRequest) Method() string { return MethodTasksSendSubscribe }

// Method implements [IncomingRequest].
func (TaskResubscriptionRequest) Method() string { return MethodTasksResubscribe }

// Method implements [IncomingRequest].
func (MessageSendRequest) Method() string { return MethodMessageSend }

func (SendTaskRequest) incomingRequest()                {}
func (GetTaskRequest) incomingRequest()                 {}
func (CancelTaskRequest) incomingRequest()              {}
func (SetTaskPushNotificationRequest) incomingRequest() {}
func (GetTaskPushNotificationRequest) incomingRequest() {}
func (SendTaskStreamingRequest) incomingRequest()       {}
func (TaskResubscriptionRequest) incomingRequest()      {}
func (MessageSendRequest) incomingRequest()             {}

// DecodeRequest parses a raw JSON-RPC request body into its typed variant.
// It always returns the raw request id, normalized to null when the id could
// not be read, so callers can correlate error responses.
func DecodeRequest(body []byte) (IncomingRequest, jsontext.Value, *Error) {
	if !jsontext.Value(body).IsValid() {
		return nil, nullID, NewParseError()
	}

	var envelope JSONRPCRequest
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nullID, NewInvalidRequestError().WithData(err.Error())
	}
	id := envelope.ID
	if len(id) == 0 {
		id = nullID
	}
	if envelope.JSONRPC != "2.0" {
		return nil, id, NewInvalidRequestError().WithData(`jsonrpc version must be "2.0"`)
	}
	if envelope.Method == "" {
		return nil, id, NewInvalidRequestError().WithData("missing method")
	}

	switch envelope.Method {
	case MethodTasksSend:
		params, rpcErr := decodeParams[TaskSendParams](envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return SendTaskRequest{Params: params}, id, nil

	case MethodTasksGet:
		params, rpcErr := decodeParams[TaskQueryParams](envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return GetTaskRequest{Params: params}, id, nil

	case MethodTasksCancel:
		params, rpcErr := decodeParams[TaskIDParams](envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return CancelTaskRequest{Params: params}, id, nil

	case MethodTasksPushNotificationSet:
		params, rpcErr := decodeParams[TaskPushNotificationConfig](envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return SetTaskPushNotificationRequest{Params: params}, id, nil

	case MethodTasksPushNotificationGet:
		params, rpcErr := decodeParams[TaskIDParams](envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return GetTaskPushNotificationRequest{Params: params}, id, nil

	case MethodTasksSendSubscribe:
		params, rpcErr := decodeParams[TaskSendParams](envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return SendTaskStreamingRequest{Params: params}, id, nil

	case MethodTasksResubscribe:
		params, rpcErr := decodeParams[TaskQueryParams](envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return TaskResubscriptionRequest{Params: params}, id, nil

	case MethodMessageSend:
		params, rpcErr := decodeMessageSendParams(envelope.Params)
		if rpcErr != nil {
			return nil, id, rpcErr
		}
		return MessageSendRequest{Params: params}, id, nil

	default:
		return nil, id, NewMethodNotFoundError()
	}
}

// validator is the contract shared by all typed params.
type validator interface {
	Validate() error
}

func decodeParams[T validator](raw jsontext.Value) (T, *Error) {
	var params T
	if len(raw) == 0 {
		return params, NewInvalidParamsError().WithData("missing params")
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, NewInvalidParamsError().WithData(err.Error())
	}
	if err := params.Validate(); err != nil {
		return params, NewInvalidParamsError().WithData(err.Error())
	}
	return params, nil
}

// decodeMessageSendParams extracts message/send params by hand. The unified
// message shape evolves faster than the legacy typed requests, so unknown
// sibling fields must survive and only the message itself is validated.
func decodeMessageSendParams(raw jsontext.Value) (MessageSendParams, *Error) {
	var params MessageSendParams
	if len(raw) == 0 {
		return params, NewInvalidParamsError().WithData("missing params")
	}

	var wire map[string]jsontext.Value
	if err := json.Unmarshal(raw, &wire); err != nil {
		return params, NewInvalidParamsError().WithData(err.Error())
	}
	rawMessage, ok := wire["message"]
	if !ok || len(rawMessage) == 0 {
		return params, NewInvalidParamsError().WithData("missing message")
	}

	var msgWire struct {
		Role      MessageRole    `json:"role"`
		Parts     []Part         `json:"parts"`
		MessageID string         `json:"messageId,omitzero"`
		TaskID    string         `json:"taskId,omitzero"`
		ContextID string         `json:"contextId,omitzero"`
		Metadata  map[string]any `json:"metadata,omitzero"`
	}
	if err := json.Unmarshal(rawMessage, &msgWire); err != nil {
		return params, NewInvalidRequestError().WithData(err.Error())
	}
	params.Message = Message{Role: msgWire.Role, Parts: msgWire.Parts, Metadata: msgWire.Metadata}
	if err := params.Message.Validate(); err != nil {
		return params, NewInvalidRequestError().WithData(err.Error())
	}
	params.MessageID = msgWire.MessageID
	params.TaskID = msgWire.TaskID
	params.ContextID = msgWire.ContextID
	return params, nil
}
