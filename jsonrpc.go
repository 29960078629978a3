// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package switchboard

import (
	"fmt"

	"github.com/go-json-experiment/json/jsontext"
)

// RPC method names.
const (
	// MethodTasksSend is the method name for sending a task.
	MethodTasksSend = "tasks/send"
	// MethodTasksGet is the method name for getting a task.
	MethodTasksGet = "tasks/get"
	// MethodTasksCancel is the method name for canceling a task.
	MethodTasksCancel = "tasks/cancel"
	// MethodTasksPushNotificationSet is the method name for setting push notification configuration.
	MethodTasksPushNotificationSet = "tasks/pushNotification/set"
	// MethodTasksPushNotificationGet is the method name for getting push notification configuration.
	MethodTasksPushNotificationGet = "tasks/pushNotification/get"
	// MethodTasksSendSubscribe is the method name for sending a task and subscribing to updates.
	MethodTasksSendSubscribe = "tasks/sendSubscribe"
	// MethodTasksResubscribe is the method name for resubscribing to task updates.
	MethodTasksResubscribe = "tasks/resubscribe"
	// MethodMessageSend is the method name for the unified message entry point.
	MethodMessageSend = "message/send"
)

// JSON-RPC 2.0 error codes, including the protocol-specific range.
const (
	CodeParseError                   = -32700
	CodeInvalidRequest               = -32600
	CodeMethodNotFound               = -32601
	CodeInvalidParams                = -32602
	CodeInternalError                = -32603
	CodeTaskNotFound                 = -32001
	CodeTaskNotCancelable            = -32002
	CodePushNotificationNotSupported = -32003
	CodeUnsupportedOperation         = -32004
	CodeContentTypeNotSupported      = -32005
	CodePushNotificationVerifyFailed = -32006
)

// nullID is the id used when a request's id could not be read.
var nullID = jsontext.Value("null")

// JSONRPCMessage is the base structure for all JSON-RPC 2.0 messages. The id
// is kept in its raw encoding so that string, number, and null ids are all
// echoed back exactly as received.
type JSONRPCMessage struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id,omitzero"`
}

// NewJSONRPCMessage creates a new [JSONRPCMessage] with the given raw id.
func NewJSONRPCMessage(id jsontext.Value) JSONRPCMessage {
	if len(id) == 0 {
		id = nullID
	}
	return JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}
}

// JSONRPCRequest represents a JSON-RPC 2.0 request envelope before method
// dispatch.
type JSONRPCRequest struct {
	JSONRPCMessage

	// Method identifies the operation to perform.
	Method string `json:"method"`
	// Params contains parameters for the method.
	Params jsontext.Value `json:"params,omitzero"`
}

// Error represents a JSON-RPC 2.0 error object. It implements the error
// interface so handlers can return it directly.
type Error struct {
	// Code is the error code.
	Code int `json:"code"`
	// Message is a short description of the error.
	Message string `json:"message"`
	// Data contains optional additional error details.
	Data any `json:"data,omitzero"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// WithData returns a copy of e carrying the given detail data.
func (e *Error) WithData(data any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Data: data}
}

// NewParseError creates an error for unparseable JSON input.
func NewParseError() *Error {
	return &Error{Code: CodeParseError, Message: "Invalid JSON payload"}
}

// NewInvalidRequestError creates an error for a structurally invalid request.
func NewInvalidRequestError() *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Request payload validation error"}
}

// NewMethodNotFoundError creates an error for an unknown method name.
func NewMethodNotFoundError() *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found"}
}

// NewInvalidParamsError creates an error for invalid method parameters.
func NewInvalidParamsError() *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid parameters"}
}

// NewInternalError creates an error for a server-side failure.
func NewInternalError() *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error"}
}

// NewTaskNotFoundError creates an error for an unknown task id.
func NewTaskNotFoundError() *Error {
	return &Error{Code: CodeTaskNotFound, Message: "Task not found"}
}

// NewTaskNotCancelableError creates an error for a task in a terminal state.
func NewTaskNotCancelableError() *Error {
	return &Error{Code: CodeTaskNotCancelable, Message: "Task cannot be canceled"}
}

// NewPushNotificationNotSupportedError creates an error for push methods on
// an agent that does not advertise the capability.
func NewPushNotificationNotSupportedError() *Error {
	return &Error{Code: CodePushNotificationNotSupported, Message: "Push Notification is not supported"}
}

// NewUnsupportedOperationError creates an error for an operation the agent
// does not implement.
func NewUnsupportedOperationError() *Error {
	return &Error{Code: CodeUnsupportedOperation, Message: "This operation is not supported"}
}

// NewContentTypeNotSupportedError creates an error for incompatible content
// types between caller and agent.
func NewContentTypeNotSupportedError() *Error {
	return &Error{Code: CodeContentTypeNotSupported, Message: "Incompatible content types"}
}

// NewPushNotificationVerifyFailedError creates an error for a notification
// URL that failed ownership verification.
func NewPushNotificationVerifyFailedError() *Error {
	return &Error{Code: CodePushNotificationVerifyFailed, Message: "Push notification URL verification failed"}
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPCMessage

	// Result contains the successful result data.
	// Mutually exclusive with Error.
	Result any `json:"result,omitzero"`
	// Error contains an error object if the request failed.
	// Mutually exclusive with Result.
	Error *Error `json:"error,omitzero"`
}

// NewResponse creates a success response echoing the given raw id.
func NewResponse(id jsontext.Value, result any) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPCMessage: NewJSONRPCMessage(id),
		Result:         result,
	}
}

// NewErrorResponse creates an error response echoing the given raw id.
func NewErrorResponse(id jsontext.Value, err *Error) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPCMessage: NewJSONRPCMessage(id),
		Error:          err,
	}
}
