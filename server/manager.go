// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/switchboard-ai/switchboard"
)

// defaultInvokeTimeout bounds a single agent invocation.
const defaultInvokeTimeout = 5 * time.Minute

// TaskManager handles the task-level operations behind the RPC dispatcher.
// Implementations translate agent activity into task lifecycle updates.
type TaskManager interface {
	OnSendTask(ctx context.Context, params switchboard.TaskSendParams) (*switchboard.Task, *switchboard.Error)
	OnSendTaskSubscribe(ctx context.Context, params switchboard.TaskSendParams) (<-chan switchboard.TaskEvent, *switchboard.Error)
	OnGetTask(ctx context.Context, params switchboard.TaskQueryParams) (*switchboard.Task, *switchboard.Error)
	OnCancelTask(ctx context.Context, params switchboard.TaskIDParams) (*switchboard.Task, *switchboard.Error)
	OnSetTaskPushNotification(ctx context.Context, params switchboard.TaskPushNotificationConfig) (*switchboard.TaskPushNotificationConfig, *switchboard.Error)
	OnGetTaskPushNotification(ctx context.Context, params switchboard.TaskIDParams) (*switchboard.TaskPushNotificationConfig, *switchboard.Error)
	OnResubscribe(ctx context.Context, params switchboard.TaskQueryParams) (<-chan switchboard.TaskEvent, *switchboard.Error)
	OnMessageSend(ctx context.Context, params switchboard.MessageSendParams) (*switchboard.Task, *switchboard.Error)
}

// AgentTaskManager is a TaskManager that runs tasks against a single
// [Invoker], persisting through a [TaskStore] and delivering push
// notifications when a task reaches a reportable state.
type AgentTaskManager struct {
	store   TaskStore
	invoker Invoker
	auth    *PushNotificationAuth
	logger  *slog.Logger
	metrics *Metrics

	invokeTimeout time.Duration

	// cancels tracks the cancel funcs of in-flight invocations so that
	// tasks/cancel can interrupt them.
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

var _ TaskManager = (*AgentTaskManager)(nil)

// AgentTaskManagerConfig holds configuration for AgentTaskManager.
type AgentTaskManagerConfig struct {
	Store   TaskStore
	Invoker Invoker
	// Auth signs and verifies push notifications. Nil disables push
	// delivery entirely.
	Auth          *PushNotificationAuth
	Logger        *slog.Logger
	Metrics       *Metrics
	InvokeTimeout time.Duration
}

// NewAgentTaskManager creates a new [AgentTaskManager].
func NewAgentTaskManager(config AgentTaskManagerConfig) (*AgentTaskManager, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("task store cannot be nil")
	}
	if config.Invoker == nil {
		return nil, fmt.Errorf("invoker cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.InvokeTimeout
	if timeout == 0 {
		timeout = defaultInvokeTimeout
	}
	return &AgentTaskManager{
		store:         config.Store,
		invoker:       config.Invoker,
		auth:          config.Auth,
		logger:        logger,
		metrics:       config.Metrics,
		invokeTimeout: timeout,
		cancels:       make(map[string]context.CancelFunc),
	}, nil
}

// userQuery extracts the text content of the request message. Only text
// parts are understood; any other kind present rejects the request rather
// than silently dropping part of it.
func userQuery(message switchboard.Message) (string, *switchboard.Error) {
	for _, part := range message.Parts {
		if part.Kind != switchboard.PartKindText {
			return "", switchboard.NewInvalidParamsError().
				WithData(fmt.Sprintf("only text parts are supported, got %q", part.Kind))
		}
	}
	return message.TextContent(), nil
}

// compatibleContentTypes reports whether the caller accepts at least one of
// the agent's output modes. An empty accepted list means no preference.
func compatibleContentTypes(accepted, supported []string) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		for _, s := range supported {
			if a == s {
				return true
			}
		}
	}
	return false
}

func (m *AgentTaskManager) trackInvocation(taskID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[taskID] = cancel
}

func (m *AgentTaskManager) releaseInvocation(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[taskID]; ok {
		cancel()
		delete(m.cancels, taskID)
	}
}

func (m *AgentTaskManager) cancelInvocation(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[taskID]; ok {
		cancel()
	}
}

// prepareTask validates content types, registers any push config, and
// commits the task into the working state. It returns the extracted user
// query and the effective session id.
func (m *AgentTaskManager) prepareTask(ctx context.Context, params switchboard.TaskSendParams) (query, sessionID string, rpcErr *switchboard.Error) {
	if !compatibleContentTypes(params.AcceptedOutputModes, m.invoker.SupportedContentTypes()) {
		m.logger.Warn("unsupported output modes requested",
			"task", params.ID, "accepted", params.AcceptedOutputModes)
		return "", "", switchboard.NewContentTypeNotSupportedError()
	}
	query, rpcErr = userQuery(params.Message)
	if rpcErr != nil {
		return "", "", rpcErr
	}

	if params.PushNotification != nil {
		if m.auth == nil {
			return "", "", switchboard.NewPushNotificationNotSupportedError()
		}
		if !m.auth.VerifyURL(ctx, params.PushNotification.URL) {
			return "", "", switchboard.NewPushNotificationVerifyFailedError()
		}
	}

	sessionID = params.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := m.store.Upsert(ctx, params.ID, sessionID, params.Message); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return "", "", switchboard.NewInvalidParamsError().WithData(err.Error())
		}
		m.logger.Error("failed to upsert task", "task", params.ID, "error", err)
		return "", "", switchboard.NewInternalError()
	}
	if params.PushNotification != nil {
		if err := m.store.SetPushConfig(ctx, params.ID, *params.PushNotification); err != nil {
			m.logger.Error("failed to store push config", "task", params.ID, "error", err)
			return "", "", switchboard.NewInternalError()
		}
	}
	if _, err := m.store.Update(ctx, params.ID, switchboard.TaskStatus{State: switchboard.TaskStateWorking}, nil); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return "", "", switchboard.NewInvalidParamsError().WithData(err.Error())
		}
		m.logger.Error("failed to mark task working", "task", params.ID, "error", err)
		return "", "", switchboard.NewInternalError()
	}
	return query, sessionID, nil
}

// registerPushConfig verifies ownership of the notification URL and stores
// the config for an existing task.
func (m *AgentTaskManager) registerPushConfig(ctx context.Context, taskID string, config switchboard.PushNotificationConfig) *switchboard.Error {
	if m.auth == nil {
		return switchboard.NewPushNotificationNotSupportedError()
	}
	if !m.auth.VerifyURL(ctx, config.URL) {
		return switchboard.NewPushNotificationVerifyFailedError()
	}
	err := m.store.SetPushConfig(ctx, taskID, config)
	if errors.Is(err, ErrTaskNotFound) {
		return switchboard.NewTaskNotFoundError()
	}
	if err != nil {
		m.logger.Error("failed to store push config", "task", taskID, "error", err)
		return switchboard.NewInternalError()
	}
	return nil
}

// notify delivers the task's current state to its push config, if any.
func (m *AgentTaskManager) notify(task *switchboard.Task) {
	if m.auth == nil || task == nil {
		return
	}
	config, err := m.store.GetPushConfig(context.Background(), task.ID)
	if err != nil {
		if !errors.Is(err, ErrPushConfigNotFound) && !errors.Is(err, ErrTaskNotFound) {
			m.logger.Error("failed to load push config", "task", task.ID, "error", err)
		}
		return
	}
	m.auth.SendNotification(context.Background(), config.URL, task)
	if m.metrics != nil {
		m.metrics.PushNotifications.WithLabelValues("sent").Inc()
	}
}

// resultStatus maps one agent result to the task status it implies.
func resultStatus(result InvokeResult) switchboard.TaskStatus {
	message := switchboard.NewAgentTextMessage(result.Content)
	switch {
	case result.RequireUserInput:
		return switchboard.TaskStatus{State: switchboard.TaskStateInputRequired, Message: &message}
	case result.IsTaskComplete:
		return switchboard.TaskStatus{State: switchboard.TaskStateCompleted}
	default:
		return switchboard.TaskStatus{State: switchboard.TaskStateWorking, Message: &message}
	}
}

// commitResult writes the terminal outcome of an invocation, attaching the
// content as an artifact when the task completed.
func (m *AgentTaskManager) commitResult(ctx context.Context, taskID string, result InvokeResult) (*switchboard.Task, *switchboard.Error) {
	status := resultStatus(result)
	var artifacts []switchboard.Artifact
	if result.IsTaskComplete {
		artifacts = []switchboard.Artifact{{
			Parts: []switchboard.Part{switchboard.TextPart(result.Content)},
		}}
	}
	task, err := m.store.Update(ctx, taskID, status, artifacts)
	if err != nil {
		m.logger.Error("failed to commit task result", "task", taskID, "error", err)
		return nil, switchboard.NewInternalError()
	}
	go m.notify(task)
	return task, nil
}

// commitFailure moves the task to failed with the error text as the status
// message. The caller still returns a sanitized internal error.
func (m *AgentTaskManager) commitFailure(taskID string, cause error) {
	message := switchboard.NewAgentTextMessage(cause.Error())
	status := switchboard.TaskStatus{State: switchboard.TaskStateFailed, Message: &message}
	task, err := m.store.Update(context.Background(), taskID, status, nil)
	if err != nil {
		m.logger.Error("failed to record task failure", "task", taskID, "error", err)
		return
	}
	go m.notify(task)
}

// OnSendTask implements [TaskManager].
func (m *AgentTaskManager) OnSendTask(ctx context.Context, params switchboard.TaskSendParams) (*switchboard.Task, *switchboard.Error) {
	query, sessionID, rpcErr := m.prepareTask(ctx, params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	invokeCtx, cancel := context.WithTimeout(ctx, m.invokeTimeout)
	m.trackInvocation(params.ID, cancel)
	defer m.releaseInvocation(params.ID)

	result, err := m.invoker.Invoke(invokeCtx, query, sessionID)
	if err != nil {
		return m.handleInvokeError(params.ID, err)
	}

	task, rpcErr := m.commitResult(ctx, params.ID, *result)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return task.TrimHistory(historyLength(params.HistoryLength)), nil
}

// handleInvokeError resolves the stored state after a failed invocation. A
// cancellation observed while the task was moved to canceled by
// tasks/cancel is not a failure; everything else commits failed.
func (m *AgentTaskManager) handleInvokeError(taskID string, cause error) (*switchboard.Task, *switchboard.Error) {
	if errors.Is(cause, context.Canceled) {
		if task, err := m.store.Get(context.Background(), taskID); err == nil &&
			task.Status.State == switchboard.TaskStateCanceled {
			return task, nil
		}
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("agent invocation timed out")
	}
	m.logger.Error("agent invocation failed", "task", taskID, "error", cause)
	m.commitFailure(taskID, cause)
	return nil, switchboard.NewInternalError()
}

// OnSendTaskSubscribe implements [TaskManager]. Every result yielded by the
// agent becomes exactly one event on the returned channel; the last event
// is marked final.
func (m *AgentTaskManager) OnSendTaskSubscribe(ctx context.Context, params switchboard.TaskSendParams) (<-chan switchboard.TaskEvent, *switchboard.Error) {
	query, sessionID, rpcErr := m.prepareTask(ctx, params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	invokeCtx, cancel := context.WithTimeout(ctx, m.invokeTimeout)
	m.trackInvocation(params.ID, cancel)

	results, err := m.invoker.Stream(invokeCtx, query, sessionID)
	if err != nil {
		m.releaseInvocation(params.ID)
		task, rpcErr := m.handleInvokeError(params.ID, err)
		if rpcErr != nil {
			return nil, rpcErr
		}
		// The task was canceled before the stream started; replay the
		// canceled status as the only event.
		events := make(chan switchboard.TaskEvent, 1)
		events <- switchboard.TaskStatusUpdateEvent{ID: task.ID, Status: task.Status, Final: true}
		close(events)
		return events, nil
	}

	events := make(chan switchboard.TaskEvent)
	go func() {
		defer close(events)
		defer m.releaseInvocation(params.ID)
		for result := range results {
			event, done := m.processStreamResult(params.ID, result)
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
			if done {
				return
			}
		}
	}()
	return events, nil
}

// processStreamResult commits one streamed result and builds its event.
func (m *AgentTaskManager) processStreamResult(taskID string, result InvokeResult) (switchboard.TaskEvent, bool) {
	status := resultStatus(result)
	final := status.State != switchboard.TaskStateWorking
	var artifacts []switchboard.Artifact
	if result.IsTaskComplete {
		artifacts = []switchboard.Artifact{{
			Parts:     []switchboard.Part{switchboard.TextPart(result.Content)},
			LastChunk: true,
		}}
	}
	task, err := m.store.Update(context.Background(), taskID, status, artifacts)
	if err != nil {
		m.logger.Error("failed to commit streamed update", "task", taskID, "error", err)
		message := switchboard.NewAgentTextMessage("internal error")
		return switchboard.TaskStatusUpdateEvent{
			ID:     taskID,
			Status: switchboard.TaskStatus{State: switchboard.TaskStateFailed, Message: &message},
			Final:  true,
		}, true
	}
	if final {
		go m.notify(task)
	}
	return switchboard.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: status,
		Final:  final,
	}, final
}

// OnGetTask implements [TaskManager].
func (m *AgentTaskManager) OnGetTask(ctx context.Context, params switchboard.TaskQueryParams) (*switchboard.Task, *switchboard.Error) {
	task, err := m.store.Get(ctx, params.ID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, switchboard.NewTaskNotFoundError()
		}
		m.logger.Error("failed to load task", "task", params.ID, "error", err)
		return nil, switchboard.NewInternalError()
	}
	return task.TrimHistory(historyLength(params.HistoryLength)), nil
}

// OnCancelTask implements [TaskManager].
func (m *AgentTaskManager) OnCancelTask(ctx context.Context, params switchboard.TaskIDParams) (*switchboard.Task, *switchboard.Error) {
	task, err := m.store.Get(ctx, params.ID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, switchboard.NewTaskNotFoundError()
		}
		m.logger.Error("failed to load task", "task", params.ID, "error", err)
		return nil, switchboard.NewInternalError()
	}
	if task.Status.State.Terminal() {
		return nil, switchboard.NewTaskNotCancelableError()
	}

	task, err = m.store.Update(ctx, params.ID, switchboard.TaskStatus{State: switchboard.TaskStateCanceled}, nil)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, switchboard.NewTaskNotCancelableError()
		}
		m.logger.Error("failed to cancel task", "task", params.ID, "error", err)
		return nil, switchboard.NewInternalError()
	}

	// Interrupt the in-flight invocation after the store already shows
	// canceled, so the invoke path can tell cancellation from failure.
	m.cancelInvocation(params.ID)
	go m.notify(task)
	return task, nil
}

// OnSetTaskPushNotification implements [TaskManager].
func (m *AgentTaskManager) OnSetTaskPushNotification(ctx context.Context, params switchboard.TaskPushNotificationConfig) (*switchboard.TaskPushNotificationConfig, *switchboard.Error) {
	if rpcErr := m.registerPushConfig(ctx, params.ID, params.PushNotificationConfig); rpcErr != nil {
		return nil, rpcErr
	}
	return &params, nil
}

// OnGetTaskPushNotification implements [TaskManager].
func (m *AgentTaskManager) OnGetTaskPushNotification(ctx context.Context, params switchboard.TaskIDParams) (*switchboard.TaskPushNotificationConfig, *switchboard.Error) {
	if m.auth == nil {
		return nil, switchboard.NewPushNotificationNotSupportedError()
	}
	config, err := m.store.GetPushConfig(ctx, params.ID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, switchboard.NewTaskNotFoundError()
		}
		if errors.Is(err, ErrPushConfigNotFound) {
			return nil, switchboard.NewInvalidParamsError().
				WithData(fmt.Sprintf("no push notification config set for task %s", params.ID))
		}
		m.logger.Error("failed to load push config", "task", params.ID, "error", err)
		return nil, switchboard.NewInternalError()
	}
	return &switchboard.TaskPushNotificationConfig{ID: params.ID, PushNotificationConfig: *config}, nil
}

// OnResubscribe implements [TaskManager]. The stream replays the task's
// current status; a task in a terminal state yields one final event.
func (m *AgentTaskManager) OnResubscribe(ctx context.Context, params switchboard.TaskQueryParams) (<-chan switchboard.TaskEvent, *switchboard.Error) {
	task, err := m.store.Get(ctx, params.ID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, switchboard.NewTaskNotFoundError()
		}
		m.logger.Error("failed to load task", "task", params.ID, "error", err)
		return nil, switchboard.NewInternalError()
	}

	events := make(chan switchboard.TaskEvent, 1)
	events <- switchboard.TaskStatusUpdateEvent{
		ID:     task.ID,
		Status: task.Status,
		Final:  task.Status.State.Terminal(),
	}
	close(events)
	return events, nil
}

// OnMessageSend implements [TaskManager]. The unified message entry point
// maps onto the same flow as tasks/send, deriving task and session ids when
// the caller did not provide them.
func (m *AgentTaskManager) OnMessageSend(ctx context.Context, params switchboard.MessageSendParams) (*switchboard.Task, *switchboard.Error) {
	taskID := params.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	return m.OnSendTask(ctx, switchboard.TaskSendParams{
		ID:        taskID,
		SessionID: params.ContextID,
		Message:   params.Message,
	})
}

// historyLength dereferences the optional wire parameter. A request that
// does not set historyLength gets the full history.
func historyLength(n *int) int {
	if n == nil {
		return int(^uint(0) >> 1)
	}
	return *n
}
