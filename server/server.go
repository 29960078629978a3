// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the HTTP surface of a switchboard agent: the
// JSON-RPC dispatcher, the task manager driving an agent collaborator, task
// persistence, and signed push notification delivery.
package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/switchboard-ai/switchboard"
)

// maxBodySize bounds an RPC request body.
const maxBodySize = 4 << 20

// Server is the HTTP front of one agent. It serves the discovery card, the
// JSON-RPC endpoint, the JWKS used to verify push notifications, and the
// operational endpoints.
type Server struct {
	card        *switchboard.AgentCard
	taskManager TaskManager
	auth        *PushNotificationAuth
	router      chi.Router
	logger      *slog.Logger
	metrics     *Metrics
	rpcPath     string
}

// Config holds configuration for the server.
type Config struct {
	// AgentCard is the discovery document. Its capabilities gate the
	// streaming and push notification methods.
	AgentCard *switchboard.AgentCard
	// TaskManager handles the task-level operations.
	TaskManager TaskManager
	// Auth publishes the JWKS for push notification verification.
	// Optional; required only when the card advertises push notifications.
	Auth *PushNotificationAuth
	// RPCPath is the JSON-RPC endpoint path. Defaults to "/".
	RPCPath string
	// Logger receives request-level logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Registry collects the server metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry
}

// NewServer creates a new [Server] with the provided configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AgentCard == nil {
		return nil, fmt.Errorf("agent card is required")
	}
	if err := cfg.AgentCard.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent card: %w", err)
	}
	if cfg.TaskManager == nil {
		return nil, fmt.Errorf("task manager is required")
	}
	if cfg.AgentCard.Capabilities.PushNotifications && cfg.Auth == nil {
		return nil, fmt.Errorf("push notifications advertised but no authenticator configured")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	rpcPath := cfg.RPCPath
	if rpcPath == "" {
		rpcPath = switchboard.DefaultRPCPath
	}

	s := &Server{
		card:        cfg.AgentCard,
		taskManager: cfg.TaskManager,
		auth:        cfg.Auth,
		logger:      logger,
		metrics:     NewMetrics(registry),
		rpcPath:     rpcPath,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get(switchboard.AgentCardPath, s.handleAgentCard)
	r.Get(switchboard.AgentCardAltPath, s.handleAgentCard)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if s.auth != nil {
		r.Get(switchboard.JWKSPath, s.handleJWKS)
	}
	r.Post(rpcPath, s.handleRPC)
	s.router = r

	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleAgentCard serves the discovery document. Both well-known paths
// return the same card.
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.card)
}

// handleJWKS serves the public keys used to verify push notification
// signatures.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.auth.JWKS())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": switchboard.Version})
}

// handleRPC decodes the request body into its typed variant and dispatches
// it. Every request gets a JSON-RPC response body; stream requests switch
// the connection to Server-Sent Events instead.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	id := jsontext.Value("null")
	// A panicking handler still owes the caller a JSON-RPC error body;
	// the router's Recoverer is only the backstop for this path.
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic in rpc handler", "panic", rec)
			s.respondError(w, id, switchboard.NewInternalError())
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.respondError(w, id, switchboard.NewParseError())
		return
	}
	defer r.Body.Close()

	req, id, rpcErr := switchboard.DecodeRequest(body)
	if rpcErr != nil {
		s.metrics.ObserveRequest("unknown", rpcErr.Code)
		s.respondError(w, id, rpcErr)
		return
	}

	s.logger.Info("rpc request", "method", req.Method(), "request_id", middleware.GetReqID(r.Context()))

	switch req := req.(type) {
	case switchboard.SendTaskRequest:
		task, rpcErr := s.taskManager.OnSendTask(r.Context(), req.Params)
		s.respondResult(w, req.Method(), id, task, rpcErr)

	case switchboard.GetTaskRequest:
		task, rpcErr := s.taskManager.OnGetTask(r.Context(), req.Params)
		s.respondResult(w, req.Method(), id, task, rpcErr)

	case switchboard.CancelTaskRequest:
		task, rpcErr := s.taskManager.OnCancelTask(r.Context(), req.Params)
		s.respondResult(w, req.Method(), id, task, rpcErr)

	case switchboard.SetTaskPushNotificationRequest:
		if !s.card.Capabilities.PushNotifications {
			s.respondResult(w, req.Method(), id, nil, switchboard.NewPushNotificationNotSupportedError())
			return
		}
		config, rpcErr := s.taskManager.OnSetTaskPushNotification(r.Context(), req.Params)
		s.respondResult(w, req.Method(), id, config, rpcErr)

	case switchboard.GetTaskPushNotificationRequest:
		if !s.card.Capabilities.PushNotifications {
			s.respondResult(w, req.Method(), id, nil, switchboard.NewPushNotificationNotSupportedError())
			return
		}
		config, rpcErr := s.taskManager.OnGetTaskPushNotification(r.Context(), req.Params)
		s.respondResult(w, req.Method(), id, config, rpcErr)

	case switchboard.SendTaskStreamingRequest:
		if !s.card.Capabilities.Streaming {
			s.respondResult(w, req.Method(), id, nil, switchboard.NewUnsupportedOperationError())
			return
		}
		events, rpcErr := s.taskManager.OnSendTaskSubscribe(r.Context(), req.Params)
		s.respondStream(w, r, req.Method(), id, events, rpcErr)

	case switchboard.TaskResubscriptionRequest:
		if !s.card.Capabilities.Streaming {
			s.respondResult(w, req.Method(), id, nil, switchboard.NewUnsupportedOperationError())
			return
		}
		events, rpcErr := s.taskManager.OnResubscribe(r.Context(), req.Params)
		s.respondStream(w, r, req.Method(), id, events, rpcErr)

	case switchboard.MessageSendRequest:
		task, rpcErr := s.taskManager.OnMessageSend(r.Context(), req.Params)
		s.respondResult(w, req.Method(), id, task, rpcErr)

	default:
		s.respondError(w, id, switchboard.NewMethodNotFoundError())
	}
}

// respondResult writes either the result or the error as a JSON-RPC
// response.
func (s *Server) respondResult(w http.ResponseWriter, method string, id jsontext.Value, result any, rpcErr *switchboard.Error) {
	if rpcErr != nil {
		s.metrics.ObserveRequest(method, rpcErr.Code)
		s.respondError(w, id, rpcErr)
		return
	}
	s.metrics.ObserveRequest(method, 0)
	s.writeJSON(w, http.StatusOK, switchboard.NewResponse(id, result))
}

// respondStream switches the response to Server-Sent Events and drains the
// event channel into it.
func (s *Server) respondStream(w http.ResponseWriter, r *http.Request, method string, id jsontext.Value, events <-chan switchboard.TaskEvent, rpcErr *switchboard.Error) {
	if rpcErr != nil {
		s.metrics.ObserveRequest(method, rpcErr.Code)
		s.respondError(w, id, rpcErr)
		return
	}
	stream := newStreamWriter(w, id, s.logger, s.metrics)
	if stream == nil {
		s.metrics.ObserveRequest(method, switchboard.CodeInternalError)
		s.respondError(w, id, switchboard.NewInternalError().WithData("streaming unsupported by connection"))
		return
	}
	s.metrics.ObserveRequest(method, 0)
	stream.run(r, events)
}

func (s *Server) respondError(w http.ResponseWriter, id jsontext.Value, rpcErr *switchboard.Error) {
	s.logger.Warn("rpc error", "code", rpcErr.Code, "message", rpcErr.Message)
	s.writeJSON(w, http.StatusOK, switchboard.NewErrorResponse(id, rpcErr))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
