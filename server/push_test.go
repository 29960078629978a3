// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/switchboard-ai/switchboard"
)

func newTestAuth(t *testing.T) *PushNotificationAuth {
	t.Helper()
	auth, err := NewPushNotificationAuth(slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewPushNotificationAuth() error = %v", err)
	}
	return auth
}

func TestVerifyURL(t *testing.T) {
	auth := newTestAuth(t)

	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.URL.Query().Get("validationToken"))
	}))
	defer echo.Close()
	if !auth.VerifyURL(context.Background(), echo.URL) {
		t.Error("VerifyURL() = false for an echoing receiver, want true")
	}

	stubborn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not-the-token")
	}))
	defer stubborn.Close()
	if auth.VerifyURL(context.Background(), stubborn.URL) {
		t.Error("VerifyURL() = true for a wrong echo, want false")
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	if auth.VerifyURL(context.Background(), broken.URL) {
		t.Error("VerifyURL() = true for a failing receiver, want false")
	}

	if auth.VerifyURL(context.Background(), "http://127.0.0.1:1/unreachable") {
		t.Error("VerifyURL() = true for an unreachable receiver, want false")
	}
}

func TestSendNotificationSignature(t *testing.T) {
	auth := newTestAuth(t)

	type delivery struct {
		body  []byte
		token string
	}
	received := make(chan delivery, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- delivery{
			body:  body,
			token: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		}
	}))
	defer receiver.Close()

	task := &switchboard.Task{
		ID:     "task-1",
		Status: switchboard.TaskStatus{State: switchboard.TaskStateCompleted},
	}
	auth.SendNotification(context.Background(), receiver.URL, task)

	var got delivery
	select {
	case got = <-received:
	default:
		t.Fatal("notification was not delivered")
	}

	var decoded switchboard.Task
	if err := json.Unmarshal(got.body, &decoded); err != nil {
		t.Fatalf("notification body does not decode: %v", err)
	}
	if decoded.ID != task.ID || decoded.Status.State != task.Status.State {
		t.Errorf("notification task = %+v, want id %q state %q", decoded, task.ID, task.Status.State)
	}

	// The bearer token verifies against the published JWKS and binds the
	// body through its digest claim.
	tok, err := jwt.Parse([]byte(got.token), jwt.WithKeySet(auth.JWKS()))
	if err != nil {
		t.Fatalf("token does not verify against JWKS: %v", err)
	}
	var digest string
	if err := tok.Get(bodyDigestClaim, &digest); err != nil {
		t.Fatalf("token missing %s claim: %v", bodyDigestClaim, err)
	}
	sum := sha256.Sum256(got.body)
	if digest != hex.EncodeToString(sum[:]) {
		t.Errorf("digest claim = %q, want the body hash", digest)
	}
	if _, ok := tok.IssuedAt(); !ok {
		t.Error("token missing iat claim")
	}
}

func TestSendNotificationSwallowsFailure(t *testing.T) {
	auth := newTestAuth(t)
	task := &switchboard.Task{
		ID:     "task-1",
		Status: switchboard.TaskStatus{State: switchboard.TaskStateCompleted},
	}
	// Must not panic or error out on an unreachable receiver.
	auth.SendNotification(context.Background(), "http://127.0.0.1:1/unreachable", task)
}

func TestJWKSHasOneSigningKey(t *testing.T) {
	auth := newTestAuth(t)
	set := auth.JWKS()
	if set.Len() != 1 {
		t.Fatalf("JWKS size = %d, want 1", set.Len())
	}
	key, ok := set.Key(0)
	if !ok {
		t.Fatal("JWKS has no key at index 0")
	}
	if _, ok := key.KeyID(); !ok {
		t.Error("published key has no kid")
	}
}
