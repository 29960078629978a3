// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/switchboard-ai/switchboard"
)

// bodyDigestClaim names the JWT claim carrying the SHA-256 of the
// notification body, so receivers can bind the signature to the payload.
const bodyDigestClaim = "request_body_sha256"

const verifyTimeout = 5 * time.Second

// PushNotificationAuth signs outgoing task notifications with a generated
// RSA key and verifies that notification URLs are owned by whoever
// registered them. The public key is published as a JWKS for receivers.
type PushNotificationAuth struct {
	key    jwk.Key
	public jwk.Set
	client *http.Client
	logger *slog.Logger
}

// NewPushNotificationAuth creates a new [PushNotificationAuth] with a fresh
// RSA signing key.
func NewPushNotificationAuth(logger *slog.Logger) (*PushNotificationAuth, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	key, err := jwk.Import(rsaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to import signing key: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, uuid.NewString()); err != nil {
		return nil, fmt.Errorf("failed to set key id: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		return nil, fmt.Errorf("failed to set key algorithm: %w", err)
	}

	publicKey, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(publicKey); err != nil {
		return nil, fmt.Errorf("failed to build JWKS: %w", err)
	}

	return &PushNotificationAuth{
		key:    key,
		public: set,
		client: &http.Client{Timeout: verifyTimeout},
		logger: logger,
	}, nil
}

// JWKS returns the public key set for publication at the well-known path.
func (a *PushNotificationAuth) JWKS() jwk.Set {
	return a.public
}

// VerifyURL checks that the notification receiver owns the given URL by
// asking it to echo a random validation token. It reports false on any
// failure and never returns an error; an unreachable receiver is treated
// the same as a hostile one.
func (a *PushNotificationAuth) VerifyURL(ctx context.Context, rawURL string) bool {
	token := uuid.NewString()
	challenge := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		q := u.Query()
		q.Set("validationToken", token)
		u.RawQuery = q.Encode()
		challenge = u.String()
	} else {
		a.logger.Warn("push notification URL does not parse", "url", rawURL, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, challenge, nil)
	if err != nil {
		a.logger.Warn("failed to build verification request", "url", rawURL, "error", err)
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("push notification URL verification failed", "url", rawURL, "error", err)
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		a.logger.Warn("failed to read verification response", "url", rawURL, "error", err)
		return false
	}
	verified := resp.StatusCode == http.StatusOK && string(bytes.TrimSpace(body)) == token
	a.logger.Info("push notification URL verified", "url", rawURL, "verified", verified)
	return verified
}

// SendNotification delivers the task's current state to the configured URL,
// signed with a short-lived JWT bound to the body digest. Delivery is best
// effort: failures are logged and swallowed.
func (a *PushNotificationAuth) SendNotification(ctx context.Context, rawURL string, task *switchboard.Task) {
	body, err := json.Marshal(task)
	if err != nil {
		a.logger.Error("failed to encode push notification", "task", task.ID, "error", err)
		return
	}

	token, err := a.signPayload(body)
	if err != nil {
		a.logger.Error("failed to sign push notification", "task", task.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		a.logger.Error("failed to build push notification request", "task", task.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("push notification delivery failed", "task", task.ID, "url", rawURL, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	a.logger.Info("push notification sent", "task", task.ID, "url", rawURL, "status", resp.StatusCode)
}

func (a *PushNotificationAuth) signPayload(body []byte) (string, error) {
	digest := sha256.Sum256(body)
	tok, err := jwt.NewBuilder().
		IssuedAt(time.Now()).
		Claim(bodyDigestClaim, hex.EncodeToString(digest[:])).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256(), a.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}
