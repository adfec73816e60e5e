////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package backend speaks to the rendezvous server. The server is a
// collaborator, never an authority: it holds nonce login, the shared
// conversation list, and message history, and every call here is expected to
// fail without taking the client down with it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/conversations"
)

const backendLogHeader = "BACKEND"

var (
	// ErrUnauthorized reports a rejected or missing bearer token. It is
	// surfaced to the caller; no retry will fix a bad credential.
	ErrUnauthorized = errors.New("backend rejected credentials")

	// ErrNotFound reports a backend resource that does not exist.
	ErrNotFound = errors.New("backend resource not found")
)

// Signer produces a wallet signature over a login message. Production
// signers wrap a wallet; tests use fakes.
type Signer interface {
	Sign(message string) (signature string, err error)
}

// StaticSigner returns the same signature for every message. It exists for
// the CLI and for servers that skip signature recovery in development mode.
type StaticSigner string

func (s StaticSigner) Sign(string) (string, error) { return string(s), nil }

// Client is an authenticated HTTP client for the rendezvous server. The
// zero value is not usable; construct with NewClient. Safe for concurrent
// use once Authorize has run.
type Client struct {
	baseURL string
	hc      *http.Client

	mux   sync.RWMutex
	token string
}

// NewClient returns a client for the server at baseURL. Deadlines come from
// the caller's context.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
	}
}

// Authorize installs the bearer token used by subsequent calls.
func (c *Client) Authorize(token string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.token = token
}

// Token returns the installed bearer token, or empty when offline.
func (c *Client) Token() string {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.token
}

// Nonce fetches the single-use login nonce for the address.
func (c *Client) Nonce(ctx context.Context, address string) (string, error) {
	var resp struct {
		Nonce string `json:"nonce"`
	}
	q := url.Values{"address": {address}}
	err := c.do(ctx, http.MethodGet, "/api/auth/nonce?"+q.Encode(), nil, &resp)
	if err != nil {
		return "", errors.WithMessage(err, "failed to fetch login nonce")
	}
	return resp.Nonce, nil
}

// Verify submits the signed login message and returns the session token on
// success. The token is not installed; callers decide via Authorize.
func (c *Client) Verify(ctx context.Context, address, signature,
	message string) (string, error) {
	body := map[string]string{
		"address":   address,
		"signature": signature,
		"message":   message,
	}
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/verify", body, &resp)
	if err != nil {
		return "", errors.WithMessage(err, "login verification failed")
	}
	return resp.Token, nil
}

// Conversations returns the server's conversation list for the
// authenticated user. Satisfies the reconciler's remote source.
func (c *Client) Conversations(ctx context.Context) (
	[]conversations.Conversation, error) {
	var wire []wireConversation
	err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &wire)
	if err != nil {
		return nil, err
	}

	list := make([]conversations.Conversation, 0, len(wire))
	for i := range wire {
		conv, err := wire[i].toConversation()
		if err != nil {
			jww.WARN.Printf("[%s] Discarding malformed remote "+
				"conversation %q: %+v", backendLogHeader, wire[i].ID, err)
			continue
		}
		list = append(list, conv)
	}
	return list, nil
}

// CreateConversation registers the direct conversation with the recipient
// on the server, returning the existing record if one is already there.
func (c *Client) CreateConversation(ctx context.Context, recipientID string) (
	*conversations.Conversation, error) {
	body := map[string]string{"recipientId": recipientID}
	var wire wireConversation
	err := c.do(ctx, http.MethodPost, "/api/conversations", body, &wire)
	if err != nil {
		return nil, err
	}
	conv, err := wire.toConversation()
	if err != nil {
		return nil, errors.WithMessage(err,
			"malformed conversation in create response")
	}
	return &conv, nil
}

// Messages returns the server-side message history for a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) (
	[]conversations.Message, error) {
	var wire []wireMessage
	path := "/api/conversations/" + url.PathEscape(conversationID) +
		"/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}

	msgs := make([]conversations.Message, len(wire))
	for i := range wire {
		msgs[i] = wire[i].toMessage()
	}
	return msgs, nil
}

// do runs one JSON request/response cycle against the server.
func (c *Client) do(ctx context.Context, method, path string,
	body, out interface{}) error {

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build backend request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "backend request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("backend returned %s for %s %s",
			resp.Status, method, path)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read backend response")
	}
	if out == nil {
		return nil
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "failed to parse backend response %q",
			string(raw))
	}
	return nil
}
