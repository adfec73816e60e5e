////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package api assembles the client: storage session, trust oracle, scorer,
// admission gate, conversation manager, and the rendezvous backend. The
// package owns wiring and lifecycle; the behavior lives in the packages it
// assembles.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/backend"
	"gitlab.com/intumsg/client/conversations"
	"gitlab.com/intumsg/client/envelope"
	"gitlab.com/intumsg/client/gate"
	"gitlab.com/intumsg/client/oracle"
	"gitlab.com/intumsg/client/stoppable"
	"gitlab.com/intumsg/client/storage"
	"gitlab.com/intumsg/client/storage/policy"
	"gitlab.com/intumsg/client/trust"
)

const apiLogHeader = "API"

// Client is the assembled messenger client.
type Client struct {
	session   *storage.Session
	oracle    oracle.Oracle
	directory *identityCache
	scorer    *trust.Scorer
	gate      *gate.Engine
	manager   *conversations.Manager
	backend   *backend.Client

	mux     sync.Mutex
	syncing *stoppable.Single
	online  bool
}

// NewClient assembles a client over an opened session. A nil codec selects
// the tagged reference codec; a nil backend client leaves the client
// local-only and Login becomes a no-op offline session.
func NewClient(session *storage.Session, orc oracle.Oracle,
	bk *backend.Client, codec envelope.Codec) *Client {

	if codec == nil {
		codec = envelope.NewTagged()
	}

	directory := newIdentityCache(orc)
	scorer := trust.NewScorer(directory)
	engine := gate.NewEngine(directory, scorer, session.Policies())

	return &Client{
		session:   session,
		oracle:    orc,
		directory: directory,
		scorer:    scorer,
		gate:      engine,
		manager: conversations.NewManager(session.GetUser().Address,
			session.Conversations(), engine, codec),
		backend: bk,
	}
}

// Conversations returns the conversation manager.
func (c *Client) Conversations() *conversations.Manager {
	return c.manager
}

// Session returns the storage session.
func (c *Client) Session() *storage.Session {
	return c.session
}

// IsOnline reports whether the last login reached the backend.
func (c *Client) IsOnline() bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.online
}

// Lookup returns the cached identity snapshot, fetching on a miss.
func (c *Client) Lookup(ctx context.Context, id string) (
	*oracle.Identity, error) {
	return c.directory.Lookup(ctx, id)
}

// RefreshIdentity drops the cached snapshot for the identity.
func (c *Client) RefreshIdentity(id string) {
	c.directory.Refresh(id)
}

// Search queries the trust graph for identities matching the pattern.
func (c *Client) Search(ctx context.Context, pattern string) (
	[]oracle.Identity, error) {
	return c.oracle.Search(ctx, pattern)
}

// DiscoverIdentities returns the highest-magnitude person identities.
func (c *Client) DiscoverIdentities(ctx context.Context) (
	[]oracle.Identity, error) {
	return c.oracle.DiscoverIdentities(ctx)
}

// DiscoverCommunities returns the highest-magnitude community identities.
func (c *Client) DiscoverCommunities(ctx context.Context) (
	[]oracle.Identity, error) {
	return c.oracle.DiscoverCommunities(ctx)
}

// Attest vouches for the target identity, returning its new local score.
func (c *Client) Attest(targetID string) int {
	return c.scorer.Attest(targetID)
}

// Score returns the target's current trust score.
func (c *Client) Score(ctx context.Context, id string) int {
	return c.scorer.Score(ctx, id)
}

// Policy returns the local user's admission policy.
func (c *Client) Policy() policy.Policy {
	return c.session.Policies().Resolve(c.session.GetUser().Address)
}

// SetPolicy replaces the local user's admission policy.
func (c *Client) SetPolicy(p policy.Policy) error {
	return c.session.Policies().Set(c.session.GetUser().Address, p)
}

// StartSync launches background reconciliation against the backend at the
// given interval. Safe to call again after StopSync.
func (c *Client) StartSync(interval time.Duration) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.backend == nil {
		return errors.New("cannot sync without a backend")
	}
	if c.syncing != nil && !c.syncing.IsStopped() {
		return errors.Errorf("%s already running", c.syncing.Name())
	}

	r := conversations.NewReconciler(
		c.session.Conversations(), c.backend, interval)
	c.syncing = r.Start()
	jww.INFO.Printf("[%s] Started background reconciliation", apiLogHeader)
	return nil
}

// StopSync signals the reconciliation runner to stop and waits for it.
func (c *Client) StopSync() error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.syncing == nil || c.syncing.IsStopped() {
		return nil
	}
	if err := c.syncing.Close(); err != nil {
		return err
	}

	timeout := time.After(time.Second)
	for !c.syncing.IsStopped() {
		select {
		case <-timeout:
			return errors.Errorf(
				"%s did not stop in time", c.syncing.Name())
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}
