////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/stoppable"
)

const syncLogHeader = "SYNC"

const (
	// defaultSyncInterval is the reconciliation period when the caller
	// does not choose one.
	defaultSyncInterval = 30 * time.Second

	// fetchDeadline bounds every remote fetch. The foreground must never
	// wait on remote availability longer than this.
	fetchDeadline = 2 * time.Second
)

// RemoteSource is the backend collaborator the reconciler pulls
// authoritative conversation state from.
type RemoteSource interface {
	Conversations(ctx context.Context) ([]Conversation, error)
}

// Reconciler periodically overlays remote conversation state onto the local
// store. The remote list is the source of truth for participants, status,
// and last message; unread counts and message logs already present locally
// are preserved unless the remote record is strictly newer, so a slow remote
// read can never reset a local unread badge.
type Reconciler struct {
	store    *Store
	remote   RemoteSource
	interval time.Duration
}

// NewReconciler returns a reconciler pulling from the given remote at the
// given interval. A non-positive interval selects the default.
func NewReconciler(store *Store, remote RemoteSource,
	interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Reconciler{
		store:    store,
		remote:   remote,
		interval: interval,
	}
}

// Start launches the reconciliation runner and returns its stoppable.
func (r *Reconciler) Start() *stoppable.Single {
	stop := stoppable.NewSingle("conversationSync")
	go r.runner(stop)
	return stop
}

// runner is the long-running thread that drives periodic reconciliation.
func (r *Reconciler) runner(stop *stoppable.Single) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			r.ReconcileOnce()
		case <-stop.Quit():
			stop.ToStopped()
			jww.DEBUG.Printf("[%s] Stopping reconciliation runner",
				syncLogHeader)
			return
		}
	}
}

// ReconcileOnce performs one fetch-and-merge pass. The fetch runs under the
// bounded deadline with no conversation lock held; the merge is computed
// from the returned snapshot and applied under the per-conversation locks.
// Any fetch failure leaves the local copy untouched: stale data is the
// designed worst case, a blocked or failed foreground is not.
func (r *Reconciler) ReconcileOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchDeadline)
	defer cancel()

	remotes, err := r.remote.Conversations(ctx)
	if err != nil {
		jww.WARN.Printf("[%s] Remote fetch failed, continuing on local "+
			"state: %+v", syncLogHeader, err)
		return
	}

	for i := range remotes {
		r.mergeOne(&remotes[i])
	}
}

// mergeOne applies one remote conversation record. Matching prefers the
// conversation id and falls back to the unordered participant pair, so a
// conversation created locally while offline merges with its remote
// counterpart instead of duplicating the pair; the local id is retained in
// that case.
func (r *Reconciler) mergeOne(remote *Conversation) {
	if remote.ID == "" || len(remote.Participants) == 0 {
		jww.ERROR.Printf("[%s] Discarding malformed remote record: %+v",
			syncLogHeader, remote)
		return
	}

	// A conversation creation in flight for the same pair holds the pair
	// lock, so adoption must serialize on it: otherwise both sides Upsert
	// and the pair ends up with two live conversations.

	if r.adopt(remote) {
		return
	}

	local, ok := r.store.Get(remote.ID)
	if !ok {
		local, ok = r.store.GetByPair(remote.Participants...)
	}
	if !ok {
		return
	}

	r.store.Lock(local.ID)
	defer r.store.Unlock(local.ID)

	// Re-read under the lock; a lifecycle operation may have raced the
	// fetch.
	local, ok = r.store.Get(local.ID)
	if !ok {
		return
	}

	newer := remote.LastMessage != nil &&
		(local.LastMessage == nil ||
			remote.LastMessage.Timestamp.After(local.LastMessage.Timestamp))

	merged := local.copyOf()
	merged.Participants = append([]string(nil), remote.Participants...)
	merged.IsGroup = remote.IsGroup
	merged.Status = remote.Status
	merged.CollateralLocked = remote.CollateralLocked
	if remote.LastMessage != nil {
		msg := *remote.LastMessage
		merged.LastMessage = &msg
	}
	if newer {
		merged.UnreadCount = remote.UnreadCount
	}

	if err := r.store.Upsert(merged); err != nil {
		jww.WARN.Printf("[%s] Failed to merge conversation %q: %+v",
			syncLogHeader, local.ID, err)
		return
	}

	if newer {
		if err := r.store.AppendIfMissing(
			merged.ID, *remote.LastMessage); err != nil {
			jww.WARN.Printf("[%s] Failed to append remote message to "+
				"%q: %+v", syncLogHeader, merged.ID, err)
		}
	}
}

// adopt stores a remote conversation the local side has never seen, seeding
// its log with the last message. Adoption serializes on the pair lock and
// re-checks both indexes under it, so a conversation created locally while
// the fetch was in flight is merged instead of duplicated. Returns false
// when the conversation already exists and the merge path should run.
func (r *Reconciler) adopt(remote *Conversation) bool {
	if r.known(remote) {
		return false
	}

	pair := PairKey(remote.Participants...)
	r.store.Lock(pair)
	defer r.store.Unlock(pair)

	// Re-check under the pair lock; a local start may have won the race.
	if r.known(remote) {
		return false
	}

	adopted := remote.copyOf()
	if err := r.store.Upsert(adopted); err != nil {
		jww.WARN.Printf("[%s] Failed to adopt remote conversation "+
			"%q: %+v", syncLogHeader, remote.ID, err)
		return true
	}
	if adopted.LastMessage != nil {
		if err := r.store.AppendIfMissing(
			adopted.ID, *adopted.LastMessage); err != nil {
			jww.WARN.Printf("[%s] Failed to seed log for %q: %+v",
				syncLogHeader, adopted.ID, err)
		}
	}
	return true
}

// known reports whether the remote record matches an existing conversation
// by id or by participant pair.
func (r *Reconciler) known(remote *Conversation) bool {
	if _, ok := r.store.Get(remote.ID); ok {
		return true
	}
	_, ok := r.store.GetByPair(remote.Participants...)
	return ok
}
