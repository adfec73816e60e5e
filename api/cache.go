////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

import (
	"context"
	"sync"

	"gitlab.com/intumsg/client/oracle"
)

// identityCache memoizes oracle snapshots. Entries are immutable once
// stored; Refresh drops an entry so the next lookup re-fetches. Admission
// checks hit the directory twice per check, so an uncached oracle would
// double every graph round trip.
type identityCache struct {
	source oracle.Oracle

	mux       sync.RWMutex
	snapshots map[string]*oracle.Identity
}

func newIdentityCache(source oracle.Oracle) *identityCache {
	return &identityCache{
		source:    source,
		snapshots: make(map[string]*oracle.Identity),
	}
}

// Lookup returns the cached snapshot for the identity, fetching on a miss.
// Callers receive a copy and may not mutate the cache through it.
func (ic *identityCache) Lookup(ctx context.Context, id string) (
	*oracle.Identity, error) {

	ic.mux.RLock()
	cached, ok := ic.snapshots[id]
	ic.mux.RUnlock()
	if ok {
		return copyIdentity(cached), nil
	}

	ident, err := ic.source.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	ic.mux.Lock()
	ic.snapshots[id] = ident
	ic.mux.Unlock()
	return copyIdentity(ident), nil
}

// Refresh drops the cached snapshot so the next lookup re-fetches.
func (ic *identityCache) Refresh(id string) {
	ic.mux.Lock()
	defer ic.mux.Unlock()
	delete(ic.snapshots, id)
}

func copyIdentity(ident *oracle.Identity) *oracle.Identity {
	cp := *ident
	cp.Claims = append([]string(nil), ident.Claims...)
	cp.Communities = append([]string(nil), ident.Communities...)
	return &cp
}
