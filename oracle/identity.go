////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package oracle queries the external reputation graph for identity
// profiles. Results are immutable snapshots; callers that need freshness
// re-fetch and callers that need stability cache.
package oracle

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrIdentityNotFound is returned when an identity reference cannot possibly
// resolve, such as an empty id. An id that is well formed but unknown to the
// graph resolves to an anonymous profile instead; unknown is not an error.
var ErrIdentityNotFound = errors.New("identity not found")

// Identity is a point-in-time snapshot of an identity in the reputation
// graph. The zero Magnitude is meaningful: it is what an identity with no
// staked signal looks like.
type Identity struct {
	// ID is the opaque identity identifier, typically a wallet address.
	ID string

	// DisplayName is the graph label, or a generated anonymous name.
	DisplayName string

	// AvatarRef is an opaque reference to avatar content.
	AvatarRef string

	// Magnitude is the raw staked-value signal trust scoring is derived
	// from. Monotonically non-negative.
	Magnitude uint64

	// Claims are reputation labels rendered from (predicate, object)
	// claim pairs, in graph order.
	Claims []string

	// Communities are the labels of communities the identity holds a
	// position in.
	Communities []string
}

// Oracle is the read-only reputation-graph collaborator.
type Oracle interface {
	// Lookup returns the snapshot for a single identity. A blank id
	// returns ErrIdentityNotFound; an unknown id returns an anonymous
	// snapshot.
	Lookup(ctx context.Context, id string) (*Identity, error)

	// Search returns identities whose label or id matches the pattern,
	// bounded to a fixed count, ordered by magnitude descending.
	Search(ctx context.Context, pattern string) ([]Identity, error)

	// DiscoverIdentities returns the highest-magnitude person identities.
	DiscoverIdentities(ctx context.Context) ([]Identity, error)

	// DiscoverCommunities returns the highest-magnitude community
	// identities.
	DiscoverCommunities(ctx context.Context) ([]Identity, error)
}

// Anonymous builds the placeholder snapshot used for identities the graph
// does not know. Every identity resolves to something; unknown identities
// are not worthless, they are merely unvouched.
func Anonymous(id string) *Identity {
	short := id
	if len(short) > 6 {
		short = short[:6]
	}
	return &Identity{
		ID:          id,
		DisplayName: fmt.Sprintf("Anon %s", short),
		AvatarRef:   fmt.Sprintf("identicon:%s", id),
	}
}
