////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package trust derives the bounded reputation score admission control is
// gated on. Scoring is total: whatever the reputation graph is doing, every
// identity always has a score in [0, MaxScore].
package trust

import (
	"context"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/oracle"
)

const trustLogHeader = "TRUST"

const (
	// MaxScore is the score ceiling. No identity, however vouched, exceeds
	// it.
	MaxScore = 99

	// floorBonus is added to every oracle-derived magnitude so an identity
	// with zero signal still has a non-zero baseline. Unknown identities
	// are unvouched, not worthless.
	floorBonus = 10

	// defaultScore is used when the oracle cannot be consulted at all.
	defaultScore = 10

	// attestBonus is the amount one attestation raises a local override.
	attestBonus = 15
)

// Directory resolves identity snapshots. Callers with a caching directory
// should pass it here so scoring shares its hits; scoring only ever needs
// lookups, never search or discovery.
type Directory interface {
	Lookup(ctx context.Context, id string) (*oracle.Identity, error)
}

// Scorer derives trust scores from the reputation graph and merges in local
// attestation overrides. Overrides are ephemeral: they live in memory only
// and are never written back to the graph.
type Scorer struct {
	directory Directory
	overrides map[string]int
	mux       sync.RWMutex
}

// NewScorer returns a Scorer reading from the given identity directory.
func NewScorer(directory Directory) *Scorer {
	return &Scorer{
		directory: directory,
		overrides: make(map[string]int),
	}
}

// Score returns the trust score for the identity, always in [0, MaxScore].
// The oracle-derived score is min(magnitude+floorBonus, MaxScore); if the
// oracle fails the fixed default is used instead. Any local override is then
// merged by maximum, so overrides never lower a score.
func (s *Scorer) Score(ctx context.Context, id string) int {
	score := defaultScore

	ident, err := s.directory.Lookup(ctx, id)
	if err != nil {
		jww.WARN.Printf("[%s] Oracle lookup for %q failed, using default "+
			"score %d: %+v", trustLogHeader, id, defaultScore, err)
	} else {
		score = derive(ident.Magnitude)
	}

	s.mux.RLock()
	override, ok := s.overrides[id]
	s.mux.RUnlock()

	if ok && override > score {
		score = override
	}
	return score
}

// Attest records a local vouch for the target identity, raising its override
// by the fixed attestation bonus, saturating at MaxScore. Repeated calls
// keep raising the override until the ceiling; convergence at the ceiling is
// the only idempotence guarantee. Returns the new override value.
func (s *Scorer) Attest(targetID string) int {
	s.mux.Lock()
	defer s.mux.Unlock()

	current, ok := s.overrides[targetID]
	if !ok {
		current = defaultScore
	}

	next := current + attestBonus
	if next > MaxScore {
		next = MaxScore
	}
	s.overrides[targetID] = next

	jww.INFO.Printf("[%s] Attested to %q, override now %d",
		trustLogHeader, targetID, next)
	return next
}

// Override returns the current local override for the identity, if any.
func (s *Scorer) Override(id string) (int, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	override, ok := s.overrides[id]
	return override, ok
}

// derive maps a raw magnitude signal to a bounded score.
func derive(magnitude uint64) int {
	if magnitude >= MaxScore-floorBonus {
		return MaxScore
	}
	return int(magnitude) + floorBonus
}
