////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package gate decides whether a contact attempt becomes an open
// conversation, a collateral-backed request, or nothing. The decision is a
// pure function of the two identities' current scores and the receiver's
// policy; gate holds no state of its own.
package gate

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/oracle"
	"gitlab.com/intumsg/client/storage/policy"
)

const gateLogHeader = "GATE"

// ErrIdentityNotFound is returned when either side of a contact attempt
// cannot be resolved at all. This is a hard failure: it is reported to the
// caller and never retried by the engine.
var ErrIdentityNotFound = errors.New("user not found")

// Verdict reasons. The reason string for a score shortfall is generated and
// carries the two numbers.
const (
	ReasonBlocked     = "Blocked"
	ReasonAllowlisted = "Allowlisted"
	ReasonTrusted     = "Trust score sufficient"
)

// Verdict is the outcome of one admission check.
type Verdict struct {
	// Allowed indicates direct admission: the conversation opens Active.
	Allowed bool

	// RequiresCollateral indicates a denied sender may still open a
	// pending request by locking CollateralAmount.
	RequiresCollateral bool

	// CollateralAmount is the bond required when RequiresCollateral.
	CollateralAmount uint64

	// Reason records which rule produced the verdict.
	Reason string
}

// Directory resolves identity snapshots.
type Directory interface {
	Lookup(ctx context.Context, id string) (*oracle.Identity, error)
}

// Scorer produces the bounded trust score for an identity.
type Scorer interface {
	Score(ctx context.Context, id string) int
}

// Policies resolves the receiver's trust policy.
type Policies interface {
	Resolve(id string) policy.Policy
}

// Engine evaluates admission checks.
type Engine struct {
	directory Directory
	scores    Scorer
	policies  Policies
}

// NewEngine returns an admission control engine over the given identity
// directory, scorer, and policy source.
func NewEngine(directory Directory, scores Scorer, policies Policies) *Engine {
	return &Engine{
		directory: directory,
		scores:    scores,
		policies:  policies,
	}
}

// Check evaluates whether sender may open a conversation with receiver.
//
// The rule order is a designed tie-break, not an accident: block list, then
// allow list, then score threshold, then the collateral fallback. A blocked
// sender stays blocked even if also allow-listed.
func (e *Engine) Check(ctx context.Context, senderID, receiverID string) (
	Verdict, error) {

	if _, err := e.directory.Lookup(ctx, senderID); err != nil {
		return Verdict{}, errors.WithMessagef(ErrIdentityNotFound,
			"sender %q", senderID)
	}
	if _, err := e.directory.Lookup(ctx, receiverID); err != nil {
		return Verdict{}, errors.WithMessagef(ErrIdentityNotFound,
			"receiver %q", receiverID)
	}

	pol := e.policies.Resolve(receiverID)

	if pol.Blocks(senderID) {
		return Verdict{Reason: ReasonBlocked}, nil
	}

	if pol.Allows(senderID) {
		return Verdict{Allowed: true, Reason: ReasonAllowlisted}, nil
	}

	senderScore := e.scores.Score(ctx, senderID)
	if senderScore >= pol.MinTrustScore {
		return Verdict{Allowed: true, Reason: ReasonTrusted}, nil
	}

	v := Verdict{
		RequiresCollateral: pol.CollateralRequired,
		CollateralAmount:   pol.CollateralAmount,
		Reason: fmt.Sprintf("trust score %d below threshold %d",
			senderScore, pol.MinTrustScore),
	}
	jww.INFO.Printf("[%s] %q -> %q denied: %s (collateral required: %t)",
		gateLogHeader, senderID, receiverID, v.Reason, v.RequiresCollateral)
	return v, nil
}
