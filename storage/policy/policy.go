////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package policy persists per-identity trust policies. A policy belongs to
// the receiving side of a contact attempt and is read-only to admission
// control. Identities without a stored policy resolve to the default.
package policy

// Policy is the trust policy an identity applies to inbound contact.
type Policy struct {
	// MinTrustScore is the score at or above which a sender is admitted
	// directly.
	MinTrustScore int `json:"minTrustScoreToDm"`

	// CollateralRequired indicates whether a sender below the threshold
	// may still request contact by locking collateral.
	CollateralRequired bool `json:"requiresCollateral"`

	// CollateralAmount is the bond a below-threshold sender must lock.
	CollateralAmount uint64 `json:"collateralAmount"`

	// AllowList admits these sender ids regardless of score.
	AllowList []string `json:"allowList"`

	// BlockList denies these sender ids regardless of score or allow
	// listing.
	BlockList []string `json:"blockList"`
}

// Default returns the policy applied to identities that have not configured
// one.
func Default() Policy {
	return Policy{
		MinTrustScore:      20,
		CollateralRequired: true,
		CollateralAmount:   50,
	}
}

// Allows reports whether the sender is on the allow list.
func (p Policy) Allows(senderID string) bool {
	return contains(p.AllowList, senderID)
}

// Blocks reports whether the sender is on the block list.
func (p Policy) Blocks(senderID string) bool {
	return contains(p.BlockList, senderID)
}

func contains(list []string, id string) bool {
	for _, entry := range list {
		if entry == id {
			return true
		}
	}
	return false
}
