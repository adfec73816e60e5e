////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package oracle

// Result bounds baked into the queries below. The graph orders by staked
// magnitude descending, so bounded queries return the most-vouched entries.
const (
	searchLimit    = 10
	discoverLimit  = 20
	positionsLimit = 10
	claimsLimit    = 5
)

const identityByAddressQuery = `
  query GetIdentityByAddress($address: String!) {
    atoms(where: { wallet_id: { _ilike: $address } }, limit: 1) {
      id
      label
      image
      wallet_id
      term {
        vaults(limit: 1, order_by: { total_shares: desc }) {
          total_shares
        }
      }
    }
  }`

const searchIdentitiesQuery = `
  query SearchIdentities($pattern: String!) {
    atoms(
      limit: 10,
      order_by: { term: { vaults: { total_shares: desc } } },
      where: {
        _or: [
          { label: { _ilike: $pattern } },
          { wallet_id: { _ilike: $pattern } }
        ]
      }
    ) {
      id
      label
      image
      wallet_id
      type
      term {
        vaults(limit: 1) {
          total_shares
        }
      }
    }
  }`

const discoverIdentitiesQuery = `
  query GetDiscoveryAtoms {
    atoms(
      limit: 20,
      order_by: { term: { vaults: { total_shares: desc } } },
      where: {
        type: { _eq: "person" },
        image: { _is_null: false }
      }
    ) {
      id
      label
      image
      wallet_id
      term {
        vaults(limit: 1) {
          total_shares
        }
      }
    }
  }`

const discoverCommunitiesQuery = `
  query GetDiscoveryCommunities {
    atoms(
      limit: 20,
      order_by: { term: { vaults: { total_shares: desc } } },
      where: {
        type: { _neq: "person" },
        image: { _is_null: false }
      }
    ) {
      id
      label
      image
      wallet_id
      term {
        vaults(limit: 1) {
          total_shares
        }
      }
    }
  }`

const positionsQuery = `
  query GetUserPositions($address: String!) {
    positions(where: { account: { id: { _ilike: $address } } }, limit: 10) {
      shares
      vault {
        atom {
          label
          type
        }
      }
    }
  }`

const claimsQuery = `
  query GetUserClaims($address: String!) {
    triples(
      where: {
        subject: { wallet_id: { _ilike: $address } }
      },
      limit: 5,
      order_by: { id: desc }
    ) {
      predicate {
        label
      }
      object {
        label
      }
    }
  }`
