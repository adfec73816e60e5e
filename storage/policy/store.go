////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package policy

import (
	"encoding/json"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/intumsg/client/storage/versioned"
)

const (
	storePrefix  = "trustPolicy"
	storeVersion = 0

	policyLogHeader = "POLICY"
)

// Store persists one Policy record per identity id.
type Store struct {
	kv *versioned.KV
}

// NewStore returns a policy store rooted under the given KV.
func NewStore(kv *versioned.KV) *Store {
	return &Store{kv: kv.Prefix(storePrefix)}
}

// Resolve returns the identity's stored policy, or the default when none is
// stored. This is the sum-type boundary: everything downstream of admission
// control sees a concrete policy and never a maybe-policy. A corrupt stored
// record also resolves to the default; a broken policy must not lock its
// owner out of receiving contact.
func (s *Store) Resolve(id string) Policy {
	obj, err := s.kv.Get(id, storeVersion)
	if err != nil {
		return Default()
	}

	var p Policy
	if err = json.Unmarshal(obj.Data, &p); err != nil {
		jww.WARN.Printf("[%s] Corrupt policy record for %q, using "+
			"default: %+v", policyLogHeader, id, err)
		return Default()
	}
	return p
}

// IsCustom reports whether the identity has a stored policy of its own.
func (s *Store) IsCustom(id string) bool {
	_, err := s.kv.Get(id, storeVersion)
	return s.kv.Exists(err)
}

// Set stores the identity's policy, replacing any previous record.
func (s *Store) Set(id string, p Policy) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "failed to marshal policy")
	}

	return s.kv.Set(id, &versioned.Object{
		Version:   storeVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	})
}

// Delete removes the identity's stored policy so it resolves to the default
// again.
func (s *Store) Delete(id string) error {
	return s.kv.Delete(id, storeVersion)
}
