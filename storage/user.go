////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/intumsg/client/storage/versioned"
)

const userKey = "user"

// User is the local identity the session belongs to. The wallet address is
// the canonical id everywhere; the display name is a convenience copied
// from the trust graph at login.
type User struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

// GetUser returns the session's local identity.
func (s *Session) GetUser() User {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return *s.user
}

// SetDisplayName updates the memoized display name and persists it.
func (s *Session) SetDisplayName(name string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	u := *s.user
	u.DisplayName = name
	if err := s.setUserLocked(u); err != nil {
		return err
	}
	s.user = &u
	return nil
}

func (s *Session) userExists() bool {
	_, err := s.kv.Get(userKey, currentSessionVersion)
	return err == nil
}

func (s *Session) setUser(u User) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.setUserLocked(u)
}

func (s *Session) setUserLocked(u User) error {
	if u.Address == "" {
		return errors.New("user address cannot be empty")
	}

	data, err := json.Marshal(&u)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user")
	}

	obj := versioned.Object{
		Version:   currentSessionVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	}
	if err = s.kv.Set(userKey, &obj); err != nil {
		return err
	}

	s.user = &User{Address: u.Address, DisplayName: u.DisplayName}
	return nil
}

func (s *Session) loadUser() (*User, error) {
	obj, err := s.kv.Get(userKey, currentSessionVersion)
	if err != nil {
		return nil, err
	}

	u := &User{}
	if err = json.Unmarshal(obj.Data, u); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal user")
	}
	return u, nil
}
