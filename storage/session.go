////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Session object definition

package storage

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/intumsg/client/conversations"
	"gitlab.com/intumsg/client/storage/policy"
	"gitlab.com/intumsg/client/storage/versioned"
)

const currentSessionVersion = 0

// Session is the root of all durable client state, backed by an encrypted
// filestore. Every sub-store hangs off the same versioned KV so one
// directory and password cover the whole session.
type Session struct {
	kv *versioned.KV

	mux sync.RWMutex

	// memoized data
	user *User

	// sub-stores
	conversations *conversations.Store
	policies      *policy.Store
}

// initStore opens the encrypted filestore backing a session.
func initStore(baseDir, password string) (*Session, error) {
	fs, err := ekv.NewFilestore(baseDir, password)
	if err != nil {
		return nil, errors.WithMessage(err,
			"Failed to create storage session")
	}

	return &Session{kv: versioned.NewKV(fs)}, nil
}

// New creates a session for a fresh local identity. Fails if the directory
// already holds one.
func New(baseDir, password string, u User) (*Session, error) {
	s, err := initStore(baseDir, password)
	if err != nil {
		return nil, errors.WithMessagef(err,
			"Failed to create session for %s", baseDir)
	}

	if s.userExists() {
		return nil, errors.Errorf(
			"session at %s already holds an identity", baseDir)
	}
	if err = s.setUser(u); err != nil {
		return nil, errors.WithMessage(err, "Failed to store user")
	}

	s.openStores()
	return s, nil
}

// Load opens an existing session.
func Load(baseDir, password string) (*Session, error) {
	s, err := initStore(baseDir, password)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to load session")
	}

	s.user, err = s.loadUser()
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to load user")
	}

	s.openStores()
	return s, nil
}

func (s *Session) openStores() {
	s.conversations = conversations.NewStore(s.kv)
	s.policies = policy.NewStore(s.kv)
}

// Conversations returns the conversation store.
func (s *Session) Conversations() *conversations.Store {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.conversations
}

// Policies returns the per-identity admission policy store.
func (s *Session) Policies() *policy.Store {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.policies
}

// GetKV returns the session's versioned KV for sub-stores created by
// callers.
func (s *Session) GetKV() *versioned.KV {
	return s.kv
}

// InitTestingSession returns an in-memory session for testing. Panics when
// called from non-testing code.
func InitTestingSession(i interface{}) *Session {
	switch i.(type) {
	case *testing.T, *testing.M, *testing.B:
	default:
		jww.FATAL.Panicf("InitTestingSession is restricted to testing "+
			"use, got %T", i)
	}

	s := &Session{kv: versioned.NewKV(ekv.MakeMemstore())}
	if err := s.setUser(User{Address: "0xtest"}); err != nil {
		jww.FATAL.Panicf("Failed to store test user: %+v", err)
	}
	s.openStores()
	return s
}
