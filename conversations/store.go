////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/intumsg/client/storage/versioned"
)

const (
	storePrefix  = "conversations"
	storeVersion = 0

	indexKey  = "index"
	logPrefix = "log-"

	storeLogHeader = "CONV"
)

// Store is the local-first persistence layer for conversations and their
// append-only message logs. Everything is loaded into memory on open and
// written through to the KV on every mutation, so reads never touch disk and
// writes are durable before any listener hears about them.
//
// The store keeps a secondary index on the unordered participant set so the
// at-most-one-conversation-per-pair invariant can be enforced on creation.
type Store struct {
	kv     *versioned.KV
	events *Switchboard

	mux    sync.RWMutex
	loaded map[string]*Conversation
	byPair map[string]string // PairKey -> conversation id

	lockMux sync.Mutex
	locks   map[string]*sync.Mutex // per-conversation operation locks
}

// NewStore loads the conversation collection from the KV. Corrupt records
// are dropped with a warning and the collection self-heals around them; a
// corrupt store is never fatal.
func NewStore(kv *versioned.KV) *Store {
	s := &Store{
		kv:     kv.Prefix(storePrefix),
		events: NewSwitchboard(),
		loaded: make(map[string]*Conversation),
		byPair: make(map[string]string),
		locks:  make(map[string]*sync.Mutex),
	}

	for _, id := range s.loadIndex() {
		c, err := s.loadConversation(id)
		if err != nil {
			jww.WARN.Printf("[%s] Dropping unreadable conversation %q: %+v",
				storeLogHeader, id, err)
			continue
		}
		s.loaded[c.ID] = c
		s.byPair[PairKey(c.Participants...)] = c.ID
	}

	return s
}

// Events returns the switchboard new messages are spoken on.
func (s *Store) Events() *Switchboard {
	return s.events
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	c, ok := s.loaded[id]
	if !ok {
		return nil, false
	}
	return c.copyOf(), true
}

// GetByPair returns a copy of the conversation for the unordered participant
// set, regardless of its status. A Rejected record therefore still occupies
// its pair; see Manager.Reset.
func (s *Store) GetByPair(participants ...string) (*Conversation, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	id, ok := s.byPair[PairKey(participants...)]
	if !ok {
		return nil, false
	}
	c, ok := s.loaded[id]
	if !ok {
		return nil, false
	}
	return c.copyOf(), true
}

// List returns copies of all conversations, most recent message first.
func (s *Store) List() []*Conversation {
	s.mux.RLock()
	defer s.mux.RUnlock()

	list := make([]*Conversation, 0, len(s.loaded))
	for _, c := range s.loaded {
		list = append(list, c.copyOf())
	}

	now := netTime.Now()
	sort.Slice(list, func(i, j int) bool {
		ti, tj := now, now
		if list[i].LastMessage != nil {
			ti = list[i].LastMessage.Timestamp
		}
		if list[j].LastMessage != nil {
			tj = list[j].LastMessage.Timestamp
		}
		if ti.Equal(tj) {
			return list[i].ID < list[j].ID
		}
		return ti.After(tj)
	})
	return list
}

// Upsert writes the conversation through to the KV and updates the in-memory
// collection and pair index.
func (s *Store) Upsert(c *Conversation) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if err := s.saveConversation(c); err != nil {
		return err
	}

	prev, existed := s.loaded[c.ID]
	if !existed {
		if err := s.saveIndex(append(s.indexLocked(), c.ID)); err != nil {
			return err
		}
	}

	// A participant change (a reconciliation merge) moves the pair index
	// entry instead of leaving the old key pointing here.
	pair := PairKey(c.Participants...)
	if existed {
		if prevPair := PairKey(prev.Participants...); prevPair != pair &&
			s.byPair[prevPair] == c.ID {
			delete(s.byPair, prevPair)
		}
	}

	s.loaded[c.ID] = c.copyOf()
	s.byPair[pair] = c.ID
	return nil
}

// Delete removes the conversation, its message log, and its index entries.
func (s *Store) Delete(id string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	c, ok := s.loaded[id]
	if !ok {
		return ErrConversationNotFound
	}

	if err := s.kv.Delete(id, storeVersion); err != nil {
		return errors.WithMessagef(err, "failed to delete conversation %q", id)
	}
	if err := s.kv.Delete(logPrefix+id, storeVersion); err != nil &&
		s.kv.Exists(err) {
		jww.WARN.Printf("[%s] Failed to delete message log for %q: %+v",
			storeLogHeader, id, err)
	}

	delete(s.loaded, id)
	delete(s.byPair, PairKey(c.Participants...))

	var index []string
	for _, existing := range s.indexLocked() {
		if existing != id {
			index = append(index, existing)
		}
	}
	return s.saveIndex(index)
}

// Messages returns the conversation's message log. A corrupt log reads as
// empty.
func (s *Store) Messages(id string) []Message {
	obj, err := s.kv.Get(logPrefix+id, storeVersion)
	if err != nil {
		return nil
	}

	var log []Message
	if err = json.Unmarshal(obj.Data, &log); err != nil {
		jww.WARN.Printf("[%s] Corrupt message log for %q, treating as "+
			"empty: %+v", storeLogHeader, id, err)
		return nil
	}
	return log
}

// AppendMessage durably appends a message to the conversation's log, updates
// the last-message reference, bumps the unread counter for inbound messages,
// and only then speaks the message on the switchboard. A listener can never
// hear a message that a concurrent read of the log would miss.
func (s *Store) AppendMessage(id string, msg Message, inbound bool) error {
	s.mux.Lock()

	c, ok := s.loaded[id]
	if !ok {
		s.mux.Unlock()
		return ErrConversationNotFound
	}

	if err := s.appendToLog(id, msg); err != nil {
		s.mux.Unlock()
		return err
	}

	msgCopy := msg
	c.LastMessage = &msgCopy
	if inbound {
		c.UnreadCount++
	}
	if err := s.saveConversation(c); err != nil {
		s.mux.Unlock()
		return err
	}
	s.mux.Unlock()

	s.events.Speak(msg)
	return nil
}

// AppendIfMissing appends the message only if no message with the same id is
// already in the log, and speaks it if appended. Used by the reconciler so
// re-applying a remote snapshot cannot duplicate history.
func (s *Store) AppendIfMissing(id string, msg Message) error {
	s.mux.Lock()

	if _, ok := s.loaded[id]; !ok {
		s.mux.Unlock()
		return ErrConversationNotFound
	}

	for _, existing := range s.Messages(id) {
		if existing.ID == msg.ID {
			s.mux.Unlock()
			return nil
		}
	}

	if err := s.appendToLog(id, msg); err != nil {
		s.mux.Unlock()
		return err
	}
	s.mux.Unlock()

	s.events.Speak(msg)
	return nil
}

// MarkLogRead flips the read flag on every message in the log. Outbound
// messages are included; the owner has read their own words by definition.
func (s *Store) MarkLogRead(id string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	log := s.Messages(id)
	if len(log) == 0 {
		return nil
	}
	for i := range log {
		log[i].Read = true
	}
	return s.saveLog(id, log)
}

// Lock takes the per-conversation operation lock for the given key. Keys are
// conversation ids, or pair keys during creation. The lock must never be
// held across network I/O.
func (s *Store) Lock(key string) {
	s.lockMux.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.lockMux.Unlock()
	l.Lock()
}

// Unlock releases the per-conversation operation lock.
func (s *Store) Unlock(key string) {
	s.lockMux.Lock()
	l, ok := s.locks[key]
	s.lockMux.Unlock()
	if ok {
		l.Unlock()
	}
}

/* persistence internals; callers hold s.mux where required */

func (s *Store) appendToLog(id string, msg Message) error {
	log := append(s.Messages(id), msg)
	return s.saveLog(id, log)
}

func (s *Store) saveLog(id string, log []Message) error {
	data, err := json.Marshal(log)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message log")
	}
	return s.kv.Set(logPrefix+id, &versioned.Object{
		Version:   storeVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	})
}

func (s *Store) saveConversation(c *Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal conversation")
	}
	return s.kv.Set(c.ID, &versioned.Object{
		Version:   storeVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	})
}

func (s *Store) loadConversation(id string) (*Conversation, error) {
	obj, err := s.kv.Get(id, storeVersion)
	if err != nil {
		return nil, err
	}

	var c Conversation
	if err = json.Unmarshal(obj.Data, &c); err != nil {
		return nil, errors.WithMessagef(err,
			"failed to parse conversation %q", id)
	}
	return &c, nil
}

// loadIndex reads the id index. A missing or corrupt index reads as an empty
// collection; the store self-heals as conversations are recreated.
func (s *Store) loadIndex() []string {
	obj, err := s.kv.Get(indexKey, storeVersion)
	if err != nil {
		return nil
	}

	var index []string
	if err = json.Unmarshal(obj.Data, &index); err != nil {
		jww.WARN.Printf("[%s] Corrupt conversation index, treating as "+
			"empty: %+v", storeLogHeader, err)
		return nil
	}
	return index
}

func (s *Store) indexLocked() []string {
	return s.loadIndex()
}

func (s *Store) saveIndex(index []string) error {
	data, err := json.Marshal(index)
	if err != nil {
		return errors.Wrap(err, "failed to marshal conversation index")
	}
	return s.kv.Set(indexKey, &versioned.Object{
		Version:   storeVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	})
}
