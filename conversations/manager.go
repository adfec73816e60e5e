////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/intumsg/client/catalog"
	"gitlab.com/intumsg/client/envelope"
	"gitlab.com/intumsg/client/gate"
	"gitlab.com/intumsg/client/oracle"
)

const managerLogHeader = "CONV"

// Gatekeeper is the admission control dependency of the state machine.
type Gatekeeper interface {
	Check(ctx context.Context, senderID, receiverID string) (gate.Verdict, error)
}

// Manager drives the conversation lifecycle state machine on top of the
// local Store. Conversations are born Active or RequestPending, only; the
// other states are reached through explicit operations.
type Manager struct {
	me    string
	store *Store
	gate  Gatekeeper
	codec envelope.Codec
}

// NewManager returns a Manager operating as the given local identity.
func NewManager(me string, store *Store, gatekeeper Gatekeeper,
	codec envelope.Codec) *Manager {
	return &Manager{
		me:    me,
		store: store,
		gate:  gatekeeper,
		codec: codec,
	}
}

// Store returns the underlying local store.
func (m *Manager) Store() *Store {
	return m.store
}

// StartConversation opens, or returns, the direct conversation with the
// recipient. If one already exists for the unordered pair it is returned
// whatever its status; a Rejected record keeps the pair dead until Reset.
// Otherwise admission control runs: direct admission creates an Active
// conversation, a collateral verdict creates a RequestPending one with the
// bond recorded, and an outright denial creates nothing.
func (m *Manager) StartConversation(ctx context.Context, recipientID string) (
	*Conversation, error) {

	if recipientID == m.me {
		return nil, ErrSelfConversation
	}

	pair := PairKey(m.me, recipientID)
	m.store.Lock(pair)
	defer m.store.Unlock(pair)

	if existing, ok := m.store.GetByPair(m.me, recipientID); ok {
		return existing, nil
	}

	verdict, err := m.gate.Check(ctx, m.me, recipientID)
	if err != nil {
		return nil, err
	}

	c := &Conversation{
		ID:           uuid.NewString(),
		Participants: []string{m.me, recipientID},
	}

	switch {
	case verdict.Allowed:
		c.Status = Active
	case verdict.RequiresCollateral:
		c.Status = RequestPending
		c.CollateralLocked = verdict.CollateralAmount
	default:
		return nil, errors.WithMessage(ErrAdmissionDenied, verdict.Reason)
	}

	if err = m.store.Upsert(c); err != nil {
		return nil, err
	}

	jww.INFO.Printf("[%s] Started conversation %s with %q: %s "+
		"(collateral %d)", managerLogHeader, c.ID, recipientID, c.Status,
		c.CollateralLocked)
	return c.copyOf(), nil
}

// AcceptRequest admits a pending request: the conversation becomes Active
// and the collateral is released back to the sender. Settlement of the
// released bond is an external concern; this engine only clears the record.
// Valid only from RequestPending.
func (m *Manager) AcceptRequest(id string) (*Conversation, error) {
	m.store.Lock(id)
	defer m.store.Unlock(id)

	c, ok := m.store.Get(id)
	if !ok {
		return nil, ErrConversationNotFound
	}
	if c.Status != RequestPending {
		return nil, errors.WithMessagef(ErrInvalidTransition,
			"cannot accept conversation in state %s", c.Status)
	}

	c.Status = Active
	c.CollateralLocked = 0
	if err := m.store.Upsert(c); err != nil {
		return nil, err
	}

	jww.INFO.Printf("[%s] Accepted request %s", managerLogHeader, id)
	return c.copyOf(), nil
}

// RejectRequest slashes a pending request: the conversation becomes
// Rejected and the collateral figure is retained unchanged as the audit
// record of the burned amount. Valid only from RequestPending.
func (m *Manager) RejectRequest(id string) (*Conversation, error) {
	m.store.Lock(id)
	defer m.store.Unlock(id)

	c, ok := m.store.Get(id)
	if !ok {
		return nil, ErrConversationNotFound
	}
	if c.Status != RequestPending {
		return nil, errors.WithMessagef(ErrInvalidTransition,
			"cannot reject conversation in state %s", c.Status)
	}

	c.Status = Rejected
	if err := m.store.Upsert(c); err != nil {
		return nil, err
	}

	jww.INFO.Printf("[%s] Rejected request %s, %d collateral slashed",
		managerLogHeader, id, c.CollateralLocked)
	return c.copyOf(), nil
}

// Leave removes a group conversation and its message log from the local
// store entirely. Leaving a direct conversation is undefined and refused.
func (m *Manager) Leave(id string) error {
	m.store.Lock(id)
	defer m.store.Unlock(id)

	c, ok := m.store.Get(id)
	if !ok {
		return ErrConversationNotFound
	}
	if !c.IsGroup {
		return ErrNotGroup
	}

	jww.INFO.Printf("[%s] Leaving group %s", managerLogHeader, id)
	return m.store.Delete(id)
}

// MarkRead zeroes the conversation's unread counter and flips the read flag
// on its log. Returns false with no error when there was nothing unread.
func (m *Manager) MarkRead(id string) (bool, error) {
	m.store.Lock(id)
	defer m.store.Unlock(id)

	c, ok := m.store.Get(id)
	if !ok {
		return false, ErrConversationNotFound
	}
	if c.UnreadCount == 0 {
		return false, nil
	}

	c.UnreadCount = 0
	if err := m.store.Upsert(c); err != nil {
		return false, err
	}
	return true, m.store.MarkLogRead(id)
}

// Reset removes a Rejected direct conversation so a future
// StartConversation may re-gate the pair. This is the only way a rejected
// pair comes back to life.
func (m *Manager) Reset(id string) error {
	m.store.Lock(id)
	defer m.store.Unlock(id)

	c, ok := m.store.Get(id)
	if !ok {
		return ErrConversationNotFound
	}
	if c.IsGroup || c.Status != Rejected {
		return errors.WithMessagef(ErrInvalidTransition,
			"cannot reset conversation in state %s", c.Status)
	}

	jww.INFO.Printf("[%s] Resetting rejected conversation %s",
		managerLogHeader, id)
	return m.store.Delete(id)
}

// JoinCommunity opens the group conversation for a community identity.
// Groups bypass trust gating entirely: the conversation is always Active,
// seeded with a synthetic welcome message that starts the unread count at
// one.
func (m *Manager) JoinCommunity(community *oracle.Identity) (
	*Conversation, error) {

	pair := PairKey(m.me, community.ID)
	m.store.Lock(pair)
	defer m.store.Unlock(pair)

	if existing, ok := m.store.GetByPair(m.me, community.ID); ok {
		return existing, nil
	}

	c := &Conversation{
		ID:           uuid.NewString(),
		Participants: []string{m.me, community.ID},
		IsGroup:      true,
		Status:       Active,
	}
	if err := m.store.Upsert(c); err != nil {
		return nil, err
	}

	welcome := Message{
		ID:         uuid.NewString(),
		SenderID:   community.ID,
		ReceiverID: c.ID,
		Content: m.codec.Encode([]byte(fmt.Sprintf(
			"Welcome to the %s community channel.", community.DisplayName))),
		Timestamp: netTime.Now(),
		Kind:      catalog.System,
	}
	if err := m.store.AppendMessage(c.ID, welcome, true); err != nil {
		return nil, err
	}

	jww.INFO.Printf("[%s] Joined community %q as conversation %s",
		managerLogHeader, community.ID, c.ID)

	joined, _ := m.store.Get(c.ID)
	return joined, nil
}

// Send encodes and appends an outbound message to the conversation with the
// recipient. The conversation must exist; a RequestPending conversation may
// carry outbound messages (they are the request), a Rejected or Blocked one
// may not.
func (m *Manager) Send(recipientID, plaintext string) (*Message, error) {
	c, ok := m.store.GetByPair(m.me, recipientID)
	if !ok {
		return nil, ErrConversationNotFound
	}

	m.store.Lock(c.ID)
	defer m.store.Unlock(c.ID)

	// Re-read under the lock; a rejection may have raced the pair lookup.
	c, ok = m.store.Get(c.ID)
	if !ok {
		return nil, ErrConversationNotFound
	}

	if c.Status == Rejected || c.Status == Blocked {
		return nil, errors.WithMessagef(ErrInvalidTransition,
			"cannot send in state %s", c.Status)
	}

	receiver := recipientID
	if c.IsGroup {
		receiver = c.ID
	}

	msg := Message{
		ID:         uuid.NewString(),
		SenderID:   m.me,
		ReceiverID: receiver,
		Content:    m.codec.Encode([]byte(plaintext)),
		Timestamp:  netTime.Now(),
		Kind:       catalog.Text,
	}

	if err := m.store.AppendMessage(c.ID, msg, false); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Receive handles an inbound message. If no conversation exists for the
// pair, the sender is run through admission control exactly as an outbound
// start would be: admitted senders get an Active conversation, gated senders
// a RequestPending one backed by their collateral, and denied senders have
// the message dropped. The message is appended durably before any listener
// hears it.
func (m *Manager) Receive(ctx context.Context, msg Message) (
	*Conversation, error) {

	pair := PairKey(m.me, msg.SenderID)
	m.store.Lock(pair)

	c, ok := m.store.GetByPair(m.me, msg.SenderID)
	if !ok {
		verdict, err := m.gate.Check(ctx, msg.SenderID, m.me)
		if err != nil {
			m.store.Unlock(pair)
			return nil, err
		}

		c = &Conversation{
			ID:           uuid.NewString(),
			Participants: []string{m.me, msg.SenderID},
		}
		switch {
		case verdict.Allowed:
			c.Status = Active
		case verdict.RequiresCollateral:
			c.Status = RequestPending
			c.CollateralLocked = verdict.CollateralAmount
		default:
			m.store.Unlock(pair)
			jww.INFO.Printf("[%s] Dropping message from denied sender %q: %s",
				managerLogHeader, msg.SenderID, verdict.Reason)
			return nil, errors.WithMessage(ErrAdmissionDenied, verdict.Reason)
		}

		if err = m.store.Upsert(c); err != nil {
			m.store.Unlock(pair)
			return nil, err
		}
	}
	m.store.Unlock(pair)

	m.store.Lock(c.ID)
	defer m.store.Unlock(c.ID)

	if err := m.store.AppendMessage(c.ID, msg, true); err != nil {
		return nil, err
	}

	refreshed, _ := m.store.Get(c.ID)
	return refreshed, nil
}

// Conversations returns the local conversation list, most recent first.
// This always serves from local state: remote availability can delay
// freshness but never a read.
func (m *Manager) Conversations() []*Conversation {
	return m.store.List()
}

// Get returns the conversation with the given id.
func (m *Manager) Get(id string) (*Conversation, error) {
	c, ok := m.store.Get(id)
	if !ok {
		return nil, ErrConversationNotFound
	}
	return c, nil
}

// Messages returns the conversation's log with every payload decoded.
// Decoding is total; corrupt envelopes render as the placeholder.
func (m *Manager) Messages(id string) ([]Message, error) {
	if _, ok := m.store.Get(id); !ok {
		return nil, ErrConversationNotFound
	}

	log := m.store.Messages(id)
	for i := range log {
		log[i].Content = m.codec.Decode(log[i].Content)
	}
	return log, nil
}
