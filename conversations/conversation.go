////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package conversations owns the conversation lifecycle and its local-first
// persistence. All conversation and message state is served from the local
// store; the remote backend is an eventually-consistent overlay applied by
// the reconciler, never a blocking dependency.
package conversations

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/intumsg/client/catalog"
)

// Status is the lifecycle state of a conversation.
type Status uint8

const (
	// Active conversations exchange messages freely.
	Active Status = iota

	// RequestPending conversations exist but are gated: the sender has
	// locked collateral and awaits the receiver's decision.
	RequestPending

	// Rejected conversations are retained as an audit record of a slashed
	// request. They never carry new messages.
	Rejected

	// Blocked conversations are frozen by the receiver.
	Blocked
)

var statusNames = map[Status]string{
	Active:         "active",
	RequestPending: "request_pending",
	Rejected:       "rejected",
	Blocked:        "blocked",
}

// String returns the wire name of the Status. This function adheres to the
// fmt.Stringer interface.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStatus returns the Status for the given wire name.
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return Active, errors.Errorf("unknown conversation status %q", s)
}

// MarshalJSON encodes the Status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the Status from its wire name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Message is one entry in a conversation's append-only log. Once persisted a
// message is never mutated, except for the read flag which the owning side's
// read marker may flip.
type Message struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"senderId"`
	ReceiverID string              `json:"receiverId"`
	Content    []byte              `json:"content"` // opaque envelope
	Timestamp  time.Time           `json:"timestamp"`
	Read       bool                `json:"read"`
	Kind       catalog.MessageType `json:"type"`
}

// Conversation is the persisted record of one conversation.
type Conversation struct {
	ID               string   `json:"id"`
	Participants     []string `json:"participants"`
	IsGroup          bool     `json:"isGroup"`
	Status           Status   `json:"status"`
	CollateralLocked uint64   `json:"collateralLocked"`
	LastMessage      *Message `json:"lastMessage,omitempty"`
	UnreadCount      uint32   `json:"unreadCount"`
}

// PairKey builds the dedup key for a participant set: the sorted, joined
// ids. For direct messages this is the unordered pair the at-most-one-
// conversation invariant hangs on.
func PairKey(participants ...string) string {
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// Partner returns the other participant of a direct conversation, or "" for
// groups and malformed records.
func (c *Conversation) Partner(me string) string {
	if c.IsGroup || len(c.Participants) != 2 {
		return ""
	}
	if c.Participants[0] == me {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// copyOf returns a deep copy so callers can never mutate the store's record
// behind its locks.
func (c *Conversation) copyOf() *Conversation {
	dup := *c
	dup.Participants = append([]string(nil), c.Participants...)
	if c.LastMessage != nil {
		msg := *c.LastMessage
		msg.Content = append([]byte(nil), c.LastMessage.Content...)
		dup.LastMessage = &msg
	}
	return &dup
}
