////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"time"

	"gitlab.com/intumsg/client/catalog"
	"gitlab.com/intumsg/client/conversations"
)

// wireMessage is the rendezvous server's message record. Timestamps travel
// as Unix milliseconds and content as the encoded envelope string.
type wireMessage struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"senderId"`
	ReceiverID string              `json:"receiverId"`
	Content    string              `json:"content"`
	Timestamp  int64               `json:"timestamp"`
	Read       bool                `json:"read"`
	Type       catalog.MessageType `json:"type"`
}

func (w *wireMessage) toMessage() conversations.Message {
	return conversations.Message{
		ID:         w.ID,
		SenderID:   w.SenderID,
		ReceiverID: w.ReceiverID,
		Content:    []byte(w.Content),
		Timestamp:  time.UnixMilli(w.Timestamp).UTC(),
		Read:       w.Read,
		Kind:       w.Type,
	}
}

// wireConversation is the server's conversation record. Older servers omit
// the status field entirely; a missing status reads as Active.
type wireConversation struct {
	ID               string       `json:"id"`
	Participants     []string     `json:"participants"`
	IsGroup          bool         `json:"isGroup"`
	Status           *string      `json:"status"`
	CollateralLocked uint64       `json:"collateralLocked"`
	LastMessage      *wireMessage `json:"lastMessage"`
	UnreadCount      uint32       `json:"unreadCount"`
}

func (w *wireConversation) toConversation() (conversations.Conversation, error) {
	c := conversations.Conversation{
		ID:               w.ID,
		Participants:     w.Participants,
		IsGroup:          w.IsGroup,
		Status:           conversations.Active,
		CollateralLocked: w.CollateralLocked,
		UnreadCount:      w.UnreadCount,
	}
	if w.Status != nil {
		status, err := conversations.ParseStatus(*w.Status)
		if err != nil {
			return conversations.Conversation{}, err
		}
		c.Status = status
	}
	if w.LastMessage != nil {
		msg := w.LastMessage.toMessage()
		c.LastMessage = &msg
	}
	return c, nil
}
