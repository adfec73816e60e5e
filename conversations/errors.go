////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import "github.com/pkg/errors"

var (
	// ErrConversationNotFound is returned when the referenced
	// conversation does not exist locally. Surfaced, never retried.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidTransition is returned for lifecycle operations applied
	// in the wrong state, such as accepting a conversation that is not
	// RequestPending. The operation is a no-op; the error is diagnostic.
	ErrInvalidTransition = errors.New("invalid conversation state transition")

	// ErrAdmissionDenied is returned when admission control refuses a
	// contact outright and no collateral path is offered. No conversation
	// is created.
	ErrAdmissionDenied = errors.New("admission denied")

	// ErrNotGroup is returned when a group-only operation, such as
	// leaving, is applied to a direct conversation.
	ErrNotGroup = errors.New("not a group conversation")

	// ErrSelfConversation is returned when an identity attempts to open a
	// conversation with itself.
	ErrSelfConversation = errors.New("cannot converse with self")
)
