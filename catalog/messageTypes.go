////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package catalog

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// MessageType is the kind tag carried on every message.
type MessageType uint32

const (
	// NoType - Used as a wildcard for listeners to listen to all existing
	// types. Think of it as "No type in particular"
	NoType MessageType = 0

	// Text - A user-authored chat message.
	Text MessageType = 1

	// System - A message generated by the system itself, such as the
	// welcome message seeded into a community channel on join.
	System MessageType = 2

	// Image - A message whose payload references image content. The
	// payload is opaque to everything below the rendering layer.
	Image MessageType = 3
)

// String returns the wire name of the MessageType. This function adheres to
// the fmt.Stringer interface.
func (mt MessageType) String() string {
	switch mt {
	case NoType:
		return "noType"
	case Text:
		return "text"
	case System:
		return "system"
	case Image:
		return "image"
	default:
		return "unknown"
	}
}

// ParseMessageType returns the MessageType for the given wire name. Unknown
// names return an error so corrupt remote records are caught at the parse
// boundary rather than propagated.
func ParseMessageType(s string) (MessageType, error) {
	switch s {
	case "noType":
		return NoType, nil
	case "text":
		return Text, nil
	case "system":
		return System, nil
	case "image":
		return Image, nil
	default:
		return NoType, errors.Errorf("unknown message type %q", s)
	}
}

// MarshalJSON encodes the MessageType as its wire name.
func (mt MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(mt.String())
}

// UnmarshalJSON decodes the MessageType from its wire name.
func (mt *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*mt = parsed
	return nil
}
