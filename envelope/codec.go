////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package envelope defines the opaque wire format message payloads travel
// in. The codec boundary is the substitution point for real cryptography:
// every component above it handles envelopes as tagged blobs and never
// inspects their contents.
package envelope

// Placeholder is returned by Decode in place of any payload that cannot be
// opened. Rendering must never fail on corrupt history, so decoding is total
// and the failure mode is a visible marker instead of an error.
const Placeholder = "[unable to decrypt message]"

// Codec converts message plaintext to and from the opaque envelope format.
//
// Decode is total: malformed input yields Placeholder, never an error or a
// panic. Implementations must guarantee Decode(Encode(p)) == p for all p.
type Codec interface {
	// Encode seals plaintext into an envelope.
	Encode(plaintext []byte) []byte

	// Decode opens an envelope. On malformed input it returns Placeholder.
	Decode(blob []byte) []byte
}
