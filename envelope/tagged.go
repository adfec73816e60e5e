////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package envelope

import (
	"bytes"
	"encoding/base64"
)

const (
	taggedPrefix = "ENC["
	taggedSuffix = "]"
)

// Tagged is the reference codec: base64 between a fixed tag pair. It is a
// reversible transform, NOT encryption, and exists so the rest of the system
// can be built and tested against the envelope contract. It must be replaced
// by an authenticated-encryption codec such as XChaCha before any
// confidentiality claim is made.
type Tagged struct{}

// NewTagged returns the reference tagged-blob codec.
func NewTagged() Tagged {
	return Tagged{}
}

// Encode wraps the plaintext as ENC[base64(plaintext)].
func (Tagged) Encode(plaintext []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(taggedPrefix) + base64.StdEncoding.EncodedLen(len(plaintext)) +
		len(taggedSuffix))
	buf.WriteString(taggedPrefix)
	buf.WriteString(base64.StdEncoding.EncodeToString(plaintext))
	buf.WriteString(taggedSuffix)
	return buf.Bytes()
}

// Decode unwraps an ENC[...] envelope. Blobs without the tag pass through
// verbatim so plaintext records from before the codec was introduced stay
// readable. A tagged blob whose body does not parse yields Placeholder.
func (Tagged) Decode(blob []byte) []byte {
	if !bytes.HasPrefix(blob, []byte(taggedPrefix)) ||
		!bytes.HasSuffix(blob, []byte(taggedSuffix)) {
		return blob
	}

	body := blob[len(taggedPrefix) : len(blob)-len(taggedSuffix)]
	plaintext, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return []byte(Placeholder)
	}
	return plaintext
}
