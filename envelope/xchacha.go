////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package envelope

import (
	"crypto/rand"
	"io"

	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/crypto/chacha20poly1305"
)

// XChaCha is an authenticated-encryption codec over XChaCha20-Poly1305. It
// demonstrates that a real cipher slots in behind the Codec interface without
// any caller changing: the envelope is nonce || ciphertext and remains an
// opaque blob to everything above the codec.
type XChaCha struct {
	key [chacha20poly1305.KeySize]byte
	rng io.Reader
}

// NewXChaCha returns an XChaCha codec using the given 256-bit key. Key
// distribution is out of scope for the codec; the caller owns it.
func NewXChaCha(key [chacha20poly1305.KeySize]byte) *XChaCha {
	return &XChaCha{key: key, rng: rand.Reader}
}

// Encode seals the plaintext under a fresh random nonce.
func (x *XChaCha) Encode(plaintext []byte) []byte {
	aead, err := chacha20poly1305.NewX(x.key[:])
	if err != nil {
		// NewX only fails on a bad key length, which the array type
		// makes impossible.
		jww.FATAL.Panicf("Failed to construct AEAD: %+v", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX,
		chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err = io.ReadFull(x.rng, nonce); err != nil {
		jww.FATAL.Panicf("Failed to generate nonce: %+v", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil)
}

// Decode opens a nonce || ciphertext envelope. Truncated blobs, forged tags,
// and payloads sealed under another key all yield Placeholder.
func (x *XChaCha) Decode(blob []byte) []byte {
	aead, err := chacha20poly1305.NewX(x.key[:])
	if err != nil {
		jww.FATAL.Panicf("Failed to construct AEAD: %+v", err)
	}

	if len(blob) < chacha20poly1305.NonceSizeX {
		return []byte(Placeholder)
	}

	nonce, ciphertext := blob[:chacha20poly1305.NonceSizeX],
		blob[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return []byte(Placeholder)
	}
	return plaintext
}
