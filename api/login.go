////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/backend"
)

// loginMessageFormat is the exact message the wallet signs. The backend
// recovers the address from the signature over this text, so the format is
// part of the wire contract.
const loginMessageFormat = "Login to IntuMessenger. Nonce: %s"

// loginDeadline bounds the whole nonce/verify exchange. An unreachable
// backend degrades to an offline session instead of blocking login.
const loginDeadline = 2 * time.Second

// Login authenticates the session's identity against the backend. The flow
// is nonce, sign, verify; on success the bearer token is installed and the
// client is online. Any transport failure within the deadline falls back to
// an offline session and returns nil: local messaging must never be gated
// on backend availability. A rejected signature is a real error.
func (c *Client) Login(ctx context.Context, signer backend.Signer) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.online = false

	if c.backend == nil {
		jww.INFO.Printf("[%s] No backend configured, offline session",
			apiLogHeader)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, loginDeadline)
	defer cancel()

	address := c.session.GetUser().Address

	nonce, err := c.backend.Nonce(ctx, address)
	if err != nil {
		jww.WARN.Printf("[%s] Backend unreachable, continuing with "+
			"offline session: %+v", apiLogHeader, err)
		return nil
	}

	message := fmt.Sprintf(loginMessageFormat, nonce)
	signature, err := signer.Sign(message)
	if err != nil {
		return errors.WithMessage(err, "wallet refused login signature")
	}

	token, err := c.backend.Verify(ctx, address, signature, message)
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		return err
	case err != nil:
		jww.WARN.Printf("[%s] Login verification unreachable, continuing "+
			"with offline session: %+v", apiLogHeader, err)
		return nil
	}

	c.backend.Authorize(token)
	c.online = true
	jww.INFO.Printf("[%s] Logged in as %s", apiLogHeader, address)
	return nil
}
