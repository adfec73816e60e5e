////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"os"
	"testing"
)

// Tests the filestore lifecycle: New persists the identity, Load brings it
// back, and a second New on the same directory is refused.
func TestSession_NewLoad(t *testing.T) {
	baseDir := t.TempDir() + "/session"
	defer func() {
		if err := os.RemoveAll(baseDir); err != nil {
			t.Errorf("Failed to clean up: %+v", err)
		}
	}()

	s, err := New(baseDir, "password", User{Address: "0xme"})
	if err != nil {
		t.Fatalf("New failed: %+v", err)
	}
	if s.Conversations() == nil || s.Policies() == nil {
		t.Error("Sub-stores not opened.")
	}

	if err = s.SetDisplayName("alice"); err != nil {
		t.Fatalf("SetDisplayName failed: %+v", err)
	}

	loaded, err := Load(baseDir, "password")
	if err != nil {
		t.Fatalf("Load failed: %+v", err)
	}

	u := loaded.GetUser()
	if u.Address != "0xme" || u.DisplayName != "alice" {
		t.Errorf("Unexpected user after reload: %+v", u)
	}

	if _, err = New(baseDir, "password", User{Address: "0xother"}); err == nil {
		t.Error("Second New on an occupied directory succeeded.")
	}
}

// Tests that a session refuses an empty identity address.
func TestSession_EmptyAddress(t *testing.T) {
	if _, err := New(t.TempDir()+"/s", "password", User{}); err == nil {
		t.Error("New accepted an empty address.")
	}
}

// Tests the in-memory testing session.
func TestInitTestingSession(t *testing.T) {
	s := InitTestingSession(t)
	if s.GetUser().Address != "0xtest" {
		t.Errorf("Unexpected test user: %+v", s.GetUser())
	}
}
