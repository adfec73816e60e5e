////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"testing"
	"time"
)

// Tests that NewSingle returns a Single with the given name in the Running
// state.
func TestNewSingle(t *testing.T) {
	name := "testSingle"
	s := NewSingle(name)

	if s.Name() != name {
		t.Errorf("Unexpected name.\nexpected: %s\nreceived: %s",
			name, s.Name())
	}

	if !s.IsRunning() {
		t.Errorf("New Single is not running: %s", s.GetStatus())
	}
}

// Tests that Close signals the quit channel and that the goroutine side can
// confirm the stop with ToStopped.
func TestSingle_Close(t *testing.T) {
	s := NewSingle("testSingle")

	done := make(chan struct{})
	go func() {
		<-s.Quit()
		s.ToStopped()
		close(done)
	}()

	if err := s.Close(); err != nil {
		t.Errorf("Close returned an error: %+v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for the goroutine to stop.")
	}

	if !s.IsStopped() {
		t.Errorf("Single not stopped after ToStopped: %s", s.GetStatus())
	}
}

// Tests that a second Close is a no-op and does not error or send a second
// quit signal.
func TestSingle_Close_Twice(t *testing.T) {
	s := NewSingle("testSingle")

	go func() {
		<-s.Quit()
		s.ToStopped()
	}()

	if err := s.Close(); err != nil {
		t.Errorf("First Close returned an error: %+v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Second Close returned an error: %+v", err)
	}

	select {
	case <-s.Quit():
		t.Error("Received an unexpected second quit signal.")
	case <-time.After(50 * time.Millisecond):
	}
}
