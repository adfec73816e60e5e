////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable provides lifecycle control for long-running goroutines
// such as the reconciliation runner. A goroutine that takes a Single must
// select on Quit and call ToStopped when it exits.
package stoppable

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Single controls a single goroutine through a quit channel.
type Single struct {
	name   string
	quit   chan struct{}
	status Status
	once   sync.Once
}

// NewSingle returns a new Single in the Running state.
func NewSingle(name string) *Single {
	return &Single{
		name:   name,
		quit:   make(chan struct{}, 1),
		status: Running,
	}
}

// Name returns the name given to the Single on construction.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the current status of the Single.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32((*uint32)(&s.status)))
}

// IsRunning returns true if the Single is marked as running.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// IsStopped returns true if the Single is marked as stopped.
func (s *Single) IsStopped() bool {
	return s.GetStatus() == Stopped
}

// Quit returns the channel the controlled goroutine must select on to learn
// that it should exit.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

// ToStopped marks the Single as stopped. It must only be called by the
// controlled goroutine, after it has received on Quit. Panics if the Single
// is not in the Stopping state; that indicates two goroutines are being run
// off one Single.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		(*uint32)(&s.status), uint32(Stopping), uint32(Stopped)) {
		jww.FATAL.Panicf("Failed to set the status of stoppable %q to "+
			"stopped when status is %s instead of %s.",
			s.name, s.GetStatus(), Stopping)
	}
}

// Close signals the controlled goroutine to quit. It is safe to call more
// than once; only the first call sends on the quit channel. Returns an error
// if the Single was not running.
func (s *Single) Close() error {
	var err error

	s.once.Do(func() {
		if !atomic.CompareAndSwapUint32(
			(*uint32)(&s.status), uint32(Running), uint32(Stopping)) {
			err = errors.Errorf("failed to stop stoppable %q: status is "+
				"%s, not %s", s.name, s.GetStatus(), Running)
			return
		}

		jww.TRACE.Printf("Sending quit signal to stoppable %q.", s.name)
		s.quit <- struct{}{}
	})

	return err
}
