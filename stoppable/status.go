////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package stoppable

// Status holds the current state of a Stoppable.
type Status uint32

const (
	// Running signifies the goroutine is active.
	Running Status = iota

	// Stopping signifies the goroutine has been signalled to quit but has
	// not yet confirmed that it exited.
	Stopping

	// Stopped signifies the goroutine has exited.
	Stopped
)

// String returns the Status in a human-readable format. This function adheres
// to the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
