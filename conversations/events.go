////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"sync"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/catalog"
)

// AnySender is the sender wildcard for listener registration.
const AnySender = ""

// Listener is the interface new-message consumers adhere to.
type Listener interface {
	// Hear is called with every matching message, in its own goroutine.
	// Messages are only ever spoken after they are durably appended to
	// the local log.
	Hear(msg Message)

	// Name returns a name used for debug printing.
	Name() string
}

// ListenerFunc adapts a function to the Listener interface via RegisterFunc.
// It will always be called in its own goroutine and may be called multiple
// times simultaneously.
type ListenerFunc func(msg Message)

// ListenerID is returned on registration and identifies the listener for
// Unregister.
type ListenerID struct {
	senderID string
	kind     catalog.MessageType
	entry    *listenerEntry
}

// Name returns the registered listener's name.
func (lid ListenerID) Name() string {
	return lid.entry.listener.Name()
}

// listenerEntry gives each registration a unique address so the same
// Listener value can be registered more than once.
type listenerEntry struct {
	listener Listener
}

// Switchboard fans new-message events out to registered listeners. It is
// owned by the Store and injected into consumers; there is no ambient global
// registry.
type Switchboard struct {
	bySender map[string]*set.Set
	byKind   map[catalog.MessageType]*set.Set
	mux      sync.RWMutex
}

// NewSwitchboard returns an empty Switchboard.
func NewSwitchboard() *Switchboard {
	return &Switchboard{
		bySender: map[string]*set.Set{AnySender: set.New()},
		byKind:   map[catalog.MessageType]*set.Set{catalog.NoType: set.New()},
	}
}

// RegisterListener registers a listener for messages from the given sender
// (AnySender for all) and of the given kind (catalog.NoType for all). If a
// message matches multiple listeners, all of them hear it.
func (sw *Switchboard) RegisterListener(senderID string,
	kind catalog.MessageType, newListener Listener) ListenerID {

	if newListener == nil {
		jww.FATAL.Panicf("cannot register nil listener")
	}

	entry := &listenerEntry{listener: newListener}

	sw.mux.Lock()
	defer sw.mux.Unlock()

	if sw.bySender[senderID] == nil {
		sw.bySender[senderID] = set.New()
	}
	sw.bySender[senderID].Insert(entry)

	if sw.byKind[kind] == nil {
		sw.byKind[kind] = set.New()
	}
	sw.byKind[kind].Insert(entry)

	return ListenerID{senderID: senderID, kind: kind, entry: entry}
}

// RegisterFunc registers a listener built around the passed function.
func (sw *Switchboard) RegisterFunc(name, senderID string,
	kind catalog.MessageType, f ListenerFunc) ListenerID {

	if f == nil {
		jww.FATAL.Panicf("cannot register function listener %q with nil "+
			"func", name)
	}
	return sw.RegisterListener(senderID, kind, &funcListener{f: f, name: name})
}

// RegisterChannel registers a listener built around the passed channel. If
// the channel is full when a message arrives, the message is dropped for
// that listener.
func (sw *Switchboard) RegisterChannel(name, senderID string,
	kind catalog.MessageType, ch chan Message) ListenerID {

	if ch == nil {
		jww.FATAL.Panicf("cannot register channel listener %q with nil "+
			"channel", name)
	}
	return sw.RegisterListener(senderID, kind, &chanListener{ch: ch, name: name})
}

// Unregister removes the listener registration.
func (sw *Switchboard) Unregister(lid ListenerID) {
	sw.mux.Lock()
	defer sw.mux.Unlock()

	if s := sw.bySender[lid.senderID]; s != nil {
		s.Remove(lid.entry)
	}
	if s := sw.byKind[lid.kind]; s != nil {
		s.Remove(lid.entry)
	}
}

// Speak delivers a message to every matching listener, each in its own
// goroutine. Callers must only speak messages that are already durable.
func (sw *Switchboard) Speak(msg Message) {
	sw.mux.RLock()
	matches := sw.matchListeners(msg)
	sw.mux.RUnlock()

	if matches.Len() == 0 {
		jww.TRACE.Printf("No listeners matched message %s from %q",
			msg.ID, msg.SenderID)
		return
	}

	matches.Do(func(item interface{}) {
		entry := item.(*listenerEntry)
		go entry.listener.Hear(msg)
	})
}

// matchListeners returns listeners whose sender and kind criteria both
// match, with the wildcard entries folded in: the union over senders
// intersected with the union over kinds.
func (sw *Switchboard) matchListeners(msg Message) *set.Set {
	senders := sw.bySender[AnySender]
	if s := sw.bySender[msg.SenderID]; s != nil && msg.SenderID != AnySender {
		senders = senders.Union(s)
	}

	kinds := sw.byKind[catalog.NoType]
	if s := sw.byKind[msg.Kind]; s != nil && msg.Kind != catalog.NoType {
		kinds = kinds.Union(s)
	}

	return senders.Intersection(kinds)
}

/* internal listener implementations */

type funcListener struct {
	f    ListenerFunc
	name string
}

func (fl *funcListener) Hear(msg Message) {
	fl.f(msg)
}

func (fl *funcListener) Name() string {
	return fl.name
}

type chanListener struct {
	ch   chan Message
	name string
}

func (cl *chanListener) Hear(msg Message) {
	select {
	case cl.ch <- msg:
	default:
		jww.WARN.Printf("Switchboard failed to speak on channel "+
			"listener %q", cl.name)
	}
}

func (cl *chanListener) Name() string {
	return cl.name
}
