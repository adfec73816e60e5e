////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/intumsg/client/envelope"
	"gitlab.com/intumsg/client/gate"
	"gitlab.com/intumsg/client/storage/versioned"
)

// fakeRemote serves a fixed snapshot, optionally failing or blocking until
// the context expires.
type fakeRemote struct {
	snapshot []Conversation
	err      error
	block    bool
}

func (f *fakeRemote) Conversations(ctx context.Context) (
	[]Conversation, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

// Tests that a failed remote fetch leaves local state untouched.
func TestReconciler_RemoteFailure(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))
	local := &Conversation{
		ID:           "c1",
		Participants: []string{"0xme", "0xbob"},
		Status:       Active,
		UnreadCount:  3,
	}
	if err := store.Upsert(local); err != nil {
		t.Fatalf("Upsert failed: %+v", err)
	}

	r := NewReconciler(store, &fakeRemote{err: errors.New("504")}, 0)
	r.ReconcileOnce()

	got, _ := store.Get("c1")
	if !reflect.DeepEqual(got, local) {
		t.Errorf("Failed fetch modified local state."+
			"\nexpected: %+v\nreceived: %+v", local, got)
	}
}

// Tests that a remote source slower than the fetch deadline is abandoned
// without touching local state, within a bounded wall-clock wait.
func TestReconciler_RemoteTimeout(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))
	if err := store.Upsert(&Conversation{
		ID: "c1", Participants: []string{"0xme", "0xbob"},
	}); err != nil {
		t.Fatalf("Upsert failed: %+v", err)
	}

	r := NewReconciler(store, &fakeRemote{block: true}, 0)

	start := netTime.Now()
	r.ReconcileOnce()
	if elapsed := netTime.Since(start); elapsed > fetchDeadline+time.Second {
		t.Errorf("Fetch overran the deadline: %s", elapsed)
	}

	if list := store.List(); len(list) != 1 || list[0].ID != "c1" {
		t.Errorf("Timed-out fetch modified local state: %+v", list)
	}
}

// Tests adoption of an unseen remote conversation, including seeding its
// log with the last message.
func TestReconciler_Adoption(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))

	msg := Message{
		ID: "m1", SenderID: "0xbob", ReceiverID: "0xme",
		Content: []byte("hello"), Timestamp: netTime.Now().Round(0),
	}
	r := NewReconciler(store, &fakeRemote{snapshot: []Conversation{{
		ID:           "c1",
		Participants: []string{"0xme", "0xbob"},
		Status:       Active,
		LastMessage:  &msg,
		UnreadCount:  2,
	}}}, 0)
	r.ReconcileOnce()

	got, ok := store.Get("c1")
	if !ok {
		t.Fatal("Remote conversation was not adopted.")
	}
	if got.Status != Active || got.UnreadCount != 2 {
		t.Errorf("Unexpected adopted record: %+v", got)
	}

	log := store.Messages("c1")
	if len(log) != 1 || log[0].ID != "m1" {
		t.Errorf("Log not seeded from last message: %+v", log)
	}
}

// Tests that applying the same remote snapshot twice in succession yields
// the same local state, with no duplicated log entries.
func TestReconciler_Idempotence(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))

	msg := Message{
		ID: "m1", SenderID: "0xbob", ReceiverID: "0xme",
		Content: []byte("hello"), Timestamp: netTime.Now().Round(0),
	}
	r := NewReconciler(store, &fakeRemote{snapshot: []Conversation{{
		ID:           "c1",
		Participants: []string{"0xme", "0xbob"},
		Status:       Active,
		LastMessage:  &msg,
		UnreadCount:  1,
	}}}, 0)

	r.ReconcileOnce()
	first, _ := store.Get("c1")
	firstLog := store.Messages("c1")

	r.ReconcileOnce()
	second, _ := store.Get("c1")
	secondLog := store.Messages("c1")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Second pass changed the record."+
			"\nexpected: %+v\nreceived: %+v", first, second)
	}
	if !reflect.DeepEqual(firstLog, secondLog) {
		t.Errorf("Second pass changed the log."+
			"\nexpected: %+v\nreceived: %+v", firstLog, secondLog)
	}
}

// Tests that a stale remote record overwrites lifecycle fields but leaves
// the local unread count alone, while a strictly newer one adopts the
// remote count.
func TestReconciler_UnreadPreservation(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))

	now := netTime.Now().Round(0)
	localMsg := Message{
		ID: "m1", SenderID: "0xbob", ReceiverID: "0xme",
		Content: []byte("local"), Timestamp: now,
	}
	if err := store.Upsert(&Conversation{
		ID:           "c1",
		Participants: []string{"0xme", "0xbob"},
		Status:       RequestPending,
		LastMessage:  &localMsg,
		UnreadCount:  4,
	}); err != nil {
		t.Fatalf("Upsert failed: %+v", err)
	}

	// Same timestamp is not strictly newer: lifecycle fields follow the
	// remote, the unread badge does not.
	stale := Conversation{
		ID:           "c1",
		Participants: []string{"0xme", "0xbob"},
		Status:       Active,
		LastMessage:  &localMsg,
		UnreadCount:  0,
	}
	r := NewReconciler(store, &fakeRemote{
		snapshot: []Conversation{stale}}, 0)
	r.ReconcileOnce()

	got, _ := store.Get("c1")
	if got.Status != Active {
		t.Errorf("Remote status not applied: %s", got.Status)
	}
	if got.UnreadCount != 4 {
		t.Errorf("Stale remote reset the unread count to %d",
			got.UnreadCount)
	}

	newerMsg := Message{
		ID: "m2", SenderID: "0xbob", ReceiverID: "0xme",
		Content: []byte("remote"), Timestamp: now.Add(time.Minute),
	}
	fresh := stale
	fresh.LastMessage = &newerMsg
	fresh.UnreadCount = 7
	r = NewReconciler(store, &fakeRemote{
		snapshot: []Conversation{fresh}}, 0)
	r.ReconcileOnce()

	got, _ = store.Get("c1")
	if got.UnreadCount != 7 {
		t.Errorf("Newer remote unread count not adopted: %d",
			got.UnreadCount)
	}
	if got.LastMessage == nil || got.LastMessage.ID != "m2" {
		t.Errorf("Newer last message not adopted: %+v", got.LastMessage)
	}
	if log := store.Messages("c1"); len(log) != 1 || log[0].ID != "m2" {
		t.Errorf("Newer last message not appended to the log: %+v", log)
	}
}

// Tests that a remote record with an unknown id but a known pair merges
// into the local conversation, keeping the local id.
func TestReconciler_PairMatch(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))
	if err := store.Upsert(&Conversation{
		ID:           "local-id",
		Participants: []string{"0xme", "0xbob"},
		Status:       RequestPending,
	}); err != nil {
		t.Fatalf("Upsert failed: %+v", err)
	}

	r := NewReconciler(store, &fakeRemote{snapshot: []Conversation{{
		ID:           "server-id",
		Participants: []string{"0xbob", "0xme"},
		Status:       Active,
	}}}, 0)
	r.ReconcileOnce()

	if _, ok := store.Get("server-id"); ok {
		t.Error("Pair match duplicated the conversation under the " +
			"remote id.")
	}
	got, ok := store.Get("local-id")
	if !ok || got.Status != Active {
		t.Errorf("Remote state not merged onto the local record: %+v", got)
	}
}

// Tests the runner thread: it honors the stoppable and reconciles on the
// ticker.
func TestReconciler_Runner(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))
	remote := &fakeRemote{snapshot: []Conversation{{
		ID:           "c1",
		Participants: []string{"0xme", "0xbob"},
		Status:       Active,
	}}}

	r := NewReconciler(store, remote, 20*time.Millisecond)
	stop := r.Start()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := store.Get("c1"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Runner never reconciled.")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := stop.Close(); err != nil {
		t.Fatalf("Close failed: %+v", err)
	}

	deadline = time.After(2 * time.Second)
	for !stop.IsStopped() {
		select {
		case <-deadline:
			t.Fatal("Runner never stopped.")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// blockingGate parks inside the admission check until released, signalling
// entry so a test can interleave other work while the check is in flight.
type blockingGate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGate) Check(context.Context, string, string) (
	gate.Verdict, error) {
	g.entered <- struct{}{}
	<-g.release
	return gate.Verdict{Allowed: true}, nil
}

// Tests that adoption serializes with an in-flight conversation start on
// the same pair: after both complete, the pair holds exactly one live
// conversation.
func TestReconciler_Adoption_StartRace(t *testing.T) {
	store := NewStore(versioned.NewKV(ekv.MakeMemstore()))
	g := &blockingGate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManager("0xme", store, g, envelope.NewTagged())

	r := NewReconciler(store, &fakeRemote{snapshot: []Conversation{{
		ID:           "server-id",
		Participants: []string{"0xme", "0xbob"},
		Status:       Active,
	}}}, 0)

	started := make(chan error, 1)
	go func() {
		_, err := m.StartConversation(context.Background(), "0xbob")
		started <- err
	}()

	// The start now holds the pair lock inside its admission check.
	<-g.entered

	reconciled := make(chan struct{})
	go func() {
		r.ReconcileOnce()
		close(reconciled)
	}()

	// Let the reconciler reach the pair lock before the check resumes.
	time.Sleep(50 * time.Millisecond)
	close(g.release)

	if err := <-started; err != nil {
		t.Fatalf("StartConversation failed: %+v", err)
	}
	<-reconciled

	pair := PairKey("0xme", "0xbob")
	live := 0
	for _, c := range store.List() {
		if PairKey(c.Participants...) == pair &&
			(c.Status == Active || c.Status == RequestPending) {
			live++
		}
	}
	if live != 1 {
		t.Errorf("Expected 1 live conversation for the pair, received %d",
			live)
	}
}
