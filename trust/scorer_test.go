////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package trust

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"

	"gitlab.com/intumsg/client/oracle"
)

// fakeOracle serves fixed magnitudes and can be made to fail.
type fakeOracle struct {
	magnitudes map[string]uint64
	down       bool
}

func (f *fakeOracle) Lookup(_ context.Context, id string) (*oracle.Identity, error) {
	if f.down {
		return nil, errors.New("oracle unreachable")
	}
	ident := oracle.Anonymous(id)
	ident.Magnitude = f.magnitudes[id]
	return ident, nil
}

func (f *fakeOracle) Search(context.Context, string) ([]oracle.Identity, error) {
	return nil, nil
}
func (f *fakeOracle) DiscoverIdentities(context.Context) ([]oracle.Identity, error) {
	return nil, nil
}
func (f *fakeOracle) DiscoverCommunities(context.Context) ([]oracle.Identity, error) {
	return nil, nil
}

// Tests that scores stay within [0, MaxScore] across the magnitude range,
// including values that would overflow a naive sum.
func TestScorer_Score_Bounds(t *testing.T) {
	o := &fakeOracle{magnitudes: map[string]uint64{
		"zero":  0,
		"small": 5,
		"edge":  88,
		"cap":   89,
		"huge":  math.MaxUint64,
	}}
	s := NewScorer(o)

	expected := map[string]int{
		"zero":  10,
		"small": 15,
		"edge":  98,
		"cap":   99,
		"huge":  99,
	}

	for id, want := range expected {
		got := s.Score(context.Background(), id)
		if got != want {
			t.Errorf("Score(%q): expected %d, received %d", id, want, got)
		}
		if got < 0 || got > MaxScore {
			t.Errorf("Score(%q) out of bounds: %d", id, got)
		}
	}
}

// Tests that an unreachable oracle yields the fixed default instead of an
// error or a zero.
func TestScorer_Score_OracleDown(t *testing.T) {
	s := NewScorer(&fakeOracle{down: true})

	if got := s.Score(context.Background(), "0xabc"); got != defaultScore {
		t.Errorf("Expected default score %d, received %d", defaultScore, got)
	}
}

// Tests that Attest raises the score monotonically and saturates at the
// ceiling, and that overrides never lower an oracle-derived score.
func TestScorer_Attest(t *testing.T) {
	o := &fakeOracle{magnitudes: map[string]uint64{"whale": 80}}
	s := NewScorer(o)

	// Repeated attestation converges to the ceiling: 10 -> 25 -> ... -> 99.
	prev := s.Score(context.Background(), "newcomer")
	for i := 0; i < 8; i++ {
		s.Attest("newcomer")
		got := s.Score(context.Background(), "newcomer")
		if got < prev {
			t.Errorf("Attest lowered score from %d to %d", prev, got)
		}
		prev = got
	}
	if prev != MaxScore {
		t.Errorf("Expected converged score %d, received %d", MaxScore, prev)
	}

	// An override below the oracle-derived score must not win. The whale
	// scores 90 from the oracle; a single attestation override is 25.
	s.Attest("whale")
	if got := s.Score(context.Background(), "whale"); got != 90 {
		t.Errorf("Override lowered oracle-derived score: received %d", got)
	}
}

// Tests that each attestation below the ceiling has additional effect; the
// operation is not idempotent in side effect count.
func TestScorer_Attest_NotIdempotent(t *testing.T) {
	s := NewScorer(&fakeOracle{})

	first := s.Attest("0xt")
	second := s.Attest("0xt")

	if first != defaultScore+attestBonus {
		t.Errorf("Unexpected first override: %d", first)
	}
	if second != first+attestBonus {
		t.Errorf("Second attest had no effect below the ceiling: %d", second)
	}
}
