////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

// fakeGraph serves canned GraphQL responses keyed by operation name.
func fakeGraph(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Query string `json:"query"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("Failed to decode graph request: %+v", err)
			}

			for op, resp := range responses {
				if strings.Contains(req.Query, op) {
					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(resp))
					return
				}
			}
			_, _ = w.Write([]byte(`{"data":{}}`))
		}))
}

// Tests that Lookup assembles a full snapshot from the identity, positions,
// and claims queries, including the type-of claim collapse rule.
func TestClient_Lookup(t *testing.T) {
	srv := fakeGraph(t, map[string]string{
		"GetIdentityByAddress": `{"data":{"atoms":[{
			"id":"a1","label":"vitalik.eth","image":"ipfs://avatar",
			"wallet_id":"0xd8dA",
			"term":{"vaults":[{"total_shares":"42"}]}}]}}`,
		"GetUserPositions": `{"data":{"positions":[
			{"shares":"1","vault":{"atom":{"label":"Ethereum","type":"thing"}}},
			{"shares":"2","vault":{"atom":{"label":"Intuition","type":"thing"}}}]}}`,
		"GetUserClaims": `{"data":{"triples":[
			{"predicate":{"label":"is a"},"object":{"label":"Builder"}},
			{"predicate":{"label":"works on"},"object":{"label":"Protocol"}}]}}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	ident, err := c.Lookup(context.Background(), "0xd8dA")
	if err != nil {
		t.Fatalf("Lookup failed: %+v", err)
	}

	if ident.DisplayName != "vitalik.eth" {
		t.Errorf("Unexpected display name: %q", ident.DisplayName)
	}
	if ident.Magnitude != 42 {
		t.Errorf("Unexpected magnitude.\nexpected: %d\nreceived: %d",
			42, ident.Magnitude)
	}
	if !reflect.DeepEqual(ident.Communities, []string{"Ethereum", "Intuition"}) {
		t.Errorf("Unexpected communities: %v", ident.Communities)
	}
	if !reflect.DeepEqual(ident.Claims, []string{"Builder", "works on Protocol"}) {
		t.Errorf("Unexpected claims: %v", ident.Claims)
	}
}

// Tests that an identity unknown to the graph resolves to the anonymous
// snapshot rather than an error.
func TestClient_Lookup_Unknown(t *testing.T) {
	srv := fakeGraph(t, map[string]string{
		"GetIdentityByAddress": `{"data":{"atoms":[]}}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	ident, err := c.Lookup(context.Background(), "0xUnknown9999")
	if err != nil {
		t.Fatalf("Lookup failed: %+v", err)
	}

	if ident.DisplayName != "Anon 0xUnkn" {
		t.Errorf("Unexpected anonymous name: %q", ident.DisplayName)
	}
	if ident.Magnitude != 0 {
		t.Errorf("Anonymous snapshot has nonzero magnitude: %d",
			ident.Magnitude)
	}
}

// Tests that a blank id is a hard failure while an unreachable graph is not.
func TestClient_Lookup_Failures(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // nothing listens here

	if _, err := c.Lookup(context.Background(), "  "); err != ErrIdentityNotFound {
		t.Errorf("Expected ErrIdentityNotFound for blank id, received: %+v",
			err)
	}

	ident, err := c.Lookup(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Unreachable graph must not fail a lookup: %+v", err)
	}
	if ident.ID != "0xabc" || ident.Magnitude != 0 {
		t.Errorf("Expected anonymous fallback snapshot, received: %+v", ident)
	}
}

// Tests that Search parses the atom list, prefers wallet ids, and tags
// person/community claims.
func TestClient_Search(t *testing.T) {
	srv := fakeGraph(t, map[string]string{
		"SearchIdentities": `{"data":{"atoms":[
			{"id":"a1","label":"alice.eth","image":"img1","wallet_id":"0xa",
			 "type":"person","term":{"vaults":[{"total_shares":"7"}]}},
			{"id":"a2","label":"DAO","image":"img2","wallet_id":"",
			 "type":"organization","term":{"vaults":[{"total_shares":"3"}]}}]}}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.Search(context.Background(), "a")
	if err != nil {
		t.Fatalf("Search failed: %+v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Unexpected result count: %d", len(results))
	}
	if results[0].ID != "0xa" || results[0].Magnitude != 7 ||
		results[0].Claims[0] != "Person" {
		t.Errorf("Unexpected first result: %+v", results[0])
	}
	if results[1].ID != "a2" || results[1].Claims[0] != "Community" {
		t.Errorf("Unexpected second result: %+v", results[1])
	}
}

// Tests that GraphQL-level errors surface as query failures for the bounded
// discovery calls.
func TestClient_Discover_GraphError(t *testing.T) {
	srv := fakeGraph(t, map[string]string{
		"GetDiscoveryAtoms": `{"errors":[{"message":"rate limited"}]}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.DiscoverIdentities(context.Background()); err == nil {
		t.Error("Expected an error from a GraphQL error response.")
	}
}
