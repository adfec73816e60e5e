////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/thedevsaddam/gojsonq"
	"go.uber.org/ratelimit"
)

const oracleLogHeader = "ORACLE"

// DefaultEndpoint is the production trust-graph GraphQL endpoint.
const DefaultEndpoint = "https://mainnet.intuition.sh/v1/graphql"

// queriesPerSecond paces outbound graph queries. Lookup fans out into up to
// three queries, so an unpaced burst of profile fetches can trip the graph's
// request limits.
const queriesPerSecond = 5

// Client queries the reputation graph over its GraphQL endpoint and adheres
// to the Oracle interface.
type Client struct {
	endpoint string
	hc       *http.Client
	rl       ratelimit.Limiter
}

// NewClient returns a graph client for the given endpoint. An empty endpoint
// selects DefaultEndpoint. Request deadlines come from the caller's context.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		hc:       &http.Client{},
		rl:       ratelimit.New(queriesPerSecond),
	}
}

// Lookup returns the snapshot for a single identity. An unknown identity, or
// an unreachable graph, resolves to the anonymous snapshot; trust scoring is
// total and must never block on the oracle.
func (c *Client) Lookup(ctx context.Context, id string) (*Identity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIdentityNotFound
	}

	ident := Anonymous(id)

	body, err := c.query(ctx, identityByAddressQuery,
		map[string]interface{}{"address": id})
	if err != nil {
		jww.WARN.Printf("[%s] Identity query for %q failed, returning "+
			"anonymous snapshot: %+v", oracleLogHeader, id, err)
		return ident, nil
	}

	atoms := listAt(body, "data.atoms")
	if len(atoms) == 0 {
		return ident, nil
	}

	if label := findString(body, "data.atoms.[0].label"); label != "" {
		ident.DisplayName = label
	}
	if image := findString(body, "data.atoms.[0].image"); image != "" {
		ident.AvatarRef = image
	}
	ident.Magnitude = toMagnitude(gojsonq.New().FromString(body).
		Find("data.atoms.[0].term.vaults.[0].total_shares"))

	ident.Communities = c.positions(ctx, id)
	ident.Claims = c.claims(ctx, id)

	return ident, nil
}

// Search returns identities matching the pattern by label or id,
// case-insensitively, bounded to the search limit.
func (c *Client) Search(ctx context.Context, pattern string) ([]Identity, error) {
	body, err := c.query(ctx, searchIdentitiesQuery,
		map[string]interface{}{"pattern": "%" + pattern + "%"})
	if err != nil {
		return nil, errors.WithMessage(err, "identity search failed")
	}
	return parseAtoms(body, false), nil
}

// DiscoverIdentities returns the most-vouched person identities.
func (c *Client) DiscoverIdentities(ctx context.Context) ([]Identity, error) {
	body, err := c.query(ctx, discoverIdentitiesQuery, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "identity discovery failed")
	}
	return parseAtoms(body, false), nil
}

// DiscoverCommunities returns the most-vouched community identities. Their
// IDs are graph atom ids rather than wallet addresses.
func (c *Client) DiscoverCommunities(ctx context.Context) ([]Identity, error) {
	body, err := c.query(ctx, discoverCommunitiesQuery, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "community discovery failed")
	}
	return parseAtoms(body, true), nil
}

// positions returns the community labels the identity holds positions in.
// Failures degrade to no communities.
func (c *Client) positions(ctx context.Context, id string) []string {
	body, err := c.query(ctx, positionsQuery,
		map[string]interface{}{"address": id})
	if err != nil {
		jww.WARN.Printf("[%s] Positions query for %q failed: %+v",
			oracleLogHeader, id, err)
		return nil
	}

	var labels []string
	for _, p := range listAt(body, "data.positions") {
		if label, ok := digString(p, "vault", "atom", "label"); ok {
			labels = append(labels, label)
		}
	}
	return labels
}

// claims returns the identity's reputation labels. A claim whose predicate
// is a type-of relation ("is a", "is", "type") collapses to its object;
// anything else renders as "predicate object".
func (c *Client) claims(ctx context.Context, id string) []string {
	body, err := c.query(ctx, claimsQuery,
		map[string]interface{}{"address": id})
	if err != nil {
		jww.WARN.Printf("[%s] Claims query for %q failed: %+v",
			oracleLogHeader, id, err)
		return nil
	}

	var labels []string
	for _, t := range listAt(body, "data.triples") {
		pred, _ := digString(t, "predicate", "label")
		obj, _ := digString(t, "object", "label")

		var label string
		switch strings.ToLower(pred) {
		case "is a", "is", "type":
			label = obj
		default:
			label = strings.TrimSpace(pred + " " + obj)
		}
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// query executes one paced GraphQL request and returns the raw response
// body. GraphQL-level errors are treated the same as transport errors.
func (c *Client) query(ctx context.Context, query string,
	variables map[string]interface{}) (string, error) {

	c.rl.Take()

	reqBody, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal graph query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader(reqBody))
	if err != nil {
		return "", errors.Wrap(err, "failed to build graph request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "graph request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("graph returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read graph response")
	}

	body := string(raw)
	if gqlErrs := gojsonq.New().FromString(body).Find("errors"); gqlErrs != nil {
		return "", errors.Errorf("graph query error: %v", gqlErrs)
	}

	return body, nil
}

// parseAtoms converts a response's atom list into identity snapshots. When
// atomID is set the graph atom id is used as the identity id (communities);
// otherwise the wallet id is preferred with the atom id as fallback.
func parseAtoms(body string, atomID bool) []Identity {
	var idents []Identity
	for _, a := range listAt(body, "data.atoms") {
		wallet, _ := digString(a, "wallet_id")
		graphID, _ := digString(a, "id")

		id := wallet
		if atomID || id == "" {
			id = graphID
		}
		if id == "" {
			continue
		}

		ident := *Anonymous(id)
		if label, ok := digString(a, "label"); ok && label != "" {
			ident.DisplayName = label
		}
		if image, ok := digString(a, "image"); ok && image != "" {
			ident.AvatarRef = image
		}
		if kind, ok := digString(a, "type"); ok {
			if kind == "person" {
				ident.Claims = []string{"Person"}
			} else {
				ident.Claims = []string{"Community"}
			}
		}

		if vaults, ok := dig(a, "term", "vaults").([]interface{}); ok &&
			len(vaults) > 0 {
			if shares := dig(vaults[0], "total_shares"); shares != nil {
				ident.Magnitude = toMagnitude(shares)
			}
		}

		idents = append(idents, ident)
	}
	return idents
}

// listAt extracts a JSON array at a dotted path, or nil.
func listAt(body, path string) []interface{} {
	v := gojsonq.New().FromString(body).From(path).Get()
	list, _ := v.([]interface{})
	return list
}

// findString extracts a string at a dotted path, or "".
func findString(body, path string) string {
	s, _ := gojsonq.New().FromString(body).Find(path).(string)
	return s
}

// dig walks nested JSON maps by key, returning nil when any step is absent.
func dig(v interface{}, keys ...string) interface{} {
	for _, k := range keys {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// digString is dig for string leaves.
func digString(v interface{}, keys ...string) (string, bool) {
	s, ok := dig(v, keys...).(string)
	return s, ok
}

// toMagnitude normalizes the graph's numeric encodings (JSON numbers or
// decimal strings) into the raw magnitude signal. Unparseable values are
// zero magnitude.
func toMagnitude(v interface{}) uint64 {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case string:
		parsed, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	case json.Number:
		parsed, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
