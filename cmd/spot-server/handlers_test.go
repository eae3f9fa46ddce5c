package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/behrlich/spot-solver/pkg/engine"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/solver"
	"github.com/behrlich/spot-solver/pkg/store"
)

func testServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	settings := engine.SettingsFunc(func(notation.Street) solver.Config {
		cfg := solver.DefaultConfig()
		cfg.Iterations = 50
		cfg.Workers = 2
		cfg.CheckpointEvery = 0
		return cfg
	})
	ranges := engine.StaticRanges{
		ByPosition: map[notation.Position]string{
			notation.SB: "AKs,QQ",
			notation.BB: "99,QJs",
		},
	}
	eng := engine.New(store.NewMemoryStore(), ranges, settings)

	pf := solver.DefaultPushFoldConfig()
	pf.Iterations = 200
	pf.Samples = 20
	pf.Workers = 2
	ts := httptest.NewServer(Router(eng, pf))
	t.Cleanup(ts.Close)
	return ts, eng
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createSpot(t *testing.T, ts *httptest.Server, body string) (int, spotResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/spots", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/spots: %v", err)
	}
	var out spotResponse
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return resp.StatusCode, out
	}
	decode(t, resp, &out)
	return resp.StatusCode, out
}

func getStrategy(t *testing.T, ts *httptest.Server, key string, params url.Values) *http.Response {
	t.Helper()
	u := ts.URL + "/api/spots/" + key + "/strategy"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	return resp
}

const riverBody = `{"board":"Kh9s4c7d2s","positions":["BB","SB"],"pot_type":"SRP"}`

func TestHealth(t *testing.T) {
	ts, _ := testServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type %q", ct)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["ok"] != true {
		t.Errorf("health body %v", body)
	}
}

func TestCreateSpot(t *testing.T) {
	ts, eng := testServer(t)

	code, first := createSpot(t, ts, riverBody)
	if code != http.StatusOK {
		t.Fatalf("status %d, want 200", code)
	}
	if first.Street != "river" || first.Iterations != 50 {
		t.Errorf("got street %q iterations %d", first.Street, first.Iterations)
	}
	if !strings.HasPrefix(first.Key, "river_") {
		t.Errorf("key %q", first.Key)
	}
	if !strings.HasPrefix(first.SolutionKey, first.Key+"_r") {
		t.Errorf("solution key %q does not extend %q", first.SolutionKey, first.Key)
	}

	// A second request is served from the store
	_, second := createSpot(t, ts, riverBody)
	if second.Key != first.Key {
		t.Errorf("keys differ: %q vs %q", first.Key, second.Key)
	}
	if eng.Solves() != 1 {
		t.Errorf("ran %d solves, want 1", eng.Solves())
	}
}

func TestCreateSpot_BadRequest(t *testing.T) {
	ts, _ := testServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"bad board", `{"board":"Kh9s4c7dXx","positions":["BB","SB"]}`},
		{"short board", `{"board":"Kh9s","positions":["BB","SB"]}`},
		{"one position", `{"board":"Kh9s4c7d2s","positions":["BB"]}`},
		{"same position", `{"board":"Kh9s4c7d2s","positions":["BB","BB"]}`},
		{"bad pot type", `{"board":"Kh9s4c7d2s","positions":["BB","SB"],"pot_type":"5BP"}`},
		{"negative stack", `{"board":"Kh9s4c7d2s","positions":["BB","SB"],"stack":-5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := createSpot(t, ts, tt.body); code != http.StatusBadRequest {
				t.Errorf("status %d, want 400", code)
			}
		})
	}
}

func TestStrategy(t *testing.T) {
	ts, _ := testServer(t)
	_, sp := createSpot(t, ts, riverBody)

	resp := getStrategy(t, ts, sp.Key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var root strategyResponse
	decode(t, resp, &root)
	if got := strings.Join(root.Actions, " "); got != "check bet_33 bet_75 allin" {
		t.Errorf("root actions %q", got)
	}
	sum := 0.0
	for _, f := range root.Frequencies {
		sum += f
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("frequencies sum to %.4f", sum)
	}

	resp = getStrategy(t, ts, sp.Key, url.Values{"path": {"x"}, "hand": {"9h9d"}, "hands": {"1"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var ip strategyResponse
	decode(t, resp, &ip)
	if ip.Player != 1 || ip.Hand != "9h9d" || len(ip.Row) != len(ip.Actions) {
		t.Errorf("got player %d hand %q row %v actions %v", ip.Player, ip.Hand, ip.Row, ip.Actions)
	}
	if len(ip.Hands) == 0 {
		t.Error("hands=1 returned no per-combo rows")
	}
}

func TestStrategy_Errors(t *testing.T) {
	ts, _ := testServer(t)
	_, sp := createSpot(t, ts, riverBody)

	tests := []struct {
		name   string
		key    string
		params url.Values
		want   int
	}{
		{"bad key", "river_nonsense", nil, http.StatusBadRequest},
		{"bad action", sp.Key, url.Values{"path": {"x,zz"}}, http.StatusBadRequest},
		{"missing edge", sp.Key, url.Values{"path": {"b999"}}, http.StatusBadRequest},
		{"no decision", sp.Key, url.Values{"path": {"x,x"}}, http.StatusUnprocessableEntity},
		{"hand on board", sp.Key, url.Values{"hand": {"KhQc"}}, http.StatusBadRequest},
		{"hand outside range", sp.Key, url.Values{"hand": {"8h8d"}}, http.StatusBadRequest},
		{"bad hand", sp.Key, url.Values{"hand": {"QQ"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := getStrategy(t, ts, tt.key, tt.params)
			var body errorResponse
			decode(t, resp, &body)
			if resp.StatusCode != tt.want {
				t.Errorf("status %d, want %d (%s)", resp.StatusCode, tt.want, body.Error)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestStrategy_SolutionKey(t *testing.T) {
	ts, _ := testServer(t)
	_, sp := createSpot(t, ts, riverBody)

	resp := getStrategy(t, ts, sp.SolutionKey, nil)
	var got strategyResponse
	decode(t, resp, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	if got.Key != sp.SolutionKey {
		t.Errorf("answer key %q, want %q", got.Key, sp.SolutionKey)
	}

	// A tag for ranges this server does not use
	resp = getStrategy(t, ts, sp.Key+"_r0", nil)
	var body errorResponse
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d, want 404 (%s)", resp.StatusCode, body.Error)
	}
}

func TestStrategy_PathErrorDetails(t *testing.T) {
	ts, _ := testServer(t)
	_, sp := createSpot(t, ts, riverBody)

	resp := getStrategy(t, ts, sp.Key, url.Values{"path": {"b999"}})
	var body errorResponse
	decode(t, resp, &body)
	if body.Step == nil || *body.Step != 0 {
		t.Errorf("step %v, want 0", body.Step)
	}
	if got := strings.Join(body.Available, " "); got != "check bet_33 bet_75 allin" {
		t.Errorf("available %q", got)
	}
}

func TestPushFold(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a preflop equity table")
	}
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/api/pushfold?stack=8")
	if err != nil {
		t.Fatalf("GET /api/pushfold: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var body pushFoldResponse
	decode(t, resp, &body)
	if body.Stack != 8 || len(body.Push) != 169 {
		t.Errorf("stack %v with %d classes", body.Stack, len(body.Push))
	}
	if body.Push["AA"] < 0.8 {
		t.Errorf("AA pushes %.3f", body.Push["AA"])
	}

	resp, err = http.Get(ts.URL + "/api/pushfold?stack=lots")
	if err != nil {
		t.Fatalf("GET /api/pushfold: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, want 400", resp.StatusCode)
	}
}
