package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/engine"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/query"
	"github.com/behrlich/spot-solver/pkg/solver"
	"github.com/behrlich/spot-solver/pkg/spot"
	"github.com/behrlich/spot-solver/pkg/store"
)

type server struct {
	eng      *engine.Engine
	pushFold solver.PushFoldConfig
}

// Router wires the query API
func Router(eng *engine.Engine, pf solver.PushFoldConfig) http.Handler {
	s := &server{eng: eng, pushFold: pf}
	r := chi.NewRouter()
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "solves": eng.Solves()})
	})
	r.Post("/api/spots", s.createSpot)
	r.Get("/api/spots/{key}/strategy", s.strategy)
	r.Get("/api/pushfold", s.pushfold)
	return r
}

type spotRequest struct {
	Board     string   `json:"board"`
	Positions []string `json:"positions"`
	PotType   string   `json:"pot_type"`
	Pot       float64  `json:"pot,omitempty"`
	Stack     float64  `json:"stack,omitempty"`
}

type spotResponse struct {
	Key            string  `json:"key"`
	SolutionKey    string  `json:"solution_key"`
	Street         string  `json:"street"`
	Iterations     int     `json:"iterations"`
	Exploitability float64 `json:"exploitability"`
	Warnings       int     `json:"warnings"`
}

// createSpot solves a spot (or loads it) and returns its key
func (s *server) createSpot(w http.ResponseWriter, r *http.Request) {
	var req spotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sp, err := req.spot()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sol, _, err := s.eng.SolveOrLoad(r.Context(), sp)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, spotResponse{
		Key:            sp.Key(),
		SolutionKey:    sol.Key,
		Street:         sol.Street.String(),
		Iterations:     sol.Iterations,
		Exploitability: sol.Exploitability,
		Warnings:       len(sol.Warnings),
	})
}

func (req spotRequest) spot() (spot.Spot, error) {
	board, err := cards.ParseCards(req.Board)
	if err != nil {
		return spot.Spot{}, err
	}
	if len(req.Positions) != 2 {
		return spot.Spot{}, errors.New("need exactly two positions")
	}
	var pos [2]notation.Position
	for i, p := range req.Positions {
		if pos[i], err = notation.ParsePosition(p); err != nil {
			return spot.Spot{}, err
		}
	}
	pt := notation.SRP
	if req.PotType != "" {
		if pt, err = notation.ParsePotType(req.PotType); err != nil {
			return spot.Spot{}, err
		}
	}
	sp, err := spot.New(board, pos[0], pos[1], pt)
	if err != nil {
		return spot.Spot{}, err
	}
	if req.Pot != 0 || req.Stack != 0 {
		pot, stack := sp.Pot, sp.Stack
		if req.Pot != 0 {
			pot = req.Pot
		}
		if req.Stack != 0 {
			stack = req.Stack
		}
		sp = sp.WithStakes(pot, stack)
	}
	return sp, sp.Validate()
}

type strategyResponse struct {
	Key         string               `json:"key"`
	Path        []string             `json:"path"`
	Level       int                  `json:"level"`
	NodeID      int32                `json:"node_id"`
	Street      string               `json:"street"`
	Player      int                  `json:"player"`
	Pot         float64              `json:"pot"`
	Invested    [2]float64           `json:"invested"`
	Actions     []string             `json:"actions"`
	Frequencies []float64            `json:"frequencies"`
	Hand        string               `json:"hand,omitempty"`
	Row         []float32            `json:"row,omitempty"`
	Hands       map[string][]float32 `json:"hands,omitempty"`
}

// strategy serves GET /api/spots/{key}/strategy?path=x,b33&hand=AcKc&runout=Qs2d.
// key is a spot key or a solution key; the latter must match the ranges
// the server solves with.
func (s *server) strategy(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	sp, err := spot.Parse(key)
	if err != nil {
		var serr error
		if sp, _, serr = spot.ParseSolutionKey(key); serr != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		want, err := s.eng.Key(sp)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if want != key {
			writeError(w, http.StatusNotFound, fmt.Errorf("solution %s was solved with other ranges", key))
			return
		}
	}
	q := r.URL.Query()
	req := engine.Request{Spot: sp}
	if raw := q.Get("path"); raw != "" {
		if req.Path, err = notation.ParseActionPath(raw); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if raw := q.Get("hand"); raw != "" {
		c, err := cards.ParseCombo(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Hand = &c
	}
	if raw := q.Get("runout"); raw != "" {
		if req.Runout, err = cards.ParseCards(raw); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	ans, err := s.eng.Query(r.Context(), req)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	st := ans.Strategy
	resp := strategyResponse{
		Key:         ans.Key,
		Path:        st.Path,
		Level:       st.Level,
		NodeID:      st.NodeID,
		Street:      st.Street.String(),
		Player:      st.Player,
		Pot:         st.Pot,
		Invested:    st.Invested,
		Actions:     st.Actions,
		Frequencies: st.Frequencies(),
		Row:         ans.Row,
	}
	if req.Hand != nil {
		resp.Hand = req.Hand.String()
	}
	if q.Get("hands") == "1" {
		// Report every combo in the caller's suits
		inv := ans.Suits.Inverse()
		resp.Hands = make(map[string][]float32)
		for _, c := range st.Hands() {
			if row, err := st.HandRow(c); err == nil {
				resp.Hands[inv.Combo(c).String()] = row
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type pushFoldResponse struct {
	Stack          float64            `json:"stack"`
	Iterations     int                `json:"iterations"`
	Exploitability float64            `json:"exploitability"`
	PushPct        float64            `json:"push_pct"`
	CallPct        float64            `json:"call_pct"`
	Push           map[string]float64 `json:"push"`
	Call           map[string]float64 `json:"call"`
}

// pushfold serves GET /api/pushfold?stack=10
func (s *server) pushfold(w http.ResponseWriter, r *http.Request) {
	cfg := s.pushFold
	if raw := r.URL.Query().Get("stack"); raw != "" {
		stack, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cfg.Stack = stack
	}
	res, err := s.eng.PushFold(r.Context(), cfg)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	resp := pushFoldResponse{
		Stack:          res.Stack,
		Iterations:     res.Iterations,
		Exploitability: res.Exploitability,
		PushPct:        res.PushPct(),
		CallPct:        res.CallPct(),
		Push:           make(map[string]float64, len(res.Classes)),
		Call:           make(map[string]float64, len(res.Classes)),
	}
	for i, c := range res.Classes {
		resp.Push[c.String()] = res.Push[i]
		resp.Call[c.String()] = res.Call[i]
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusOf maps engine errors onto HTTP statuses
func statusOf(err error) int {
	switch {
	case errors.Is(err, query.ErrMalformedActionPath), errors.Is(err, query.ErrHandUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, query.ErrNoDecision):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrPersistence):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error     string   `json:"error"`
	NodeID    *int32   `json:"node_id,omitempty"`
	Step      *int     `json:"step,omitempty"`
	Available []string `json:"available,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		glog.Errorf("request failed: %v", err)
	}
	resp := errorResponse{Error: err.Error()}
	var pe *query.PathError
	if errors.As(err, &pe) {
		resp.NodeID, resp.Step, resp.Available = &pe.NodeID, &pe.Step, pe.Available
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
