package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetroute/internal/buildinfo"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/scenario"
	"fleetroute/internal/solver"
	"fleetroute/internal/store"
	"fleetroute/internal/webhooks"
)

// ScenariosHandler handles POST/GET /v1/scenarios
func (s *Server) ScenariosHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanSolve() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Read failed", err.Error(), r.URL.Path)
			return
		}
		doc, err := scenario.Parse(body)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
			return
		}
		format := "yaml"
		if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "json") {
			format = "json"
		}
		rec, err := s.Store.CreateScenario(r.Context(), model.ScenarioRecord{
			TenantID: p.Tenant, Name: doc.Name, Format: format, Body: body,
		})
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create scenario failed", err.Error(), r.URL.Path)
			return
		}
		s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventScenarioCreated, map[string]any{"scenarioId": rec.ID, "name": rec.Name})
		rec.Body = nil
		writeJSON(w, http.StatusCreated, rec)
	case http.MethodGet:
		tenant := s.tenantOf(r)
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListScenarios(r.Context(), tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List scenarios failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ScenarioByIDHandler handles GET/DELETE /v1/scenarios/{id}
func (s *Server) ScenarioByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/scenarios/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	tenant := s.tenantOf(r)
	switch r.Method {
	case http.MethodGet:
		rec, err := s.Store.GetScenario(r.Context(), tenant, id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Scenario not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get scenario failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		err := s.Store.DeleteScenario(r.Context(), tenant, id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Scenario not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Delete scenario failed", err.Error(), r.URL.Path)
			return
		}
		s.Pub.Emit(r.Context(), tenant, webhooks.EventScenarioDeleted, map[string]any{"scenarioId": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SolveHandler handles POST /v1/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanSolve() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}

	rec, err := s.Store.GetScenario(r.Context(), p.Tenant, req.ScenarioID)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Scenario not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get scenario failed", err.Error(), r.URL.Path)
		return
	}
	doc, err := scenario.Parse(rec.Body)
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Stored scenario no longer parses", err.Error(), r.URL.Path)
		return
	}
	env := scenario.NewEnvironment(doc)

	cfg := solver.FromRequest(req)
	algo := cfg.Algorithm
	solveID := uuid.New().String()
	cfg.Progress = func(evt solver.ProgressEvent) {
		s.Broker.Publish(req.ScenarioID, SolveEvent{Type: "solve.progress", Data: map[string]any{
			"solveId": solveID, "attempt": evt.Attempt, "cost": evt.Cost, "fulfilled": evt.Fulfilled,
		}})
	}
	s.Broker.Publish(req.ScenarioID, SolveEvent{Type: "solve.started", Data: map[string]any{"solveId": solveID, "algo": algo}})

	start := time.Now()
	solution, m, solveErr := solver.Solve(env, cfg)
	elapsed := time.Since(start)

	status := "ok"
	if solveErr != nil {
		status = "degraded"
	}
	metrics.SolveDuration.WithLabelValues(algo, status).Observe(elapsed.Seconds())
	metrics.SolveAttempts.WithLabelValues(algo).Observe(float64(m.Attempts))
	if n := len(env.OrderIDs()); n > 0 {
		metrics.SolveFulfillment.WithLabelValues(algo).Observe(float64(solution.Fulfilled) / float64(n))
	}

	saved, err := s.Store.SaveSolution(r.Context(), model.SolutionRecord{
		ID: solveID, TenantID: p.Tenant, ScenarioID: req.ScenarioID, Algorithm: algo, Doc: solution,
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save solution failed", err.Error(), r.URL.Path)
		return
	}
	_ = s.Store.SaveSolveMetrics(r.Context(), p.Tenant, req.ScenarioID, saved.ID, algo, map[string]any{
		"attempts":      m.Attempts,
		"improvements":  m.Improvements,
		"acceptedWorse": m.AcceptedWorse,
		"bestCost":      m.BestCost,
		"bestFulfilled": m.BestFulfilled,
		"finalCost":     m.FinalCost,
		"elapsedMs":     elapsed.Milliseconds(),
		"degraded":      solveErr != nil,
	})

	s.Broker.Publish(req.ScenarioID, SolveEvent{Type: "solve.completed", Data: map[string]any{
		"solveId": saved.ID, "fulfilled": solution.Fulfilled, "totalCost": solution.TotalCost,
	}})
	event := webhooks.EventSolveCompleted
	if solveErr != nil {
		event = webhooks.EventSolveFailed
	}
	s.Pub.Emit(r.Context(), p.Tenant, event, map[string]any{
		"solutionId": saved.ID, "scenarioId": req.ScenarioID, "fulfilled": solution.Fulfilled,
	})

	writeJSON(w, http.StatusOK, saved)
}

// SolutionsHandler handles GET /v1/solutions
func (s *Server) SolutionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tenant := s.tenantOf(r)
	scenarioID := r.URL.Query().Get("scenarioId")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListSolutions(r.Context(), tenant, scenarioID, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List solutions failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// SolutionByIDHandler handles GET /v1/solutions/{id}
func (s *Server) SolutionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/solutions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	rec, err := s.Store.GetSolution(r.Context(), s.tenantOf(r), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Solution not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get solution failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SolveMetricsHandler handles GET /v1/metrics/solves
func (s *Server) SolveMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rows, err := s.Store.ListSolveMetrics(r.Context(), s.tenantOf(r), r.URL.Query().Get("scenarioId"), r.URL.Query().Get("algo"))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List solve metrics failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		if u, err := url.ParseRequestURI(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url must be a valid http(s) URL", r.URL.Path)
			return
		}
		if req.TenantID == "" {
			req.TenantID = s.tenantOf(r)
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		sub.Secret = ""
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), s.tenantOf(r), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	err := s.Store.DeleteSubscription(r.Context(), s.tenantOf(r), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Subscription not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

// ReadyHandler handles GET /readyz
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
