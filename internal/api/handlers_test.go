package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fleetroute/internal/auth"
	"fleetroute/internal/model"
	"fleetroute/internal/store"
	"fleetroute/internal/webhooks"
)

const scenarioYAML = `
name: two-stop
skus:
  - id: skuA
    weight: 1
    volume: 1
orders:
  - id: o1
    node: 2
    requirements:
      skuA: 2
  - id: o2
    node: 3
    requirements:
      skuA: 1
warehouses:
  - id: w1
    node: 1
    inventory:
      skuA: 10
vehicles:
  - id: v1
    type: MediumTruck
    capacityWeight: 50
    capacityVolume: 50
    maxDistance: 100
    homeWarehouse: w1
edges:
  - from: 1
    to: 2
    distance: 2
  - from: 2
    to: 3
    distance: 2
  - from: 3
    to: 1
    distance: 3
`

func newTestServer() *Server {
	mem := store.NewMemory()
	return &Server{
		Store:  mem,
		Pub:    webhooks.NewPublisher(mem),
		Auth:   &auth.Verifier{Mode: "dev"},
		Broker: NewBroker(),
	}
}

func createScenario(t *testing.T, s *Server, body string) model.ScenarioRecord {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ScenariosHandler(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create scenario: status %d body %s", w.Code, w.Body.String())
	}
	var rec model.ScenarioRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec
}

func TestScenarioCreateGetDelete(t *testing.T) {
	s := newTestServer()
	rec := createScenario(t, s, scenarioYAML)
	if rec.Name != "two-stop" || rec.ID == "" {
		t.Fatalf("record = %+v", rec)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+rec.ID, nil)
	w := httptest.NewRecorder()
	s.ScenarioByIDHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/scenarios/"+rec.ID, nil)
	w = httptest.NewRecorder()
	s.ScenarioByIDHandler(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+rec.ID, nil)
	w = httptest.NewRecorder()
	s.ScenarioByIDHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", w.Code)
	}
}

func TestScenarioRejectsInvalidBody(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", strings.NewReader("orders: []"))
	w := httptest.NewRecorder()
	s.ScenariosHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil || p.Status != http.StatusBadRequest {
		t.Fatalf("problem body: %s err=%v", w.Body.String(), err)
	}
}

func TestScenarioTenantIsolation(t *testing.T) {
	s := newTestServer()
	rec := createScenario(t, s, scenarioYAML)

	req := httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+rec.ID, nil)
	req.Header.Set("X-Tenant-Id", "other")
	w := httptest.NewRecorder()
	s.ScenarioByIDHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant read: status %d", w.Code)
	}
}

func TestSolveEndToEnd(t *testing.T) {
	s := newTestServer()
	rec := createScenario(t, s, scenarioYAML)

	body := `{"scenarioId":"` + rec.ID + `","algorithm":"greedy"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.SolveHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("solve: status %d body %s", w.Code, w.Body.String())
	}
	var sol model.SolutionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &sol); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sol.Doc.Fulfilled != 2 || len(sol.Doc.Unassigned) != 0 {
		t.Fatalf("doc = %+v", sol.Doc)
	}
	if len(sol.Doc.Routes) != 1 || sol.Doc.Routes[0].VehicleID != "v1" {
		t.Fatalf("routes = %+v", sol.Doc.Routes)
	}

	// Solution is retrievable.
	req = httptest.NewRequest(http.MethodGet, "/v1/solutions/"+sol.ID, nil)
	w = httptest.NewRecorder()
	s.SolutionByIDHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get solution: status %d", w.Code)
	}

	// Solve metrics were recorded.
	req = httptest.NewRequest(http.MethodGet, "/v1/metrics/solves?scenarioId="+rec.ID, nil)
	w = httptest.NewRecorder()
	s.SolveMetricsHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", w.Code)
	}
	var out struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || len(out.Items) != 1 {
		t.Fatalf("metrics items: %s err=%v", w.Body.String(), err)
	}
}

func TestSolveValidation(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(`{"algorithm":"greedy"}`))
	w := httptest.NewRecorder()
	s.SolveHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing scenarioId: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(`{"scenarioId":"x","algorithm":"brute-force"}`))
	w = httptest.NewRecorder()
	s.SolveHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad algorithm: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(`{"scenarioId":"missing"}`))
	w = httptest.NewRecorder()
	s.SolveHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown scenario: status %d", w.Code)
	}
}

func TestSolveForbiddenForViewer(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(`{"scenarioId":"x"}`))
	req.Header.Set("X-Role", "viewer")
	w := httptest.NewRecorder()
	s.SolveHandler(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d", w.Code)
	}
}

func TestSubscriptionsHandlers(t *testing.T) {
	s := newTestServer()

	body := `{"url":"https://example.test/hook","events":["solve.completed"],"secret":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.SubscriptionsHandler(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var sub model.Subscription
	if err := json.Unmarshal(w.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.Secret != "" {
		t.Fatalf("secret must not be echoed")
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", strings.NewReader(`{"url":""}`))
	w = httptest.NewRecorder()
	s.SubscriptionsHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty subscription: status %d", w.Code)
	}

	// URLs the delivery worker could never POST to are rejected up front.
	for _, bad := range []string{"not-a-url", "ftp://example.test/hook", "http://bad url\x7f"} {
		body := `{"url":` + strconv.Quote(bad) + `,"events":["solve.completed"]}`
		req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", strings.NewReader(body))
		w = httptest.NewRecorder()
		s.SubscriptionsHandler(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("url %q: status %d", bad, w.Code)
		}
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
	w = httptest.NewRecorder()
	s.SubscriptionByIDHandler(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	w = httptest.NewRecorder()
	s.ReadyHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}
}

func TestSolveStreamReceivesEvents(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(http.HandlerFunc(s.SolveStreamHandler))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/solves/scen-1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the handler a moment to register the subscription.
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish("scen-1", SolveEvent{Type: "solve.progress", Data: map[string]any{"attempt": 10}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt SolveEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Type != "solve.progress" {
		t.Fatalf("event = %+v", evt)
	}
}

func TestBrokerFanout(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe("s1")
	ch2 := b.Subscribe("s1")
	other := b.Subscribe("s2")

	b.Publish("s1", SolveEvent{Type: "solve.started"})

	for _, ch := range []chan SolveEvent{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != "solve.started" {
				t.Fatalf("event = %+v", evt)
			}
		default:
			t.Fatalf("subscriber did not receive event")
		}
	}
	select {
	case <-other:
		t.Fatalf("unrelated scenario received event")
	default:
	}

	b.Unsubscribe("s1", ch1)
	if _, ok := <-ch1; ok {
		t.Fatalf("unsubscribed channel should be closed")
	}
}
