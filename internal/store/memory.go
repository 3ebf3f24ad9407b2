package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetroute/internal/model"
)

var _ Store = (*Memory)(nil)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu           sync.Mutex
	scenarios    map[string]model.ScenarioRecord // id -> scenario
	scenByTen    map[string][]string             // tenant -> scenario ids
	solutions    map[string]model.SolutionRecord // id -> solution
	solByTen     map[string][]string             // tenant -> solution ids
	subs         map[string][]model.Subscription // tenant -> subscriptions
	deliveries   map[string]*memDelivery         // id -> delivery state
	solveMetrics map[string][]map[string]any     // tenant -> metric rows
}

func NewMemory() *Memory {
	return &Memory{
		scenarios:    map[string]model.ScenarioRecord{},
		scenByTen:    map[string][]string{},
		solutions:    map[string]model.SolutionRecord{},
		solByTen:     map[string][]string{},
		subs:         map[string][]model.Subscription{},
		deliveries:   map[string]*memDelivery{},
		solveMetrics: map[string][]map[string]any{},
	}
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	Delivered     bool
	Failed        bool
}

func (m *Memory) CreateScenario(ctx context.Context, rec model.ScenarioRecord) (model.ScenarioRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.scenarios[rec.ID] = rec
	m.scenByTen[rec.TenantID] = append(m.scenByTen[rec.TenantID], rec.ID)
	return rec, nil
}

func (m *Memory) GetScenario(ctx context.Context, tenantID, id string) (model.ScenarioRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.scenarios[id]
	if !ok || rec.TenantID != tenantID {
		return model.ScenarioRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.ScenarioRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.scenByTen[tenantID]
	start := cursorIndex(ids, cursor)
	if limit <= 0 {
		limit = 100
	}
	out := []model.ScenarioRecord{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		rec := m.scenarios[ids[i]]
		rec.Body = nil // list view stays lightweight
		out = append(out, rec)
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) DeleteScenario(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.scenarios[id]
	if !ok || rec.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.scenarios, id)
	ids := m.scenByTen[tenantID]
	for i, sid := range ids {
		if sid == id {
			m.scenByTen[tenantID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) SaveSolution(ctx context.Context, rec model.SolutionRecord) (model.SolutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.solutions[rec.ID] = rec
	m.solByTen[rec.TenantID] = append(m.solByTen[rec.TenantID], rec.ID)
	return rec, nil
}

func (m *Memory) GetSolution(ctx context.Context, tenantID, id string) (model.SolutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.solutions[id]
	if !ok || rec.TenantID != tenantID {
		return model.SolutionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListSolutions(ctx context.Context, tenantID, scenarioID, cursor string, limit int) ([]model.SolutionRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.solByTen[tenantID]
	start := cursorIndex(ids, cursor)
	if limit <= 0 {
		limit = 100
	}
	out := []model.SolutionRecord{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		rec := m.solutions[ids[i]]
		if scenarioID != "" && rec.ScenarioID != scenarioID {
			continue
		}
		out = append(out, rec)
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) SaveSolveMetrics(ctx context.Context, tenantID, scenarioID, solutionID, algo string, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := map[string]any{"scenarioId": scenarioID, "solutionId": solutionID, "algo": algo, "metrics": metrics}
	m.solveMetrics[tenantID] = append(m.solveMetrics[tenantID], row)
	return nil
}

func (m *Memory) ListSolveMetrics(ctx context.Context, tenantID, scenarioID, algo string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, row := range m.solveMetrics[tenantID] {
		if scenarioID != "" && row["scenarioId"] != scenarioID {
			continue
		}
		if algo != "" && row["algo"] != algo {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[tenantID]
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i, s := range subs {
			if s.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Subscription{}
	var next string
	for i := start; i < len(subs) && len(out) < limit; i++ {
		s := subs[i]
		s.Secret = ""
		out = append(out, s)
		next = subs[i].ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[tenantID]
	for i, s := range subs {
		if s.ID == id {
			m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID: id, TenantID: tenantID, SubscriptionID: subscriptionID,
			EventType: eventType, URL: url, Secret: secret, Payload: payload,
		},
		NextAttemptAt: time.Now(),
	}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	now := time.Now()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if d.Delivered || d.Failed || d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, d.WebhookDelivery)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	if success {
		d.Delivered = true
		return nil
	}
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.Failed = true
	}
	return nil
}

func cursorIndex(ids []string, cursor string) int {
	if cursor == "" {
		return 0
	}
	for i, id := range ids {
		if id == cursor {
			return i + 1
		}
	}
	return 0
}
