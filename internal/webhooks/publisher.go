// Package webhooks fans solve lifecycle events out to subscriber endpoints
// with signed payloads and retrying deliveries.
package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fleetroute/internal/store"
)

// Event types emitted by the solve pipeline.
const (
	EventSolveCompleted  = "solve.completed"
	EventSolveFailed     = "solve.failed"
	EventScenarioCreated = "scenario.created"
	EventScenarioDeleted = "scenario.deleted"
)

// envelope is the body POSTed to subscriber endpoints.
type envelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	TenantID string `json:"tenantId"`
	TS       string `json:"ts"`
	Data     any    `json:"data"`
}

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues the event for every matching subscription. Delivery is
// asynchronous; enqueue failures are dropped, a webhook must never block or
// fail a solve.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil || len(subs) == 0 {
		return
	}
	body, err := json.Marshal(envelope{
		ID:       "evt_" + uuid.NewString(),
		Type:     eventType,
		TenantID: tenantID,
		TS:       time.Now().UTC().Format(time.RFC3339),
		Data:     data,
	})
	if err != nil {
		return
	}
	for _, s := range subs {
		_, _ = p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body)
	}
}
