package store

import (
	"context"
	"errors"
	"time"

	"fleetroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Scenarios
	CreateScenario(ctx context.Context, rec model.ScenarioRecord) (model.ScenarioRecord, error)
	GetScenario(ctx context.Context, tenantID, id string) (model.ScenarioRecord, error)
	ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.ScenarioRecord, string, error)
	DeleteScenario(ctx context.Context, tenantID, id string) error

	// Solutions
	SaveSolution(ctx context.Context, rec model.SolutionRecord) (model.SolutionRecord, error)
	GetSolution(ctx context.Context, tenantID, id string) (model.SolutionRecord, error)
	ListSolutions(ctx context.Context, tenantID, scenarioID, cursor string, limit int) ([]model.SolutionRecord, string, error)

	// Solve metrics
	SaveSolveMetrics(ctx context.Context, tenantID, scenarioID, solutionID, algo string, metrics map[string]any) error
	ListSolveMetrics(ctx context.Context, tenantID, scenarioID, algo string) ([]map[string]any, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
}

// WebhookDelivery is one queued webhook attempt.
type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Attempts       int
}

var ErrNotFound = errors.New("not found")
