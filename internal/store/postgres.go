package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetroute/internal/model"
)

var _ Store = (*Postgres)(nil)

// Postgres persists everything in one database; used when DATABASE_URL is
// set.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate applies the schema. Idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scenarios (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT,
			format TEXT NOT NULL,
			body BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS scenarios_tenant_idx ON scenarios (tenant_id, id)`,
		`CREATE TABLE IF NOT EXISTS solutions (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			scenario_id UUID NOT NULL,
			algo TEXT NOT NULL,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS solutions_tenant_idx ON solutions (tenant_id, scenario_id, id)`,
		`CREATE TABLE IF NOT EXISTS solve_metrics (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			scenario_id UUID NOT NULL,
			solution_id UUID NOT NULL,
			algo TEXT NOT NULL,
			metrics JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			url TEXT NOT NULL,
			events JSONB NOT NULL,
			secret TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			subscription_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			payload BYTEA NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_error TEXT,
			response_code INT,
			latency_ms INT,
			delivered_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS webhook_due_idx ON webhook_deliveries (status, next_attempt_at)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateScenario(ctx context.Context, rec model.ScenarioRecord) (model.ScenarioRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO scenarios (id, tenant_id, name, format, body) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		rec.ID, rec.TenantID, rec.Name, rec.Format, rec.Body).Scan(&created)
	if err != nil {
		return model.ScenarioRecord{}, err
	}
	rec.CreatedAt = created.UTC().Format(time.RFC3339)
	return rec, nil
}

// validUUID guards the UUID-typed columns: Postgres raises a cast error on
// malformed ids, which callers would surface as a 500 instead of not-found.
func validUUID(id string) bool {
	return uuid.Validate(id) == nil
}

func (p *Postgres) GetScenario(ctx context.Context, tenantID, id string) (model.ScenarioRecord, error) {
	if !validUUID(id) {
		return model.ScenarioRecord{}, ErrNotFound
	}
	var rec model.ScenarioRecord
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, tenant_id, COALESCE(name,''), format, body, created_at FROM scenarios WHERE tenant_id=$1 AND id=$2`,
		tenantID, id).Scan(&rec.ID, &rec.TenantID, &rec.Name, &rec.Format, &rec.Body, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScenarioRecord{}, ErrNotFound
	}
	if err != nil {
		return model.ScenarioRecord{}, err
	}
	rec.CreatedAt = created.UTC().Format(time.RFC3339)
	return rec, nil
}

func (p *Postgres) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.ScenarioRecord, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, tenant_id, COALESCE(name,''), format, created_at FROM scenarios WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`,
			tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, tenant_id, COALESCE(name,''), format, created_at FROM scenarios WHERE tenant_id=$1 ORDER BY id LIMIT $2`,
			tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.ScenarioRecord{}
	var next string
	for rows.Next() {
		var rec model.ScenarioRecord
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Name, &rec.Format, &created); err != nil {
			return nil, "", err
		}
		rec.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, rec)
		next = rec.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteScenario(ctx context.Context, tenantID, id string) error {
	if !validUUID(id) {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SaveSolution(ctx context.Context, rec model.SolutionRecord) (model.SolutionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	doc, err := json.Marshal(rec.Doc)
	if err != nil {
		return model.SolutionRecord{}, err
	}
	var created time.Time
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO solutions (id, tenant_id, scenario_id, algo, doc) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		rec.ID, rec.TenantID, rec.ScenarioID, rec.Algorithm, doc).Scan(&created)
	if err != nil {
		return model.SolutionRecord{}, err
	}
	rec.CreatedAt = created.UTC().Format(time.RFC3339)
	return rec, nil
}

func (p *Postgres) GetSolution(ctx context.Context, tenantID, id string) (model.SolutionRecord, error) {
	if !validUUID(id) {
		return model.SolutionRecord{}, ErrNotFound
	}
	var rec model.SolutionRecord
	var doc []byte
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, tenant_id, scenario_id::text, algo, doc, created_at FROM solutions WHERE tenant_id=$1 AND id=$2`,
		tenantID, id).Scan(&rec.ID, &rec.TenantID, &rec.ScenarioID, &rec.Algorithm, &doc, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SolutionRecord{}, ErrNotFound
	}
	if err != nil {
		return model.SolutionRecord{}, err
	}
	if err := json.Unmarshal(doc, &rec.Doc); err != nil {
		return model.SolutionRecord{}, err
	}
	rec.CreatedAt = created.UTC().Format(time.RFC3339)
	return rec, nil
}

func (p *Postgres) ListSolutions(ctx context.Context, tenantID, scenarioID, cursor string, limit int) ([]model.SolutionRecord, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if scenarioID != "" && !validUUID(scenarioID) {
		return []model.SolutionRecord{}, "", nil
	}
	q := `SELECT id::text, tenant_id, scenario_id::text, algo, doc, created_at FROM solutions WHERE tenant_id=$1`
	args := []any{tenantID}
	if scenarioID != "" {
		args = append(args, scenarioID)
		q += ` AND scenario_id=$2`
	}
	if cursor != "" {
		args = append(args, cursor)
		q += ` AND id::text > $` + itoa(len(args))
	}
	args = append(args, limit)
	q += ` ORDER BY id LIMIT $` + itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.SolutionRecord{}
	var next string
	for rows.Next() {
		var rec model.SolutionRecord
		var doc []byte
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.ScenarioID, &rec.Algorithm, &doc, &created); err != nil {
			return nil, "", err
		}
		if err := json.Unmarshal(doc, &rec.Doc); err != nil {
			return nil, "", err
		}
		rec.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, rec)
		next = rec.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, rows.Err()
}

func (p *Postgres) SaveSolveMetrics(ctx context.Context, tenantID, scenarioID, solutionID, algo string, metrics map[string]any) error {
	blob, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO solve_metrics (tenant_id, scenario_id, solution_id, algo, metrics) VALUES ($1,$2,$3,$4,$5)`,
		tenantID, scenarioID, solutionID, algo, blob)
	return err
}

func (p *Postgres) ListSolveMetrics(ctx context.Context, tenantID, scenarioID, algo string) ([]map[string]any, error) {
	if scenarioID != "" && !validUUID(scenarioID) {
		return []map[string]any{}, nil
	}
	q := `SELECT scenario_id::text, solution_id::text, algo, metrics FROM solve_metrics WHERE tenant_id=$1`
	args := []any{tenantID}
	if scenarioID != "" {
		args = append(args, scenarioID)
		q += ` AND scenario_id=$2`
	}
	if algo != "" {
		args = append(args, algo)
		q += ` AND algo=$` + itoa(len(args))
	}
	q += ` ORDER BY id DESC LIMIT 200`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var scenID, solID, a string
		var blob []byte
		if err := rows.Scan(&scenID, &solID, &a, &blob); err != nil {
			return nil, err
		}
		var metrics map[string]any
		_ = json.Unmarshal(blob, &metrics)
		out = append(out, map[string]any{"scenarioId": scenID, "solutionId": solID, "algo": a, "metrics": metrics})
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	events, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
		id, req.TenantID, req.URL, events, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	needle, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, tenant_id, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`,
		tenantID, needle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.TenantID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, tenant_id, url, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`,
			tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, tenant_id, url, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`,
			tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	var next string
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.TenantID, &s.URL, &events); err != nil {
			return nil, "", err
		}
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
		next = s.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	if !validUUID(id) {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, tenantID, subscriptionID, eventType, url, secret, payload)
	return id, err
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, tenant_id, subscription_id::text, event_type, url, secret, payload, attempts
		 FROM webhook_deliveries WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	if nextAttemptAt != nil {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, *nextAttemptAt, lastError, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, lastError, responseCode, latencyMs)
	return err
}

func itoa(n int) string { return strconv.Itoa(n) }
