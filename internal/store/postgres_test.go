package store

import (
	"context"
	"errors"
	"testing"
)

func TestValidUUID(t *testing.T) {
	if !validUUID("0f2d2bbe-9c1b-4c67-9c5a-2c9b1f6f9a01") {
		t.Fatalf("canonical uuid should validate")
	}
	for _, bad := range []string{"", "latest", "42", "not-a-uuid", "0f2d2bbe-9c1b-4c67-9c5a"} {
		if validUUID(bad) {
			t.Fatalf("%q should not validate", bad)
		}
	}
}

// Malformed ids short-circuit to not-found before any query runs; otherwise
// the uuid cast fails server-side and the caller sees a 500 instead of 404.
// The nil db proves the queries are never reached.
func TestPostgresMalformedIDsMapToNotFound(t *testing.T) {
	p := &Postgres{}
	ctx := context.Background()

	if _, err := p.GetScenario(ctx, "t1", "latest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetScenario: %v", err)
	}
	if err := p.DeleteScenario(ctx, "t1", "latest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteScenario: %v", err)
	}
	if _, err := p.GetSolution(ctx, "t1", "latest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSolution: %v", err)
	}
	if err := p.DeleteSubscription(ctx, "t1", "latest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteSubscription: %v", err)
	}

	items, next, err := p.ListSolutions(ctx, "t1", "latest", "", 10)
	if err != nil || len(items) != 0 || next != "" {
		t.Fatalf("ListSolutions: items=%v next=%q err=%v", items, next, err)
	}
	rows, err := p.ListSolveMetrics(ctx, "t1", "latest", "")
	if err != nil || len(rows) != 0 {
		t.Fatalf("ListSolveMetrics: rows=%v err=%v", rows, err)
	}
}
