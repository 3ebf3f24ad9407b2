package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/roadnet"
)

func TestSolveGreedyProducesCompleteDocument(t *testing.T) {
	env := ringEnv()
	cfg := DefaultConfig()
	cfg.Algorithm = AlgorithmGreedy

	doc, m, err := Solve(env, cfg)
	require.NoError(t, err)

	assert.Equal(t, len(env.OrderIDs()), doc.Fulfilled+len(doc.Unassigned))
	assert.NotEmpty(t, doc.Routes)
	assert.Greater(t, doc.TotalDistance, 0.0)
	assert.Equal(t, doc.TotalCost, m.FinalCost)
	for _, r := range doc.Routes {
		assert.NotEmpty(t, r.Steps)
	}
}

func TestSolveALNS(t *testing.T) {
	env := ringEnv()
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Now = clock.Now
	cfg.TimeBudget = time.Second
	cfg.MaxAttempts = 500

	doc, _, err := Solve(env, cfg)
	require.NoError(t, err)

	assert.Equal(t, len(env.OrderIDs()), doc.Fulfilled)
	assert.Empty(t, doc.Unassigned)
}

func TestSolveDeterministicWithSeed(t *testing.T) {
	run := func() float64 {
		env := ringEnv()
		clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
		cfg := DefaultConfig()
		cfg.Seed = 99
		cfg.Now = clock.Now
		cfg.TimeBudget = time.Second
		cfg.MaxAttempts = 300
		doc, _, err := Solve(env, cfg)
		require.NoError(t, err)
		return doc.TotalCost
	}
	assert.Equal(t, run(), run())
}

// faultyEnv blows up when the solver reaches for the road network.
type faultyEnv struct{ *testEnv }

func (f *faultyEnv) Network() *roadnet.Network { panic("corrupt road network") }

func TestSolveDowngradesPanicToEmptyDocument(t *testing.T) {
	env := &faultyEnv{ringEnv()}

	doc, _, err := Solve(env, DefaultConfig())

	require.Error(t, err)
	assert.Empty(t, doc.Routes)
	assert.Equal(t, 0, doc.Fulfilled)
	assert.Equal(t, []string{"o1", "o2", "o3", "o4", "o5"}, doc.Unassigned)
}
