package server

import (
	"bytes"
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.Latency = 0
	cfg.RenderInterval = 5 * time.Millisecond
	cfg.Duration = 300 * time.Millisecond
	cfg.Render = false
	return cfg
}

func TestSimulationRunsToCompletion(t *testing.T) {
	cfg := testConfig()
	sources := func(id ActorID) ActionSource {
		if id == 1 {
			// 一直向右移动，撞到边界后被惩罚
			return NewScriptedSource(ScriptedStep{Kind: ActionMove, Delta: mgl64.Vec3{1, 0, 0}})
		}
		return NewScriptedSource(ScriptedStep{Kind: ActionJump, Delta: mgl64.Vec3{0, 0, 2}})
	}
	sim := NewSimulation(cfg, nil, sources)
	require.Len(t, sim.Actors, 2)

	final, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, sim.Server.Mailbox().Len())
	for _, id := range []ActorID{1, 2} {
		auth, _ := sim.Server.Authoritative(id)
		pred, _ := sim.Server.Predicted(id)
		assert.Equal(t, auth, pred)
	}

	pos, _ := sim.Server.Authoritative(1)
	assert.Equal(t, Position{5, 0, 0}, pos)
	assert.GreaterOrEqual(t, final.PenaltyOf(1), 1)
	assert.Equal(t, 0, final.PenaltyOf(2))
	assert.LessOrEqual(t, len(final.History), cfg.HistoryLimit)

	m := sim.Server.Metrics().Snapshot()
	assert.Equal(t, m["actions_submitted"], m["actions_committed"].(int64)+m["actions_rejected"].(int64))
}

func TestSimulationStopsOnParentCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = time.Hour
	sim := NewSimulation(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := sim.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSimulationRendersToTerminal(t *testing.T) {
	cfg := testConfig()
	cfg.Render = true
	cfg.Duration = 50 * time.Millisecond
	var out bytes.Buffer
	sim := NewSimulation(cfg, &out, nil)

	_, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Authoritative Map")
	assert.Contains(t, out.String(), ansiShowCursor)
}

func TestSimulationListenError(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPAddr = "256.0.0.1:99999"
	sim := NewSimulation(cfg, nil, nil)
	_, err := sim.Run(context.Background())
	assert.Error(t, err)
}

type checkingPresenter struct {
	mu        sync.Mutex
	frames    int
	divergent int
	half      float64
}

// Present 对账后的快照里预测位置必须等于权威位置：z 为 0 且落在边界内
func (c *checkingPresenter) Present(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	for _, p := range s.Predicted {
		if p.Z != 0 || math.Abs(p.X) > c.half || math.Abs(p.Y) > c.half {
			c.divergent++
		}
	}
}

func (c *checkingPresenter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames, c.divergent
}

func TestSimulationCyclesWhileActorsOutpaceLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Actors = 3
	cfg.TickInterval = 10 * time.Millisecond
	cfg.Latency = 10 * time.Millisecond
	cfg.RenderInterval = 5 * time.Millisecond
	cfg.Duration = 5 * time.Second
	sim := NewSimulation(cfg, nil, nil)
	p := &checkingPresenter{half: float64(cfg.GridHalfExtent)}
	sim.Server.AddPresenter(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished := make(chan struct{})
	go func() {
		_, err := sim.Run(ctx)
		assert.NoError(t, err)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		frames, _ := p.counts()
		cycles := sim.Server.Metrics().Snapshot()["cycles"].(int64)
		return frames >= 5 && cycles >= 5
	}, 3*time.Second, 10*time.Millisecond)

	select {
	case <-finished:
		t.Fatal("simulation ended before the mid-run check")
	default:
	}
	m := sim.Server.Metrics().Snapshot()
	assert.Greater(t, m["actions_committed"].(int64)+m["actions_rejected"].(int64), int64(0))

	cancel()
	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatal("simulation did not stop")
	}
	_, divergent := p.counts()
	assert.Equal(t, 0, divergent)
}
