package server

import (
	"math/rand/v2"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// ActionSource 为 Actor 生成下一步动作的类型与位移
type ActionSource interface {
	Next() (ActionKind, mgl64.Vec3)
}

// RandomSource 均匀随机：Move 的 dx/dy ∈ [-1,1]，Jump/Shoot 的 dz ∈ [-3,3]
type RandomSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSource(seed uint64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomSource) Next() (ActionKind, mgl64.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind := ActionKinds[r.rng.IntN(len(ActionKinds))]
	if kind == ActionMove {
		return kind, mgl64.Vec3{r.uniform(-1, 1), r.uniform(-1, 1), 0}
	}
	return kind, mgl64.Vec3{0, 0, r.uniform(-3, 3)}
}

func (r *RandomSource) uniform(lo, hi float64) float64 {
	return lo + r.rng.Float64()*(hi-lo)
}

// ScriptedSource 按顺序重放固定动作，用完后循环
type ScriptedSource struct {
	mu    sync.Mutex
	steps []ScriptedStep
	next  int
}

// ScriptedStep 一条固定动作
type ScriptedStep struct {
	Kind  ActionKind
	Delta mgl64.Vec3
}

func NewScriptedSource(steps ...ScriptedStep) *ScriptedSource {
	return &ScriptedSource{steps: steps}
}

func (s *ScriptedSource) Next() (ActionKind, mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return ActionJump, mgl64.Vec3{}
	}
	step := s.steps[s.next%len(s.steps)]
	s.next++
	return step.Kind, step.Delta
}
