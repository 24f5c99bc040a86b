package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Authority Actor 所需的服务端能力：本地预测与提交
type Authority interface {
	Predict(Action) Position
	Submit(Action)
}

// Actor 模拟一个独立客户端：每个 tick 生成动作、乐观预测、提交
type Actor struct {
	ID      ActorID
	server  Authority
	source  ActionSource
	limiter *rate.Limiter
}

// NewActor 创建 Actor；tick 为两次动作之间的固定间隔
func NewActor(id ActorID, server Authority, source ActionSource, tick time.Duration) *Actor {
	limit := rate.Inf
	if tick > 0 {
		limit = rate.Every(tick)
	}
	return &Actor{
		ID:      id,
		server:  server,
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Step 执行一次 tick：生成动作 → 更新预测 → 提交
func (a *Actor) Step() Action {
	kind, delta := a.source.Next()
	act := NewAction(a.ID, kind, delta)
	predicted := a.server.Predict(act)
	a.server.Submit(act)
	Log.Debugw("action submitted",
		"id", act.ID.String(),
		"actor", a.ID,
		"kind", kind.String(),
		"predicted", predicted,
	)
	return act
}

// Run 按 tick 循环，直到 ctx 取消；取消只在 tick 之间生效
func (a *Actor) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	Log.Infof("actor %d started", a.ID)
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			Log.Infof("actor %d stopped", a.ID)
			return
		}
		a.Step()
	}
}
