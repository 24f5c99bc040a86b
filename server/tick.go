package server

import (
	"context"
	"sync"
	"time"
)

// Run 启动服务端周期循环，直到 ctx 取消
func (s *Server) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	Log.Infof("server loop started: latency=%v render=%v grid=%d",
		s.Latency(), s.RenderInterval(), GridSize(s.halfExtent))

	for {
		select {
		case <-ctx.Done():
			Log.Info("server loop stopped")
			return
		default:
		}

		// 核心循环：清空输入 → 校验提交 → 对账 → 渲染
		s.Cycle(ctx)

		if !sleepCtx(ctx, s.RenderInterval()) {
			Log.Info("server loop stopped")
			return
		}

		// 空闲时阻塞等待新提交，避免空转
		if s.mailbox.Len() == 0 {
			select {
			case <-ctx.Done():
				Log.Info("server loop stopped")
				return
			case <-s.mailbox.Ready():
			}
		}
	}
}

// sleepCtx 等待 d 或 ctx 取消；正常等待结束返回 true
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
