package server

import (
	"sync/atomic"
)

// Metrics 记录服务端运行期的关键指标（用于监控与调试）
type Metrics struct {
	Cycles           int64 // 完成的处理周期数
	ActionsSubmitted int64 // 客户端提交的动作数
	ActionsCommitted int64 // 校验通过并提交的动作数
	ActionsRejected  int64 // 越界被惩罚的动作数
	HistoryEvicted   int64 // 历史缓冲淘汰次数
	TotalCycleNs     int64 // 周期累计耗时（纳秒，不含渲染间隔）
	TotalLatencyNs   int64 // 模拟网络延迟累计（纳秒）
}

func (m *Metrics) IncSubmitted() { atomic.AddInt64(&m.ActionsSubmitted, 1) }
func (m *Metrics) IncCommitted() { atomic.AddInt64(&m.ActionsCommitted, 1) }
func (m *Metrics) IncRejected()  { atomic.AddInt64(&m.ActionsRejected, 1) }
func (m *Metrics) IncEvicted()   { atomic.AddInt64(&m.HistoryEvicted, 1) }
func (m *Metrics) AddLatency(ns int64) {
	atomic.AddInt64(&m.TotalLatencyNs, ns)
}
func (m *Metrics) AddCycle(ns int64) {
	atomic.AddInt64(&m.Cycles, 1)
	atomic.AddInt64(&m.TotalCycleNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	cycles := atomic.LoadInt64(&m.Cycles)
	total := atomic.LoadInt64(&m.TotalCycleNs)
	committed := atomic.LoadInt64(&m.ActionsCommitted)
	rejected := atomic.LoadInt64(&m.ActionsRejected)
	var avgMs, avgLatencyMs float64
	if cycles > 0 {
		avgMs = float64(total) / float64(cycles) / 1e6
	}
	if processed := committed + rejected; processed > 0 {
		avgLatencyMs = float64(atomic.LoadInt64(&m.TotalLatencyNs)) / float64(processed) / 1e6
	}
	return map[string]any{
		"cycles":            cycles,
		"actions_submitted": atomic.LoadInt64(&m.ActionsSubmitted),
		"actions_committed": committed,
		"actions_rejected":  rejected,
		"history_evicted":   atomic.LoadInt64(&m.HistoryEvicted),
		"avg_cycle_ms":      avgMs,
		"avg_latency_ms":    avgLatencyMs,
	}
}
