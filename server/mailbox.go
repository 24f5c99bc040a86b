package server

import "sync"

// Mailbox 无界 FIFO 动作队列：客户端并发提交，服务端非阻塞取出
// 内部锁只覆盖入队/出队，绝不与状态锁同时持有
type Mailbox struct {
	mu    sync.Mutex
	queue []Action
	ready chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Submit 入队，永远成功
func (m *Mailbox) Submit(a Action) {
	m.mu.Lock()
	m.queue = append(m.queue, a)
	m.mu.Unlock()

	// 唤醒空闲的服务端；已有待处理信号时直接跳过
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// TryDrain 取出队首动作；队列为空时立即返回 false
func (m *Mailbox) TryDrain() (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Action{}, false
	}
	a := m.queue[0]
	m.queue[0] = Action{}
	m.queue = m.queue[1:]
	if len(m.queue) == 0 {
		m.queue = nil
	}
	return a, true
}

// Ready 在有新动作提交后可读（最多缓存一个信号）
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Len 当前排队数量
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
