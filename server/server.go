package server

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Presenter 渲染层：每个周期收到一次一致性快照
type Presenter interface {
	Present(Snapshot)
}

// Options 服务端配置
type Options struct {
	Latency        time.Duration // 每个动作的模拟网络延迟
	RenderInterval time.Duration // 两个处理周期之间的间隔
	GridHalfExtent int
	HistoryLimit   int
}

// Server 权威服务端：唯一持有权威状态、历史与惩罚计数
type Server struct {
	mailbox    *Mailbox
	metrics    *Metrics
	halfExtent int
	presenters []Presenter

	latencyNs atomic.Int64
	renderNs  atomic.Int64

	// 状态锁：保护以下全部字段，绝不与 mailbox 锁同时持有
	mu            sync.Mutex
	actors        []ActorID // 按 ID 升序
	authoritative map[ActorID]Position
	predicted     map[ActorID]Position
	penalties     map[ActorID]int
	history       *History
	cycle         uint64
}

// NewServer 创建服务端，初始化数据结构
func NewServer(opts Options) *Server {
	if opts.GridHalfExtent <= 0 {
		opts.GridHalfExtent = DefaultGridHalfExtent
	}
	s := &Server{
		mailbox:       NewMailbox(),
		metrics:       &Metrics{},
		halfExtent:    opts.GridHalfExtent,
		authoritative: make(map[ActorID]Position),
		predicted:     make(map[ActorID]Position),
		penalties:     make(map[ActorID]int),
		history:       NewHistory(opts.HistoryLimit),
	}
	s.SetLatency(opts.Latency)
	s.SetRenderInterval(opts.RenderInterval)
	return s
}

// AddPresenter 注册渲染层，需在 Run 之前调用
func (s *Server) AddPresenter(p Presenter) {
	s.presenters = append(s.presenters, p)
}

// Register 将 Actor 加入权威状态，初始位置为原点
func (s *Server) Register(id ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(id)
}

func (s *Server) ensureLocked(id ActorID) {
	if _, ok := s.authoritative[id]; ok {
		return
	}
	s.authoritative[id] = Position{}
	s.predicted[id] = Position{}
	s.penalties[id] = 0
	i := sort.Search(len(s.actors), func(i int) bool { return s.actors[i] >= id })
	s.actors = append(s.actors, 0)
	copy(s.actors[i+1:], s.actors[i:])
	s.actors[i] = id
}

func (s *Server) Mailbox() *Mailbox { return s.mailbox }

func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) GridHalfExtent() int { return s.halfExtent }

func (s *Server) Latency() time.Duration { return time.Duration(s.latencyNs.Load()) }

func (s *Server) SetLatency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.latencyNs.Store(int64(d))
}

func (s *Server) RenderInterval() time.Duration { return time.Duration(s.renderNs.Load()) }

func (s *Server) SetRenderInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.renderNs.Store(int64(d))
}

// Submit 客户端提交动作到 mailbox
func (s *Server) Submit(a Action) {
	s.metrics.IncSubmitted()
	s.mailbox.Submit(a)
}

// Predict 在状态锁内对 Actor 的预测位置做乐观更新
// Jump/Shoot 只改本地 z，服务端从不校验或提交高度
func (s *Server) Predict(a Action) Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(a.ActorID)
	p := s.predicted[a.ActorID]
	switch a.Kind {
	case ActionMove:
		p[0] += a.Delta.X()
		p[1] += a.Delta.Y()
	case ActionJump, ActionShoot:
		p[2] = a.Delta.Z()
	}
	s.predicted[a.ActorID] = p
	return p
}

// Process 模拟网络延迟后校验并记录动作，返回定稿后的动作
// 延迟发生在状态锁之外；ctx 取消只会提前结束等待，动作仍会被记录
func (s *Server) Process(ctx context.Context, a Action) Action {
	if d := s.Latency(); d > 0 {
		start := time.Now()
		sleepCtx(ctx, d)
		s.metrics.AddLatency(time.Since(start).Nanoseconds())
	}
	return s.apply(a)
}

func (s *Server) apply(a Action) Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLocked(a.ActorID)
	v := Validate(s.authoritative[a.ActorID], a, s.halfExtent)
	a.GX, a.GY = v.GX, v.GY
	if v.Legal {
		s.authoritative[a.ActorID] = v.Candidate
		s.metrics.IncCommitted()
	} else {
		a.Illegal = true
		s.penalties[a.ActorID]++
		s.metrics.IncRejected()
	}
	if s.history.Append(a) {
		s.metrics.IncEvicted()
	}

	Log.Debugw("action recorded",
		"id", a.ID.String(),
		"actor", a.ActorID,
		"kind", a.Kind.String(),
		"gx", a.GX,
		"gy", a.GY,
		"illegal", a.Illegal,
	)
	return a
}

// Drain 处理周期开始时已排队的动作，返回处理数量
// 处理期间新提交的动作留到下一个周期，保证每个周期都能走到对账与渲染
func (s *Server) Drain(ctx context.Context) int {
	pending := s.mailbox.Len()
	n := 0
	for n < pending {
		a, ok := s.mailbox.TryDrain()
		if !ok {
			break
		}
		s.Process(ctx, a)
		n++
	}
	return n
}

// Reconcile 用权威位置整体覆盖所有预测位置，返回覆盖后的快照
func (s *Server) Reconcile() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.actors {
		s.predicted[id] = s.authoritative[id]
	}
	s.cycle++
	return s.buildSnapshotLocked()
}

// Cycle 一个完整周期：清空 mailbox → 校验/提交 → 全量对账 → 通知渲染层
func (s *Server) Cycle(ctx context.Context) Snapshot {
	start := time.Now()
	n := s.Drain(ctx)
	snap := s.Reconcile()
	s.metrics.AddCycle(time.Since(start).Nanoseconds())
	if n > 0 {
		Log.Debugf("cycle %d: drained %d actions", snap.Cycle, n)
	}
	s.present(snap)
	return snap
}

// Flush 停止后处理残留动作（无延迟），保证每个提交的动作都被记录
func (s *Server) Flush() Snapshot {
	n := 0
	for {
		a, ok := s.mailbox.TryDrain()
		if !ok {
			break
		}
		s.apply(a)
		n++
	}
	snap := s.Reconcile()
	Log.Infof("flushed %d pending actions", n)
	s.present(snap)
	return snap
}

func (s *Server) present(snap Snapshot) {
	for _, p := range s.presenters {
		p.Present(snap)
	}
}

// Snapshot 当前状态的一致性快照（不推进周期）
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildSnapshotLocked()
}

// Authoritative 查询权威位置
func (s *Server) Authoritative(id ActorID) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.authoritative[id]
	return p, ok
}

// Predicted 查询预测位置
func (s *Server) Predicted(id ActorID) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.predicted[id]
	return p, ok
}

// Penalties 返回惩罚计数副本
func (s *Server) Penalties() map[ActorID]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ActorID]int, len(s.penalties))
	for id, n := range s.penalties {
		out[id] = n
	}
	return out
}
