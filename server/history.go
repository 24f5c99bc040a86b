package server

// AgeTier 历史记录的显示亮度分档
type AgeTier int

const (
	TierDim AgeTier = iota
	TierMedium
	TierBright
)

func (t AgeTier) String() string {
	switch t {
	case TierDim:
		return "dim"
	case TierMedium:
		return "medium"
	default:
		return "bright"
	}
}

// TierFor 按在缓冲区中的位置计算亮度：最旧三分之一最暗，最新三分之一最亮
func TierFor(index, size int) AgeTier {
	if size <= 0 || index < 0 || index >= size {
		return TierDim
	}
	return AgeTier((3*index + 2) / size)
}

// History 有界动作历史，满时淘汰最旧的一条
type History struct {
	limit   int
	entries []Action
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, entries: make([]Action, 0, limit)}
}

// Append 追加一条记录，返回是否发生了淘汰
func (h *History) Append(a Action) bool {
	h.entries = append(h.entries, a)
	if len(h.entries) > h.limit {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.limit]
		return true
	}
	return false
}

func (h *History) Len() int { return len(h.entries) }

func (h *History) Cap() int { return h.limit }

// Entries 返回从旧到新的副本
func (h *History) Entries() []Action {
	out := make([]Action, len(h.entries))
	copy(out, h.entries)
	return out
}
