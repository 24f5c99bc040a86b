package server

import "sort"

// HistoryEntry 历史记录的只读视图（附带亮度分档与标记）
type HistoryEntry struct {
	ID      string     `json:"id" msgpack:"id"`
	ActorID ActorID    `json:"actor" msgpack:"actor"`
	Kind    ActionKind `json:"kind" msgpack:"kind"`
	GX      int        `json:"gx" msgpack:"gx"`
	GY      int        `json:"gy" msgpack:"gy"`
	Illegal bool       `json:"illegal" msgpack:"illegal"`
	Tier    AgeTier    `json:"tier" msgpack:"tier"`
	Glyph   string     `json:"glyph" msgpack:"glyph"`
}

// PenaltyCount 单个 Actor 的惩罚计数
type PenaltyCount struct {
	ID    ActorID `json:"id" msgpack:"id"`
	Count int     `json:"count" msgpack:"count"`
}

// Snapshot 提供给渲染层的一致性只读快照
type Snapshot struct {
	Cycle          uint64          `json:"cycle" msgpack:"cycle"`
	GridHalfExtent int             `json:"gridHalfExtent" msgpack:"grid_half_extent"`
	Predicted      []ActorPosition `json:"predicted" msgpack:"predicted"`
	History        []HistoryEntry  `json:"history" msgpack:"history"`
	Penalties      []PenaltyCount  `json:"penalties" msgpack:"penalties"`
}

// buildSnapshotLocked 调用方必须持有状态锁
func (s *Server) buildSnapshotLocked() Snapshot {
	snap := Snapshot{
		Cycle:          s.cycle,
		GridHalfExtent: s.halfExtent,
		Predicted:      make([]ActorPosition, 0, len(s.predicted)),
		History:        make([]HistoryEntry, 0, s.history.Len()),
		Penalties:      make([]PenaltyCount, 0, len(s.penalties)),
	}
	for _, id := range s.actors {
		snap.Predicted = append(snap.Predicted, newActorPosition(id, s.predicted[id]))
		snap.Penalties = append(snap.Penalties, PenaltyCount{ID: id, Count: s.penalties[id]})
	}

	entries := s.history.Entries()
	for i, a := range entries {
		snap.History = append(snap.History, HistoryEntry{
			ID:      a.ID.String(),
			ActorID: a.ActorID,
			Kind:    a.Kind,
			GX:      a.GX,
			GY:      a.GY,
			Illegal: a.Illegal,
			Tier:    TierFor(i, len(entries)),
			Glyph:   a.Glyph(),
		})
	}
	return snap
}

// PenaltyOf 查询快照中的惩罚计数
func (snap Snapshot) PenaltyOf(id ActorID) int {
	i := sort.Search(len(snap.Penalties), func(i int) bool { return snap.Penalties[i].ID >= id })
	if i < len(snap.Penalties) && snap.Penalties[i].ID == id {
		return snap.Penalties[i].Count
	}
	return 0
}
