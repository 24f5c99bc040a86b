package server

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"
)

// ActionKind 动作类型（封闭枚举）
type ActionKind int

const (
	ActionMove ActionKind = iota
	ActionJump
	ActionShoot
)

// ActionKinds 按均匀抽样使用的全部类型
var ActionKinds = [...]ActionKind{ActionMove, ActionJump, ActionShoot}

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "Move"
	case ActionJump:
		return "Jump"
	case ActionShoot:
		return "Shoot"
	default:
		return "Unknown"
	}
}

// Action 客户端提交的动作（意图）
// 客户端填写 ID/ActorID/Kind/Delta；服务端在校验时写入 GX/GY/Illegal，之后只读
type Action struct {
	ID          ulid.ULID
	ActorID     ActorID
	Kind        ActionKind
	Delta       mgl64.Vec3
	GX, GY      int
	Illegal     bool
	SubmittedAt time.Time
}

// NewAction 构造一个待提交的动作
// Move 使用 delta 的 x/y；Jump/Shoot 只使用 z（仅本地预测）
func NewAction(id ActorID, kind ActionKind, delta mgl64.Vec3) Action {
	return Action{
		ID:          ulid.Make(),
		ActorID:     id,
		Kind:        kind,
		Delta:       delta,
		SubmittedAt: time.Now(),
	}
}

// Glyph 返回历史记录在网格上的标记
func (a Action) Glyph() string {
	if a.Illegal {
		return "X"
	}
	switch a.Kind {
	case ActionMove:
		return "M"
	case ActionJump:
		return "J"
	case ActionShoot:
		return "S"
	default:
		return "?"
	}
}
