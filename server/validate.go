package server

import "math"

// Verdict 单个动作的校验结果
type Verdict struct {
	Candidate Position
	GX, GY    int
	Legal     bool
}

// Validate 基于权威位置校验动作，不修改任何状态
// 只有 Move 改变候选位置；网格坐标无论合法与否都会计算
func Validate(current Position, a Action, halfExtent int) Verdict {
	x, y := current.X(), current.Y()
	if a.Kind == ActionMove {
		x += a.Delta.X()
		y += a.Delta.Y()
	}

	size := GridSize(halfExtent)
	gx := int(math.Round(x)) + halfExtent
	gy := (size - 1) - (int(math.Round(y)) + halfExtent)

	limit := float64(halfExtent)
	legal := x >= -limit && x <= limit && y >= -limit && y <= limit

	// 提交时 z 恒为 0，服务端不跟踪高度
	return Verdict{Candidate: Position{x, y, 0}, GX: gx, GY: gy, Legal: legal}
}

// InGrid 判断网格坐标是否可绘制
func InGrid(gx, gy, halfExtent int) bool {
	size := GridSize(halfExtent)
	return gx >= 0 && gx < size && gy >= 0 && gy < size
}
