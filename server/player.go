package server

import "github.com/go-gl/mathgl/mgl64"

// ActorID 表示模拟客户端的唯一标识（启动时分配，之后不变）
type ActorID int

// Position 三维位置 (x, y, z)
type Position = mgl64.Vec3

// 网格默认参数：半径 5，对应 11×11 网格
const (
	DefaultGridHalfExtent = 5
	DefaultHistoryLimit   = 50
)

// ActorPosition 为快照中单个 Actor 的位置
type ActorPosition struct {
	ID ActorID `json:"id" msgpack:"id"`
	X  float64 `json:"x" msgpack:"x"`
	Y  float64 `json:"y" msgpack:"y"`
	Z  float64 `json:"z" msgpack:"z"`
}

func newActorPosition(id ActorID, p Position) ActorPosition {
	return ActorPosition{ID: id, X: p.X(), Y: p.Y(), Z: p.Z()}
}

// GridSize 返回半径对应的网格边长
func GridSize(halfExtent int) int {
	return 2*halfExtent + 1
}
