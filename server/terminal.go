package server

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
)

// ANSI 颜色
const (
	ansiReset   = "\033[0m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
	ansiGray    = "\033[90m"
	ansiFaint   = "\033[2m"

	ansiHome       = "\033[H"
	ansiHideCursor = "\033[?25l"
	ansiShowCursor = "\033[?25h"
)

// TerminalPresenter 在终端原地重绘网格
type TerminalPresenter struct {
	mu     sync.Mutex
	w      io.Writer
	hidden bool
}

func NewTerminalPresenter(w io.Writer) *TerminalPresenter {
	return &TerminalPresenter{w: w}
}

// Present 绘制一帧
func (t *TerminalPresenter) Present(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	if !t.hidden {
		b.WriteString(ansiHideCursor)
		t.hidden = true
	}
	b.WriteString(ansiHome)
	b.WriteString(RenderGrid(snap, true))
	_, _ = io.WriteString(t.w, b.String())
}

// Close 恢复光标
func (t *TerminalPresenter) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hidden {
		_, _ = io.WriteString(t.w, ansiShowCursor)
		t.hidden = false
	}
}

// RenderGrid 将快照绘制为文本网格；color=false 时输出纯文本
func RenderGrid(snap Snapshot, color bool) string {
	half := snap.GridHalfExtent
	if half <= 0 {
		half = DefaultGridHalfExtent
	}
	size := GridSize(half)
	cells := make([]string, size*size)
	for i := range cells {
		cells[i] = "."
	}

	// 历史从旧到新绘制，新记录覆盖旧记录；越界坐标直接丢弃
	for _, e := range snap.History {
		if !InGrid(e.GX, e.GY, half) {
			continue
		}
		cells[e.GY*size+e.GX] = paint(e.Glyph, entryColor(e), color)
	}

	for _, p := range snap.Predicted {
		gx := int(math.Round(p.X)) + half
		gy := (size - 1) - (int(math.Round(p.Y)) + half)
		if !InGrid(gx, gy, half) {
			continue
		}
		cells[gy*size+gx] = paint(strconv.Itoa(int(p.ID)), ansiCyan, color)
	}

	var b strings.Builder
	b.WriteString("=== Authoritative Map (Live) ===\n")
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			b.WriteString(cells[y*size+x])
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nPenalties: ")
	for _, p := range snap.Penalties {
		fmt.Fprintf(&b, "Actor %d=%d ", p.ID, p.Count)
	}
	b.WriteByte('\n')
	return b.String()
}

func entryColor(e HistoryEntry) string {
	var c string
	switch {
	case e.Illegal:
		c = ansiMagenta
	case e.Kind == ActionMove:
		c = ansiGreen
	case e.Kind == ActionJump:
		c = ansiYellow
	default:
		c = ansiRed
	}
	switch e.Tier {
	case TierDim:
		return ansiGray
	case TierMedium:
		return ansiFaint + c
	default:
		return c
	}
}

func paint(s, c string, color bool) string {
	if !color {
		return s
	}
	return c + s + ansiReset
}

// WriteSummary 输出最终惩罚统计与位置
func WriteSummary(w io.Writer, snap Snapshot) {
	fmt.Fprintln(w, "\nFinal penalties:")
	for _, p := range snap.Penalties {
		fmt.Fprintf(w, "Actor %d=%d\n", p.ID, p.Count)
	}
	fmt.Fprintln(w, "Final positions:")
	for _, p := range snap.Predicted {
		fmt.Fprintf(w, "Actor %d=(%.2f, %.2f, %.2f)\n", p.ID, p.X, p.Y, p.Z)
	}
	fmt.Fprintln(w, "Simulation finished.")
}
