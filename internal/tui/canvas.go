package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// cell is one character with separate colors, so outlines can keep the
// fill color of the cell they cross.
type cell struct {
	ch rune
	fg tcell.Color
	bg tcell.Color
}

// grid is a 2D cell buffer blitted to the screen once per frame.
type grid struct {
	width, height int
	cells         []cell
}

func newGrid(width, height int) *grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &grid{width: width, height: height, cells: make([]cell, width*height)}
}

func (g *grid) in(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

func (g *grid) at(x, y int) *cell {
	return &g.cells[y*g.width+x]
}

func (g *grid) fill(x, y int, bg tcell.Color) {
	if g.in(x, y) {
		*g.at(x, y) = cell{ch: ' ', fg: tcell.ColorDefault, bg: bg}
	}
}

// mark draws ch in fg, keeping the background.
func (g *grid) mark(x, y int, ch rune, fg tcell.Color) {
	if g.in(x, y) {
		c := g.at(x, y)
		c.ch, c.fg = ch, fg
	}
}

// line draws a Bresenham line between two cells.
func (g *grid) line(x0, y0, x1, y1 int, ch rune, fg tcell.Color) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		g.mark(x0, y0, ch, fg)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (g *grid) blit(screen tcell.Screen) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := g.at(x, y)
			ch := c.ch
			if ch == 0 {
				ch = ' '
			}
			screen.SetContent(x, y, ch, nil, tcell.StyleDefault.Foreground(c.fg).Background(c.bg))
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// tcellColor converts a palette color.
func tcellColor(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
