package worker

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress tracks tile rendering progress. It draws a terminal bar when
// interactive and can log structured lines for non-interactive runs.
type Progress struct {
	mu        sync.Mutex
	start     time.Time
	out       io.Writer
	bar       bool
	logger    *slog.Logger
	logEvery  int
	total     int
	completed int
	failed    int
}

// NewProgress creates a tracker. bar enables the terminal progress bar.
func NewProgress(total int, bar bool) *Progress {
	return &Progress{total: total, start: time.Now(), out: os.Stderr, bar: bar}
}

// WithLogger logs progress every n tiles and at completion.
func (p *Progress) WithLogger(logger *slog.Logger, every int) *Progress {
	if every <= 0 {
		every = 100
	}
	p.logger = logger
	p.logEvery = every
	return p
}

// Update records progress. It has the ProgressFunc signature.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	p.completed, p.total, p.failed = completed, total, failed
	line := p.lineLocked(time.Now())
	p.mu.Unlock()

	if p.bar {
		fmt.Fprint(p.out, "\r"+line)
	}
	if p.logger != nil && (completed%p.logEvery == 0 || completed == total) {
		p.logger.Info("Tile progress", "completed", completed, "total", total, "failed", failed)
	}
}

// Done ends the progress bar line.
func (p *Progress) Done() {
	if !p.bar {
		return
	}
	p.mu.Lock()
	line := p.lineLocked(time.Now())
	p.mu.Unlock()
	fmt.Fprintln(p.out, "\r"+line)
}

func (p *Progress) lineLocked(now time.Time) string {
	elapsed := now.Sub(p.start)
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(p.completed) / secs
	}

	filled := 0
	if p.total > 0 {
		filled = p.completed * barWidth / p.total
	}
	if filled > barWidth {
		filled = barWidth
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s%s] %d/%d tiles", strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled), p.completed, p.total)
	if p.failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", p.failed)
	}
	fmt.Fprintf(&b, " - %.1f tiles/sec", rate)
	switch {
	case p.completed >= p.total:
		fmt.Fprintf(&b, " - done in %s", formatDuration(elapsed))
	case rate > 0:
		eta := time.Duration(float64(p.total-p.completed)/rate) * time.Second
		fmt.Fprintf(&b, " - ETA %s", formatDuration(eta))
	}
	return b.String()
}

// Summary describes the finished run.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(p.start)
	return fmt.Sprintf("Rendered %d/%d tiles (%d failed) in %s",
		p.completed-p.failed, p.total, p.failed, formatDuration(elapsed))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
