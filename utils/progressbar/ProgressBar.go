// Package progressbar implements functionality of printing a progress
// bar to a terminal
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar implements progress bar functionality that must be
// manually managed. That is, Display must be called whenever an
// updated progress bar should be printed. A ProgressBar is safe for
// concurrent use.
type ProgressBar struct {
	mu              sync.Mutex
	out             io.Writer
	width           float64
	maxProgress     float64
	currentProgress float64
	bar             strings.Builder
	startTime       time.Time
}

// New returns a new ProgressBar, width characters wide, that reaches
// 100% once the progress reaches max and prints to out
func New(out io.Writer, width, max int) *ProgressBar {
	return &ProgressBar{
		out:         out,
		width:       float64(width),
		maxProgress: float64(max),
		startTime:   time.Now(),
	}
}

// Increment increments the interal progress counter by one
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Set sets the progress counter, clamped to [0, max]
func (p *ProgressBar) Set(progress int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch prog := float64(progress); {
	case prog < 0:
		p.currentProgress = 0
	case prog > p.maxProgress:
		p.currentProgress = p.maxProgress
	default:
		p.currentProgress = prog
	}
}

// Progress returns the progress counter
func (p *ProgressBar) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentProgress
}

// String returns the progress bar as it would be displayed
func (p *ProgressBar) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.render()
}

func (p *ProgressBar) render() string {
	p.bar.Reset()
	p.bar.WriteString("|")

	fraction := 1.0
	if p.maxProgress > 0 {
		fraction = p.currentProgress / p.maxProgress
	}
	currentProg := fraction * p.width
	for i := 0.0; i < currentProg; i++ {
		p.bar.WriteString("█")
	}
	for i := currentProg; i < p.width; i++ {
		p.bar.WriteString(" ")
	}
	fmt.Fprintf(&p.bar, "| [%.2f%% | elapsed: %v]", fraction*100,
		time.Since(p.startTime).Truncate(time.Second))

	return p.bar.String()
}

// Display redraws the progress bar on the current line of the output
func (p *ProgressBar) Display() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n\033[1A\033[K%v", p.render())
}

// Close moves the output past the progress bar
func (p *ProgressBar) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}
