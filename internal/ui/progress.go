package ui

import (
	"fmt"
	"io"
	"sync"
)

// Progress reports long-running operation progress as plain lines, one per
// update. Safe for concurrent use.
type Progress struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// NewProgress creates a progress reporter writing to out.
func NewProgress(out io.Writer, styles Styles) *Progress {
	return &Progress{out: out, styles: styles}
}

// Update reports the current pass and record count.
// Format: [PASS] N records
func (p *Progress) Update(pass string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "%s %d records\n",
		p.styles.Label.Render("["+pass+"]"), count)
}

// Done reports completion of the operation.
func (p *Progress) Done(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, p.styles.Success.Render(msg))
}
