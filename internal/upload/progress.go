package upload

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressTracker receives transfer progress. It is purely observational.
type ProgressTracker interface {
	// Update is called as bytes are read from the file.
	Update(bytesTransferred, totalBytes int64)
	// Complete is called when the transfer succeeded.
	Complete()
	// Error is called when the transfer failed.
	Error(err error)
}

type nopTracker struct{}

func (nopTracker) Update(int64, int64) {}
func (nopTracker) Complete()           {}
func (nopTracker) Error(error)         {}

type progressReader struct {
	reader  io.Reader
	tracker ProgressTracker
	total   int64
	read    int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.tracker.Update(pr.read, pr.total)
	}
	return n, err
}

// TextProgress renders a single, periodically rewritten status line.
type TextProgress struct {
	mu       sync.Mutex
	w        io.Writer
	name     string
	start    time.Time
	last     time.Time
	interval time.Duration
	now      func() time.Time
}

func NewTextProgress(w io.Writer, name string) *TextProgress {
	now := time.Now
	return &TextProgress{w: w, name: name, start: now(), interval: 200 * time.Millisecond, now: now}
}

func (p *TextProgress) Update(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.now()
	if done < total && t.Sub(p.last) < p.interval {
		return
	}
	p.last = t
	p.render(done, total, t)
}

func (p *TextProgress) render(done, total int64, t time.Time) {
	pct := 100.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	var rate string
	if elapsed := t.Sub(p.start).Seconds(); elapsed > 0 {
		rate = fmt.Sprintf(" %s/s", humanize.IBytes(uint64(float64(done)/elapsed)))
	}
	fmt.Fprintf(p.w, "\r%s: %5.1f%% %s / %s%s", p.name, pct,
		humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)), rate)
}

func (p *TextProgress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
}

func (p *TextProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
}
