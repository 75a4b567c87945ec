package output

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rodaine/table"
	"github.com/tanq16/linkcheck/internal/checker"
)

const redrawInterval = 100 * time.Millisecond

// Stats is the read side of a run, satisfied by *checker.Manager.
type Stats interface {
	TotalLinks() int
	WorkingLinks() int
	BrokenLinks() int
	CheckingLinks() int
	DownloadedBytes() int64
	Elapsed() time.Duration
}

// Printer renders run events for a terminal. On a TTY it keeps one progress
// line redrawn in place; otherwise every settled link gets its own line.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	stats    Stats
	live     bool
	width    int
	drawn    bool
	lastDraw time.Time
}

var _ checker.Listener = (*Printer)(nil)

func NewPrinter(stats Stats) *Printer {
	return NewPrinterTo(os.Stdout, stats, isTerminal(os.Stdout))
}

func NewPrinterTo(w io.Writer, stats Stats, live bool) *Printer {
	return &Printer{out: w, stats: stats, live: live, width: getTerminalWidth()}
}

func (p *Printer) InputURLBroken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printLine(FError(StyleSymbols["fail"] + " input URL is broken, nothing to check"))
}

func (p *Printer) NoLinkFound() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printLine(FWarning(StyleSymbols["warning"] + " no link found on the page"))
}

func (p *Printer) LinkDownloading(rec checker.LinkRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live && time.Since(p.lastDraw) >= redrawInterval {
		p.drawProgress()
	}
}

func (p *Printer) LinkCheckPassed(rec checker.LinkRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live {
		p.drawProgress()
		return
	}
	p.printLine(fmt.Sprintf("%s %s %s", p.ratio(), FSuccess(StyleSymbols["pass"]), rec.URL))
}

func (p *Printer) LinkCheckFailed(rec checker.LinkRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := fmt.Sprintf("%s %s %s %s", p.ratio(), FError(StyleSymbols["fail"]), rec.URL, FDebug("("+Reason(rec)+")"))
	p.printLine(line)
}

func (p *Printer) AllLinksChecked() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live {
		p.drawProgress()
	}
}

// Summary ends the progress line and prints the outcome of the run.
func (p *Printer) Summary(records []checker.LinkRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
	fmt.Fprintln(p.out, FHeader("Summary"))
	var broken []checker.LinkRecord
	pending := 0
	for _, rec := range records {
		switch rec.State {
		case checker.Failed:
			broken = append(broken, rec)
		case checker.Pending:
			pending++
		}
	}
	if pending > 0 {
		fmt.Fprintln(p.out, FWarning(fmt.Sprintf("%s run stopped with %d link(s) unchecked", StyleSymbols["warning"], pending)))
	}
	switch {
	case len(records) == 0:
		fmt.Fprintln(p.out, FWarning(StyleSymbols["warning"]+" no links were checked"))
	case len(broken) == 0:
		fmt.Fprintln(p.out, FSuccess(StyleSymbols["pass"]+" no broken links"))
	default:
		fmt.Fprintln(p.out, FError(fmt.Sprintf("%s %d broken link(s)", StyleSymbols["fail"], len(broken))))
		tbl := table.New("URL", "Status", "Reason").
			WithWriter(p.out).
			WithHeaderFormatter(func(format string, vals ...interface{}) string {
				return FDetail(fmt.Sprintf(format, vals...))
			})
		for _, rec := range broken {
			tbl.AddRow(Truncate(rec.URL, max(p.width-40, 40)), rec.StatusCode, Reason(rec))
		}
		tbl.Print()
	}
	elapsed := p.stats.Elapsed()
	downloaded := p.stats.DownloadedBytes()
	fmt.Fprintln(p.out, FInfo(fmt.Sprintf("%s %d links (%d working, %d broken) in %s, downloaded %s at %s",
		StyleSymbols["info"], len(records), p.stats.WorkingLinks(), p.stats.BrokenLinks(),
		FormatDuration(elapsed), FormatBytes(uint64(downloaded)), FormatSpeed(downloaded, elapsed))))
}

// Reason explains why a link is broken.
func Reason(rec checker.LinkRecord) string {
	switch {
	case rec.StatusCode == 0:
		return "connection failed"
	case rec.StatusCode < 200 || rec.StatusCode >= 300:
		if text := http.StatusText(rec.StatusCode); text != "" {
			return text
		}
		return fmt.Sprintf("status %d", rec.StatusCode)
	}
	return "download failed"
}

func (p *Printer) ratio() string {
	settled := p.stats.WorkingLinks() + p.stats.BrokenLinks()
	return FDebug(fmt.Sprintf("[%d/%d]", settled, p.stats.TotalLinks()))
}

// printLine writes a full line, keeping the live progress line below it.
func (p *Printer) printLine(line string) {
	if p.live && p.drawn {
		fmt.Fprint(p.out, "\r\033[K")
	}
	fmt.Fprintln(p.out, line)
	p.drawn = false
	if p.live {
		p.drawProgress()
	}
}

func (p *Printer) drawProgress() {
	total := p.stats.TotalLinks()
	if total == 0 {
		return
	}
	settled := p.stats.WorkingLinks() + p.stats.BrokenLinks()
	line := fmt.Sprintf("%s %d/%d checked %s %d in progress %s %s",
		ProgressBar(settled, total, 30), settled, total, StyleSymbols["bullet"],
		p.stats.CheckingLinks(), StyleSymbols["bullet"], FormatBytes(uint64(p.stats.DownloadedBytes())))
	fmt.Fprint(p.out, "\r\033[K"+FPending(Truncate(line, p.width-1)))
	p.drawn = true
	p.lastDraw = time.Now()
}
