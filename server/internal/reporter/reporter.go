// Package reporter drives report generation: on every tick it snapshots the
// store, builds a report, publishes it to readers, logs it, updates metrics
// and hands the breaches to the alert dispatcher.
package reporter

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/obsidianstack/seedmonitor/server/internal/metrics"
	"github.com/obsidianstack/seedmonitor/server/internal/report"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

const banner = "#################################################################"

// Dispatcher receives the breaches of every pass.
type Dispatcher interface {
	Dispatch(ctx context.Context, breaches []report.Breach)
}

// Publisher is notified after each new report is available from Latest.
type Publisher interface {
	Publish()
}

// Options configures a Reporter.
type Options struct {
	Interval   time.Duration
	Dispatcher Dispatcher
	Metrics    *metrics.Metrics
	Publishers []Publisher
}

// Reporter is safe for concurrent use.
type Reporter struct {
	store      *store.Store
	interval   time.Duration
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	publishers []Publisher
	now        func() time.Time

	genMu sync.Mutex // serialises passes

	mu      sync.RWMutex
	builder *report.Builder
	latest  *report.Report
}

// New returns a Reporter reading st and building with b.
func New(st *store.Store, b *report.Builder, opts Options) *Reporter {
	return &Reporter{
		store:      st,
		builder:    b,
		interval:   opts.Interval,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		publishers: opts.Publishers,
		now:        time.Now,
	}
}

// SetBuilder replaces the builder used from the next pass on.
func (r *Reporter) SetBuilder(b *report.Builder) {
	r.mu.Lock()
	r.builder = b
	r.mu.Unlock()
}

// AddPublisher registers p to be notified after every later pass.
func (r *Reporter) AddPublisher(p Publisher) {
	r.mu.Lock()
	r.publishers = append(r.publishers, p)
	r.mu.Unlock()
}

// Latest returns the most recent report, or nil before the first pass.
func (r *Reporter) Latest() *report.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Generate runs one report pass at now and returns its report.
func (r *Reporter) Generate(ctx context.Context, now time.Time) *report.Report {
	r.genMu.Lock()
	defer r.genMu.Unlock()

	r.mu.RLock()
	b, pubs := r.builder, r.publishers
	r.mu.RUnlock()

	rep := b.Build(r.store.Snapshot(), r.store.LastCheckStarted(), now)

	r.mu.Lock()
	r.latest = rep
	r.mu.Unlock()

	slog.Info("reporter: report generated",
		"nodes", len(rep.Rows),
		"errors", rep.TotalErrors,
		"breaches", len(rep.Breaches),
		"report", Framed(rep.Text()),
	)

	r.metrics.ObserveReport(rep)
	for _, p := range pubs {
		p.Publish()
	}
	if r.dispatcher != nil && len(rep.Breaches) > 0 {
		r.dispatcher.Dispatch(ctx, rep.Breaches)
	}
	return rep
}

// Run generates a report immediately and then every interval until ctx is
// cancelled.
func (r *Reporter) Run(ctx context.Context) {
	r.Generate(ctx, r.now())

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Generate(ctx, r.now())
		}
	}
}

// Framed surrounds a text report with banner lines for the log.
func Framed(text string) string {
	var sb strings.Builder
	sb.WriteString("\n\n" + banner + "\n")
	sb.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(banner + "\n\n")
	return sb.String()
}
