package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/seedmonitor/server/internal/metrics"
	"github.com/obsidianstack/seedmonitor/server/internal/report"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxHistory = 200
)

// Alert states.
const (
	StatePending = "pending"
	StateSent    = "sent"
	StateFailed  = "failed"
)

// Alert records one notification attempt.
type Alert struct {
	ID        string    `json:"id"`
	Node      string    `json:"node"`
	Operator  string    `json:"operator"`
	Recipient string    `json:"recipient"`
	Key       string    `json:"key"`
	Percent   float64   `json:"percent"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Options configures a Dispatcher. Zero values select the defaults.
type Options struct {
	// StatusPageURL is linked from every alert body.
	StatusPageURL string
	// Timeout bounds a single Notify call.
	Timeout time.Duration
	// History is how many alerts History keeps.
	History int
	Metrics *metrics.Metrics
}

// Dispatcher sends one notification per breach, each in its own goroutine.
//
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	notifier   Notifier
	statusURL  string
	timeout    time.Duration
	maxHistory int
	metrics    *metrics.Metrics
	now        func() time.Time

	wg      sync.WaitGroup
	mu      sync.Mutex
	history []*Alert
}

// NewDispatcher returns a Dispatcher sending through n.
func NewDispatcher(n Notifier, opts Options) *Dispatcher {
	d := &Dispatcher{
		notifier:   n,
		statusURL:  opts.StatusPageURL,
		timeout:    opts.Timeout,
		maxHistory: opts.History,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	if d.maxHistory <= 0 {
		d.maxHistory = defaultMaxHistory
	}
	return d
}

// Compose builds the notification title and body for b.
func Compose(b report.Breach, statusURL string) (title, body string) {
	title = "Warning: " + b.Address.String()
	body = fmt.Sprintf("<%s> Your seed node delivers diverging results for %s (%s%%). Please check the monitoring status page at %s",
		b.Recipient, b.Key, strconv.FormatFloat(b.Percent, 'f', -1, 64), statusURL)
	return title, body
}

// Dispatch starts one send per breach and returns immediately. There is no
// deduplication: every call notifies every breach it is given.
func (d *Dispatcher) Dispatch(ctx context.Context, breaches []report.Breach) {
	for _, b := range breaches {
		title, body := Compose(b, d.statusURL)
		a := &Alert{
			ID:        uuid.NewString(),
			Node:      b.Address.String(),
			Operator:  b.Operator,
			Recipient: b.Recipient,
			Key:       b.Key,
			Percent:   b.Percent,
			Title:     title,
			Body:      body,
			State:     StatePending,
			CreatedAt: d.now(),
		}
		d.record(a)

		slog.Warn("alerts: deviation breach",
			"node", a.Node,
			"key", a.Key,
			"percent", a.Percent,
			"recipient", a.Recipient,
		)

		d.wg.Add(1)
		go d.send(ctx, a)
	}
}

func (d *Dispatcher) send(ctx context.Context, a *Alert) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.notifier.Notify(ctx, a.Recipient, a.Title, a.Body)

	d.mu.Lock()
	if err != nil {
		a.State = StateFailed
		a.Error = err.Error()
	} else {
		a.State = StateSent
	}
	d.mu.Unlock()

	if err != nil {
		slog.Error("alerts: notification failed", "id", a.ID, "node", a.Node, "key", a.Key, "err", err)
		d.metrics.AlertResult(metrics.OutcomeFailed)
		return
	}
	d.metrics.AlertResult(metrics.OutcomeSent)
}

func (d *Dispatcher) record(a *Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, a)
	if len(d.history) > d.maxHistory {
		d.history = d.history[len(d.history)-d.maxHistory:]
	}
}

// Wait blocks until every send started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// History returns copies of the retained alerts, newest first.
func (d *Dispatcher) History() []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Alert, 0, len(d.history))
	for i := len(d.history) - 1; i >= 0; i-- {
		out = append(out, *d.history[i])
	}
	return out
}
