package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/core/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

// Outcomes passed to Options.Observe.
const (
	OutcomeOK      = "ok"
	OutcomeFail    = "fail"
	OutcomeTimeout = "timeout"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// Observe, when set, is called once per job with its action and one of
	// the Outcome constants.
	Observe func(action, outcome string)
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Balance notifications go through it so a slow chat never stalls a
// monitor subscription.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts the workers. Zero options take defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run. It never blocks: a saturated queue returns
// ErrQueueFull. run may be called more than once when retried.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports how many jobs wait in the queue.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close rejects new jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handle(j)
	}
}

func (d *Dispatcher) handle(j job) {
	start := time.Now()
	attempts, err := d.attempt(j)
	elapsed := time.Since(start)

	attrs := jobAttrs(j)
	attrs = append(attrs,
		slog.Int("attempts", attempts),
		slog.Int64("elapsed_ms", logger.RoundMS(elapsed).Milliseconds()),
	)
	if err == nil {
		level := slog.LevelDebug
		if attempts > 1 {
			level = slog.LevelInfo
		}
		logger.Event(j.ctx, component, level, "send.ok", attrs...)
		d.observe(j.action, OutcomeOK)
		return
	}

	d.errs.Add(1)
	kind := errorKind(err)
	logger.Error(j.ctx, component, "send.fail", append(attrs,
		slog.String("err", redactToken(err)),
		slog.String("error_kind", kind),
	)...)
	if kind == netutil.KindTimeout {
		d.observe(j.action, OutcomeTimeout)
		return
	}
	d.observe(j.action, OutcomeFail)
}

// attempt runs j until it succeeds, fails permanently, exhausts its
// retries, or MaxDuration elapses.
func (d *Dispatcher) attempt(j job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	var err error
	for n := 1; n <= limit; n++ {
		if cerr := ctx.Err(); cerr != nil {
			return n - 1, cerr
		}
		if err = j.run(); err == nil {
			return n, nil
		}
		if !retryable(err) || n == limit {
			return n, err
		}

		delay := d.opts.RetryBackoff * time.Duration(n)
		if wait := floodWait(err); wait > delay {
			delay = wait
		}
		logger.Debug(j.ctx, component, "send.retry", append(jobAttrs(j),
			slog.Int("attempt", n),
			slog.Int64("delay_ms", delay.Milliseconds()),
			slog.String("error_kind", errorKind(err)),
		)...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
	return limit, err
}

func (d *Dispatcher) observe(action, outcome string) {
	if d.opts.Observe != nil {
		d.opts.Observe(action, outcome)
	}
}

func retryable(err error) bool {
	return netutil.ShouldRetry(err) || floodWait(err) > 0
}

// floodWait returns the server-requested pause of a 429 reply.
func floodWait(err error) time.Duration {
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) && floodErr.RetryAfter > 0 {
		return time.Duration(floodErr.RetryAfter) * time.Second
	}
	return 0
}

// errorKind extends netutil.ErrorKind with Bot API status classes.
func errorKind(err error) string {
	if kind := netutil.ErrorKind(err); kind != netutil.KindUnknown {
		return kind
	}
	switch status := apiStatus(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return netutil.KindUnknown
}

func apiStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	return 0
}

func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

// redactToken masks bot tokens embedded in request URLs.
func redactToken(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
