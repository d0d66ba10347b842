package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type outcomes struct {
	mu  sync.Mutex
	got []string
}

func (o *outcomes) observe(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, action+":"+outcome)
}

func (o *outcomes) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.got...)
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	obs := &outcomes{}
	d := NewDispatcher(Options{Workers: 2, Observe: obs.observe})
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
			ran.Add(1)
			return nil
		}))
	}
	d.Close()
	assert.Equal(t, int32(5), ran.Load())
	assert.Len(t, obs.list(), 5)
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	obs := &outcomes{}
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond, Observe: obs.observe})
	var calls atomic.Int32
	dialErr := &net.OpError{Op: "dial", Err: errors.New("refused")}
	require.NoError(t, d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return dialErr
		}
		return nil
	}))
	d.Close()
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{"notify:ok"}, obs.list())
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	obs := &outcomes{}
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond, Observe: obs.observe})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
		calls.Add(1)
		return tele.ErrBlockedByUser
	}))
	d.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
	assert.Equal(t, []string{"notify:fail"}, obs.list())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), "a", "b", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	block := func() error {
		close(started)
		<-release
		return nil
	}
	require.NoError(t, d.Enqueue(context.Background(), "a", "", block))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "a", "", func() error { return nil }))
	assert.Equal(t, 1, d.Pending())
	assert.ErrorIs(t, d.Enqueue(context.Background(), "a", "", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()
}

func TestRedactToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_cc/sendMessage": timeout`)
	assert.NotContains(t, redactToken(err), "AA-bb_cc")
	assert.Contains(t, redactToken(err), "bot<redacted>")
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "timeout", errorKind(context.DeadlineExceeded))
	assert.Equal(t, "dial", errorKind(&net.OpError{Op: "dial", Err: errors.New("x")}))
	assert.Equal(t, "http_4xx", errorKind(tele.ErrBlockedByUser))
	assert.Equal(t, "http_4xx", errorKind(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, "unknown", errorKind(errors.New("x")))
}

func TestDispatcherTimeoutOutcome(t *testing.T) {
	obs := &outcomes{}
	d := NewDispatcher(Options{Workers: 1, MaxDuration: 20 * time.Millisecond, RetryBackoff: time.Second, MaxRetries: 1, Observe: obs.observe})
	dialErr := &net.OpError{Op: "dial", Err: errors.New("refused")}
	require.NoError(t, d.Enqueue(context.Background(), "notify", "sendMessage", func() error { return dialErr }))
	d.Close()
	assert.Equal(t, []string{"notify:timeout"}, obs.list())
}
