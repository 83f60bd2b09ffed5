package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingEnforcer struct {
	calls atomic.Int32
	err   error
}

func (c *countingEnforcer) Enforce(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	e := &countingEnforcer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Start(ctx, e, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return e.calls.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_KeepsRunningOnError(t *testing.T) {
	e := &countingEnforcer{err: errors.New("boom")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Start(ctx, e, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return e.calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestStart_Disabled(t *testing.T) {
	e := &countingEnforcer{}

	done := make(chan struct{})
	go func() {
		Start(context.Background(), e, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start with zero interval should return immediately")
	}
	assert.Equal(t, int32(0), e.calls.Load())
}
