package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(timeout time.Duration) *Scheduler {
	return New(timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegister(t *testing.T) {
	s := newScheduler(time.Second)
	job := func(context.Context) (int, error) { return 0, nil }

	require.NoError(t, s.Register("sweep", "@every 5m", job))
	require.NoError(t, s.Register("refresh", "", job))
	assert.Equal(t, 1, s.Len())

	err := s.Register("broken", "every now and then", job)
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestWrapAppliesTimeout(t *testing.T) {
	s := newScheduler(50 * time.Millisecond)
	var deadline bool
	s.wrap("job", func(ctx context.Context) (int, error) {
		_, deadline = ctx.Deadline()
		return 1, nil
	})()
	assert.True(t, deadline)

	called := false
	s.wrap("failing", func(context.Context) (int, error) {
		called = true
		return 0, errors.New("boom")
	})()
	assert.True(t, called)
}

func TestStopCancelsJobs(t *testing.T) {
	s := newScheduler(0)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.Error(t, s.ctx.Err())
}
