package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/legisync/errors"
)

func observed() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func transient(msg string) error {
	return errors.Mark(errors.New(msg), errors.ErrTransient)
}

func TestDo_SucceedsAfterMaxMinusOneFailures(t *testing.T) {
	log, logs := observed()
	const maxAttempts = 4

	calls := 0
	got, err := Do(context.Background(), "GET /deputados", Policy{MaxAttempts: maxAttempts, Logger: log},
		func(ctx context.Context) (string, error) {
			calls++
			if calls < maxAttempts {
				return "", transient("503 service unavailable")
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, maxAttempts, calls)
	assert.Equal(t, maxAttempts-1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestDo_AlwaysFailingPropagatesAfterMaxAttempts(t *testing.T) {
	log, logs := observed()
	const maxAttempts = 3

	calls := 0
	_, err := Do(context.Background(), "GET /orgaos", Policy{MaxAttempts: maxAttempts, Logger: log},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, transient("connection reset by peer")
		})

	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
	assert.True(t, errors.IsTransient(err), "class survives annotation")
	assert.Contains(t, err.Error(), "GET /orgaos (attempt 3/3)")
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Equal(t, maxAttempts-1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestDo_NonRetryableFailsOnFirstAttempt(t *testing.T) {
	log, logs := observed()

	calls := 0
	_, err := Do(context.Background(), "GET /deputados/1", Policy{MaxAttempts: 5, Logger: log},
		func(ctx context.Context) (struct{}, error) {
			calls++
			return struct{}{}, errors.Mark(errors.New("404"), errors.ErrNotFound)
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.IsNotFoundError(err))
	assert.Contains(t, err.Error(), "attempt 1/5")
	assert.Equal(t, 0, logs.Len())
}

func TestDo_FixedDelay(t *testing.T) {
	log, _ := observed()
	const delay = 20 * time.Millisecond

	var stamps []time.Time
	_, _ = Do(context.Background(), "op", Policy{MaxAttempts: 3, Delay: delay, Logger: log},
		func(ctx context.Context) (int, error) {
			stamps = append(stamps, time.Now())
			return 0, transient("timeout")
		})

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), delay)
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	log, _ := observed()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, "op", Policy{MaxAttempts: 5, Delay: time.Hour, Logger: log},
		func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, transient("timeout")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_CustomRetryable(t *testing.T) {
	log, _ := observed()

	calls := 0
	_, err := Do(context.Background(), "op", Policy{
		MaxAttempts: 3,
		Logger:      log,
		Retryable:   func(error) bool { return true },
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("anything")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ZeroAttemptsMeansOne(t *testing.T) {
	log, _ := observed()

	calls := 0
	_, err := Do(context.Background(), "op", Policy{Logger: log},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, transient("503")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
